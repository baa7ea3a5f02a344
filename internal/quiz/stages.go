package quiz

import (
	"math"
	"strings"

	"careerforge/pkg/types"
)

// stageOrder is the fixed progression; COMPLETED has no successor
var stageOrder = []types.Stage{
	types.StageSkillsAssessment,
	types.StageCareerInterests,
	types.StagePersonalityTraits,
	types.StageLearningStyle,
	types.StageCareerGoals,
	types.StageCompleted,
}

var requiredAnswers = map[types.Stage]int{
	types.StageSkillsAssessment:  4,
	types.StageCareerInterests:   3,
	types.StagePersonalityTraits: 3,
	types.StageLearningStyle:     2,
	types.StageCareerGoals:       3,
	types.StageCompleted:         0,
}

var stageTitles = map[types.Stage]string{
	types.StageSkillsAssessment:  "Skills Assessment",
	types.StageCareerInterests:   "Career Interests",
	types.StagePersonalityTraits: "Personality Traits",
	types.StageLearningStyle:     "Learning Style",
	types.StageCareerGoals:       "Career Goals",
	types.StageCompleted:         "Assessment Complete",
}

// TotalQuestions is the sum of required answers over every stage
const TotalQuestions = 15

// Stages returns the stage order
func Stages() []types.Stage {
	out := make([]types.Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// Required returns the number of answers a stage needs before advancing
func Required(stage types.Stage) int {
	return requiredAnswers[stage]
}

// Position returns the index of stage in the fixed order, or -1 when unknown
func Position(stage types.Stage) int {
	for i, s := range stageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

// Next returns the successor of stage; COMPLETED maps to itself
func Next(stage types.Stage) types.Stage {
	pos := Position(stage)
	if pos < 0 || pos == len(stageOrder)-1 {
		return types.StageCompleted
	}
	return stageOrder[pos+1]
}

// Title returns the human label of a stage
func Title(stage types.Stage) string {
	if title, ok := stageTitles[stage]; ok {
		return title
	}
	return string(stage)
}

// ProgressPercent is round(100 * answered / TotalQuestions), counting at most the
// required number of answers per stage
func ProgressPercent(answers map[types.Stage][]types.Answer) int {
	completed := 0
	for _, stage := range stageOrder {
		n := len(answers[stage])
		if req := requiredAnswers[stage]; n > req {
			n = req
		}
		completed += n
	}
	return int(math.Round(100 * float64(completed) / float64(TotalQuestions)))
}

// stageKeywords is evaluated in order; the first stage with a matching keyword wins
var stageKeywords = []struct {
	stage    types.Stage
	keywords []string
}{
	{types.StageSkillsAssessment, []string{"skill", "proficien", "experience with", "good at"}},
	{types.StageCareerInterests, []string{"interest", "passion", "industry", "field"}},
	{types.StagePersonalityTraits, []string{"personality", "introvert", "extrovert", "work style", "strength"}},
	{types.StageLearningStyle, []string{"learning style", "learn best", "course", "study", "training"}},
	{types.StageCareerGoals, []string{"goal", "aspiration", "five years", "long-term", "dream job"}},
}

// StageForText classifies free text into the assessment stage it talks about
func StageForText(text string) (types.Stage, bool) {
	lower := strings.ToLower(text)
	for _, entry := range stageKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.stage, true
			}
		}
	}
	return "", false
}
