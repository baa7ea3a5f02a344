package quiz

import (
	"math"
	"strings"

	"careerforge/pkg/types"
)

// Criterion weights of the match score
const (
	WeightSkills      = 40
	WeightInterests   = 30
	WeightPersonality = 20
	WeightLearning    = 10
)

// MatchInput is the user side of a match: stated items per criterion
type MatchInput struct {
	Skills              []string `json:"skills"`
	Interests           []string `json:"interests"`
	Traits              []string `json:"traits"`
	LearningPreferences []string `json:"learning_preferences"`
}

// InputFromAnswers collects the stated items of each matching stage
func InputFromAnswers(answers map[types.Stage][]types.Answer) MatchInput {
	collect := func(stage types.Stage) []string {
		var items []string
		for _, a := range answers[stage] {
			items = append(items, a.Items()...)
		}
		return items
	}
	return MatchInput{
		Skills:              collect(types.StageSkillsAssessment),
		Interests:           collect(types.StageCareerInterests),
		Traits:              collect(types.StagePersonalityTraits),
		LearningPreferences: collect(types.StageLearningStyle),
	}
}

// ComputeMatch scores a profile against the input on a 0..100 scale
// FUNCTIONAL DISCOVERY: A criterion joins the denominator only when both the user input and
// the profile field are present, so the score is normalised to what could be evaluated.
// Skills earn the fraction of required skills covered by any stated skill.
func ComputeMatch(in MatchInput, profile types.CareerProfile) int {
	earned, possible := 0.0, 0

	if required := nonEmpty(profile.RequiredSkills); len(in.Skills) > 0 && len(required) > 0 {
		covered := 0
		for _, req := range required {
			if anyMatch(in.Skills, req) {
				covered++
			}
		}
		earned += WeightSkills * float64(covered) / float64(len(required))
		possible += WeightSkills
	}

	if len(in.Interests) > 0 && strings.TrimSpace(profile.Industry) != "" {
		possible += WeightInterests
		if anyMatch(in.Interests, profile.Industry) {
			earned += WeightInterests
		}
	}

	if len(in.Traits) > 0 && strings.TrimSpace(profile.WorkStyle) != "" {
		possible += WeightPersonality
		if anyMatch(in.Traits, profile.WorkStyle) {
			earned += WeightPersonality
		}
	}

	if requirements := nonEmpty(profile.LearningRequirements); len(in.LearningPreferences) > 0 && len(requirements) > 0 {
		possible += WeightLearning
		for _, req := range requirements {
			if anyMatch(in.LearningPreferences, req) {
				earned += WeightLearning
				break
			}
		}
	}

	if possible == 0 {
		return 0
	}
	return int(math.Round(100 * earned / float64(possible)))
}

// substringMatch compares case-insensitively in either direction
func substringMatch(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func anyMatch(items []string, target string) bool {
	for _, item := range items {
		if substringMatch(item, target) {
			return true
		}
	}
	return false
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
