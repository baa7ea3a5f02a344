package session

import (
	"strings"

	"careerforge/internal/quiz"
)

// DefaultTitle is used when nothing in the seed text yields a title
const DefaultTitle = "New Career Session"

const (
	titleWordLimit = 6
	titleRuneLimit = 50
)

// titlePatterns is evaluated in order; the first pattern with a matching keyword names the session
var titlePatterns = []struct {
	title    string
	keywords []string
}{
	{"Resume Review", []string{"resume", "cv", "cover letter"}},
	{"Interview Preparation", []string{"interview"}},
	{"Salary Negotiation", []string{"salary", "negotiat", "compensation"}},
	{"Career Transition", []string{"career change", "switch careers", "changing careers", "transition"}},
	{"Job Search Strategy", []string{"job search", "job hunt", "applying for", "linkedin"}},
	{"Skill Development", []string{"upskill", "certification", "bootcamp", "learn"}},
	{"Networking Advice", []string{"networking", "mentor", "referral"}},
}

// GenerateTitle derives a session title from the first message of a conversation
// FUNCTIONAL DISCOVERY: Deterministic keyword matching keeps titles reproducible; career topics
// win over assessment-stage labels, then a truncated word title, then DefaultTitle
func GenerateTitle(seed string) string {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return DefaultTitle
	}

	lower := strings.ToLower(seed)
	for _, pattern := range titlePatterns {
		for _, kw := range pattern.keywords {
			if containsWord(lower, kw) {
				return pattern.title
			}
		}
	}

	if stage, ok := quiz.StageForText(seed); ok {
		return quiz.Title(stage) + " Discussion"
	}

	if title := truncatedTitle(seed); title != "" {
		return title
	}
	return DefaultTitle
}

// containsWord matches short keywords on word boundaries so "cv" does not hit "cvs"
func containsWord(text, kw string) bool {
	if len(kw) > 3 {
		return strings.Contains(text, kw)
	}
	for _, word := range strings.FieldsFunc(text, isSeparator) {
		if word == kw {
			return true
		}
	}
	return false
}

func isSeparator(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r > 127)
}

func truncatedTitle(seed string) string {
	words := strings.Fields(seed)
	if len(words) > titleWordLimit {
		words = words[:titleWordLimit]
	}
	title := strings.Join(words, " ")

	runes := []rune(title)
	if len(runes) > titleRuneLimit {
		title = strings.TrimSpace(string(runes[:titleRuneLimit-3])) + "..."
	}
	return title
}
