package guard

import "fmt"

// Violation categories.
const (
	CategoryPromptSafety = "prompt_safety"
	CategoryStorySafety  = "story_safety"
	CategoryTone         = "tone"
)

// Violation is one recorded guardrail breach.
type Violation struct {
	Category string `json:"category"`
	Detail   string `json:"detail"`
}

// Stages at which a ViolationError can be raised.
const (
	StagePrompt = "prompt"
	StageStory  = "story"
)

// ViolationError carries the full violation list plus the original content,
// so callers never mistake partially-sanitized text for clean text. Stage
// records whether the input prompt or the generated story was rejected.
type ViolationError struct {
	Stage      string
	Violations []Violation
	Content    string
}

func (e *ViolationError) Error() string {
	if len(e.Violations) == 1 {
		return fmt.Sprintf("guardrail violation: %s", e.Violations[0].Detail)
	}
	return fmt.Sprintf("%d guardrail violations", len(e.Violations))
}
