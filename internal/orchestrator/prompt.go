package orchestrator

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"storyforge/internal/domain"
)

// buildStoryPrompt turns the sanitized seed into the model-facing prompt.
// Only sanitized text ever reaches this function.
func buildStoryPrompt(seed string, req domain.StoryRequest) string {
	numScenes := req.NumScenes
	if numScenes < 1 {
		numScenes = 1
	}
	locale := req.Locale
	if locale == "" {
		locale = "en"
	}

	title := cases.Title(language.Und).String(firstWords(seed, 6))

	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Write a gentle children's story titled %q based on this idea: %s. ", title, seed)
	fmt.Fprintf(sb, "Structure it as %d scenes with a clear beginning, middle and end. ", numScenes)
	fmt.Fprintf(sb, "Use locale '%s' for language choices. ", locale)
	sb.WriteString("Keep the tone calm and kind: no violence, no fear, no shouting. ")
	sb.WriteString("Respond with the story text only, no headings or markup.")
	return sb.String()
}

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
