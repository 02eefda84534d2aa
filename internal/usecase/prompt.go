package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"grocer-agent/internal/domain"
	"grocer-agent/internal/safety"
)

const noHistory = "No previous conversation."

func buildGenerationPrompt(p categoryProfile, history []domain.HistoryEntry, prefs domain.Preferences, message string) string {
	refs := make([]string, 0, len(p.references))
	for _, r := range p.references {
		refs = append(refs, "- "+r)
	}
	historyText := formatHistory(history)
	if historyText == "" {
		historyText = noHistory
	}

	sections := []string{
		p.persona,
		"",
		"Task: " + p.task,
		"Context: " + p.context,
		"",
		"References to consider:",
		strings.Join(refs, "\n"),
		"",
		"Chat History:",
		historyText,
	}
	if len(prefs) > 0 {
		sections = append(sections, "", "User Preferences:", formatPreferences(prefs))
	}
	sections = append(sections,
		"",
		"User Message: "+message,
		"",
		safety.Footer(),
		"",
		"Please provide a helpful response considering the above context and references.",
	)
	return strings.Join(sections, "\n")
}

// formatHistory renders entries as "<Role>: <message>", oldest first.
func formatHistory(history []domain.HistoryEntry) string {
	lines := make([]string, 0, len(history))
	for _, h := range history {
		role := strings.TrimSpace(h.Role)
		if role == "" {
			role = "unknown"
		}
		lines = append(lines, capitalize(role)+": "+h.Message)
	}
	return strings.Join(lines, "\n")
}

func formatPreferences(prefs domain.Preferences) string {
	keys := slices.Sorted(maps.Keys(prefs))
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("- %s: %s", k, prefs[k]))
	}
	return strings.Join(lines, "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func buildCategorizationPrompt(message string) string {
	return strings.Join([]string{
		"You are an AI assistant that categorizes user messages into one of the following types:",
		"",
		"1. **Recipe type** - User asks for a recipe.",
		"2. **Item Addition type** - User wants to add an item to their shopping list.",
		"3. **Item Information type** - User asks for details about an item (including price).",
		"4. **Update Cart type** - User wants to modify their cart.",
		"5. **Others** - Any message that does not fit the above categories.",
		"",
		"Classify the following message and return **only** the category name:",
		"",
		fmt.Sprintf("User message: %q", message),
	}, "\n")
}

const ingredientExtractionInstructions = `You are an AI assistant skilled in analyzing conversations and extracting useful information.
Your task is to extract all ingredient names mentioned throughout the conversation history.

Instructions:
- Identify all ingredients in the conversation, including synonyms or variations.
- Ignore quantities and focus only on the ingredient names.
- List each ingredient separately without duplicates.
- Return the output as a **JSON list**, like this:

["item_1", "item_2", "item_3"]

Conversation History:
`

func buildIngredientPrompt(history []domain.HistoryEntry) string {
	return ingredientExtractionInstructions + formatHistory(history)
}

func buildPreferencePrompt(message string) string {
	return strings.Join([]string{
		"You are an AI assistant that extracts user preferences from messages.",
		"Analyze the following message and identify any preferences mentioned.",
		`Return JSON only with the structure {"preferences": {"preference_name": "value"}}.`,
		"Only use these preferences and values:",
		describeSchema(),
		"If no preference is mentioned, return {\"preferences\": {}}.",
		"",
		fmt.Sprintf("Message: %q", message),
	}, "\n")
}

// stripCodeFence removes a surrounding markdown fence, including an
// optional language tag.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "[{\"") {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// decodeStrict decodes exactly one JSON value into T.
func decodeStrict[T any](raw string, disallowUnknown bool) (T, error) {
	var out T
	dec := json.NewDecoder(bytes.NewBufferString(strings.TrimSpace(raw)))
	if disallowUnknown {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("usecase: decode model output: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var zero T
		if err == nil {
			return zero, errors.New("usecase: decode model output: multiple JSON values")
		}
		return zero, fmt.Errorf("usecase: decode model output trailing data: %w", err)
	}
	return out, nil
}
