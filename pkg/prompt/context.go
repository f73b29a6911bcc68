package prompt

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/utils"
)

const contextExtractionTemplate = `You are a context extraction assistant. Extract structured information about a pitch context from the following user description.

User description:
%DESCRIPTION%

Extract the following information if mentioned (return JSON only, no other text):
- audience: who the pitch is for (e.g., "investors", "hiring manager", "customers", "conference audience")
- goal: what the speaker wants to achieve (e.g., "raise funding", "get hired", "book a meeting", "close a sale")
- duration: desired length (e.g., "30 seconds", "1 minute", "3 minutes", "5 minutes", "elevator pitch")
- scenario: type of situation (e.g., "startup investor pitch", "job interview intro", "sales call opener", "conference talk")
- english_level: "beginner", "intermediate", "advanced", or "fluent" (only if mentioned)
- tone_style: "confident", "friendly", "inspiring", "professional", "casual", or "humorous" (only if mentioned)
- constraints: any constraints mentioned (e.g., "no jargon", "non-native audience", "max 1 minute")
- notes_from_user: any additional notes or comments

Return ONLY a valid JSON object with these fields. Use null for fields that are not mentioned. Example:
{
  "audience": "investors",
  "goal": "raise funding",
  "duration": "3 minutes",
  "scenario": "startup investor pitch",
  "english_level": null,
  "tone_style": "confident",
  "constraints": "no technical jargon",
  "notes_from_user": "this is my first attempt"
}`

// BuildContextExtractionPrompt asks a model to turn a spoken or typed
// description of the pitch situation into PitchContext JSON.
func BuildContextExtractionPrompt(description string) string {
	return strings.Replace(contextExtractionTemplate, "%DESCRIPTION%", strings.TrimSpace(description), 1)
}

// ParseContext decodes a model reply into a PitchContext. Markdown code fences
// and prose around the JSON object are ignored; null fields stay empty.
func ParseContext(text string) (model.PitchContext, error) {
	payload := ExtractJSONPayload(text)
	if payload == "" {
		return model.PitchContext{}, utils.WrapIfNotNil(errors.New("context response is empty"))
	}

	var out model.PitchContext
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return model.PitchContext{}, utils.WrapIfNotNil(err)
	}
	return out, nil
}

func ExtractJSONPayload(text string) string {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		return strings.TrimSpace(trimmed[start : end+1])
	}
	return trimmed
}
