package model

import "context"

// Prompt is a single system + user exchange sent to a language model.
type Prompt struct {
	System string
	User   string
}

// PitchContext describes who a pitch is for and what it should achieve.
// Every field is optional.
type PitchContext struct {
	Audience      string `json:"audience" jsonschema:"description=Who the pitch is for"`
	Goal          string `json:"goal" jsonschema:"description=What the speaker wants to achieve"`
	Duration      string `json:"duration" jsonschema:"description=Desired length of the pitch"`
	Scenario      string `json:"scenario" jsonschema:"description=Type of situation"`
	EnglishLevel  string `json:"english_level" jsonschema:"description=beginner or intermediate or advanced or fluent"`
	ToneStyle     string `json:"tone_style" jsonschema:"description=confident or friendly or inspiring or professional or casual or humorous"`
	Constraints   string `json:"constraints" jsonschema:"description=Constraints such as no jargon"`
	NotesFromUser string `json:"notes_from_user" jsonschema:"description=Any additional notes"`
}

func (c PitchContext) IsZero() bool {
	return c == PitchContext{}
}

// FeedbackGenerator produces coaching feedback (markdown) for a prompt.
type FeedbackGenerator interface {
	GenerateFeedback(ctx context.Context, prompt Prompt) (string, GenerationMetadata, error)
}

// ContextExtractor turns a free-form description into a PitchContext using
// provider-side structured output.
type ContextExtractor interface {
	ExtractContext(ctx context.Context, description string) (PitchContext, GenerationMetadata, error)
}
