package model

import "context"

type AudioKeyword struct {
	Word           string   `json:"word,omitempty" toml:"word"`
	CommonMistypes []string `json:"common_mistypes,omitempty" toml:"common_mistypes"`
	Definition     string   `json:"definition,omitempty" toml:"definition"`
}

// AudioInput is an uploaded or recorded clip held in memory.
type AudioInput struct {
	Data     []byte
	FileName string
	MIMEType string
}

type AudioOptions struct {
	URL       string
	AuthToken string
	Model     string
	// Prompt overrides the provider's default transcription prompt.
	// When Prompt is set, keyword hints are not appended.
	Prompt string
	// Keywords lists domain terms that are often misheard, such as product names.
	Keywords []AudioKeyword
}

// Transcriber turns speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio AudioInput) (string, GenerationMetadata, error)
}
