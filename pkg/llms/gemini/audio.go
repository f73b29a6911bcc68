package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/utils"
	"google.golang.org/genai"
)

const baseTranscriptionPrompt = "Transcribe this audio accurately. Keep filler words, false starts and repetitions exactly as spoken. Return only the transcript text."

// Transcriber sends audio inline to a multimodal Gemini model.
type Transcriber struct {
	apiClient *genai.Client
	opts      model.AudioOptions
}

var _ model.Transcriber = (*Transcriber)(nil)

func NewTranscriber(ctx context.Context, opts model.AudioOptions) (*Transcriber, error) {
	apiClient, err := newAPIClient(ctx, audioGeneratorConfigFromOptions(opts))
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	return &Transcriber{
		apiClient: apiClient,
		opts:      cloneAudioOptions(opts),
	}, nil
}

func (t *Transcriber) Transcribe(ctx context.Context, audio model.AudioInput) (string, model.GenerationMetadata, error) {
	start := time.Now()
	modelName := resolveAudioTranscriptionModelName(t.opts)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	if len(audio.Data) == 0 {
		err := errors.New("audio data is required")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	mimeType, err := resolveAudioMIMEType(audio)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	prompt, err := buildAudioTranscriptionPrompt(t.opts)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(
			[]*genai.Part{
				genai.NewPartFromText(prompt),
				genai.NewPartFromBytes(audio.Data, mimeType),
			},
			genai.RoleUser,
		),
	}

	log.Infof("audio_transcription_request model=%q bytes=%d mime=%q", modelName, len(audio.Data), mimeType)
	response, err := t.apiClient.Models.GenerateContent(ctx, modelName, contents, &genai.GenerateContentConfig{})
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	applyGenerateMetadata(meta, response)

	transcript := strings.TrimSpace(response.Text())
	if transcript == "" {
		err = errors.New("transcription response is empty")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	return transcript, meta, nil
}

func resolveAudioTranscriptionModelName(opts model.AudioOptions) string {
	if modelName := strings.TrimSpace(opts.Model); modelName != "" {
		return modelName
	}
	return defaultGenerationModelName
}

func audioGeneratorConfigFromOptions(opts model.AudioOptions) model.GeneratorConfig {
	cfg := model.GeneratorConfig{
		URL:       opts.URL,
		AuthToken: opts.AuthToken,
	}
	if modelName := strings.TrimSpace(opts.Model); modelName != "" {
		cfg.Model = &modelName
	}
	return cfg
}

func cloneAudioOptions(opts model.AudioOptions) model.AudioOptions {
	cloned := opts
	if len(opts.Keywords) == 0 {
		cloned.Keywords = nil
		return cloned
	}

	cloned.Keywords = make([]model.AudioKeyword, len(opts.Keywords))
	for i, keyword := range opts.Keywords {
		keyword.CommonMistypes = append([]string(nil), keyword.CommonMistypes...)
		cloned.Keywords[i] = keyword
	}
	return cloned
}

func buildAudioTranscriptionPrompt(opts model.AudioOptions) (string, error) {
	if custom := strings.TrimSpace(opts.Prompt); custom != "" {
		return custom, nil
	}

	words, err := buildCommonMissedWordsPrompt(opts.Keywords)
	if err != nil {
		return "", err
	}
	if words == "" {
		return baseTranscriptionPrompt, nil
	}
	return baseTranscriptionPrompt + " " + words, nil
}

func buildCommonMissedWordsPrompt(keywords []model.AudioKeyword) (string, error) {
	normalized := make([]model.AudioKeyword, 0, len(keywords))
	for _, keyword := range keywords {
		word := strings.TrimSpace(keyword.Word)
		definition := strings.TrimSpace(keyword.Definition)
		var mistypes []string
		for _, candidate := range keyword.CommonMistypes {
			if candidate = strings.TrimSpace(candidate); candidate != "" {
				mistypes = append(mistypes, candidate)
			}
		}
		if word == "" && definition == "" && len(mistypes) == 0 {
			continue
		}
		normalized = append(normalized, model.AudioKeyword{
			Word:           word,
			CommonMistypes: mistypes,
			Definition:     definition,
		})
	}
	if len(normalized) == 0 {
		return "", nil
	}

	payload, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	return "Common missed words: " + string(payload), nil
}

// resolveAudioMIMEType prefers the declared content type and falls back to
// the file extension. Browser recorders send values like
// "audio/webm;codecs=opus", so parameters are stripped.
func resolveAudioMIMEType(audio model.AudioInput) (string, error) {
	if declared := strings.TrimSpace(audio.MIMEType); declared != "" {
		mediaType := strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
		if strings.HasPrefix(mediaType, "audio/") {
			return mediaType, nil
		}
		if mediaType == "video/webm" {
			return "audio/webm", nil
		}
	}

	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(audio.FileName)))
	if ext == "" {
		return "", utils.WrapIfNotNil(errors.New("audio mime type or file extension is required"))
	}

	switch ext {
	case ".wav":
		return "audio/wav", nil
	case ".mp3":
		return "audio/mpeg", nil
	case ".m4a", ".mp4":
		return "audio/mp4", nil
	case ".webm":
		return "audio/webm", nil
	case ".ogg":
		return "audio/ogg", nil
	case ".flac":
		return "audio/flac", nil
	case ".aac":
		return "audio/aac", nil
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "", utils.WrapIfNotNil(errors.New("unsupported audio file extension: " + ext))
	}

	mimeType = strings.TrimSpace(strings.Split(mimeType, ";")[0])
	if !strings.HasPrefix(mimeType, "audio/") {
		return "", utils.WrapIfNotNil(errors.New("unsupported audio mime type: " + mimeType))
	}
	return mimeType, nil
}
