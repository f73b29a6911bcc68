package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/utils"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/param"
)

const (
	defaultAudioTranscriptionModelName = "whisper-1"
	defaultAudioFileName               = "pitch.webm"
)

// Transcriber sends recorded pitches to the audio transcriptions endpoint.
type Transcriber struct {
	client *client
	opts   model.AudioOptions
}

var _ model.Transcriber = (*Transcriber)(nil)

func NewTranscriber(opts model.AudioOptions) *Transcriber {
	return &Transcriber{
		client: newClient(audioGeneratorConfigFromOptions(opts)),
		opts:   cloneAudioOptions(opts),
	}
}

func (t *Transcriber) Transcribe(ctx context.Context, audio model.AudioInput) (string, model.GenerationMetadata, error) {
	start := time.Now()
	modelName := resolveAudioTranscriptionModelName(t.opts)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	log.Infof("audio_transcription_request model=%q bytes=%d file=%q", modelName, len(audio.Data), audio.FileName)

	transcript, response, err := t.client.runAudioTranscription(ctx, audio, t.opts)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	applyAudioTranscriptionMetadata(meta, response)
	return transcript, meta, nil
}

func (c *client) runAudioTranscription(
	ctx context.Context,
	audio model.AudioInput,
	opts model.AudioOptions,
) (string, *openai.AudioTranscriptionNewResponseUnion, error) {
	if len(audio.Data) == 0 {
		return "", nil, utils.WrapIfNotNil(errors.New("audio data is required"))
	}

	params := openai.AudioTranscriptionNewParams{
		File:           openai.File(bytes.NewReader(audio.Data), resolveAudioFileName(audio), audio.MIMEType),
		Model:          openai.AudioModel(resolveAudioTranscriptionModelName(opts)),
		ResponseFormat: openai.AudioResponseFormatJSON,
	}
	prompt, err := buildAudioTranscriptionPrompt(opts)
	if err != nil {
		return "", nil, utils.WrapIfNotNil(err)
	}
	if prompt != "" {
		params.Prompt = param.NewOpt(prompt)
	}

	response, err := c.apiClient.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", nil, utils.WrapIfNotNil(err)
	}
	if response == nil {
		return "", nil, utils.WrapIfNotNil(errors.New("audio transcriptions API returned nil response"))
	}

	transcript := strings.TrimSpace(response.Text)
	if transcript == "" {
		return "", response, utils.WrapIfNotNil(errors.New("transcription response is empty"))
	}

	return transcript, response, nil
}

// resolveAudioFileName keeps an extension on the upload; the endpoint uses it
// to detect the container format.
func resolveAudioFileName(audio model.AudioInput) string {
	name := strings.TrimSpace(audio.FileName)
	if name == "" || !strings.Contains(name, ".") {
		return defaultAudioFileName
	}
	return name
}

func buildAudioTranscriptionPrompt(opts model.AudioOptions) (string, error) {
	customPrompt := strings.TrimSpace(opts.Prompt)
	if customPrompt != "" {
		return customPrompt, nil
	}

	return buildCommonMissedWordsPrompt(opts.Keywords)
}

func buildCommonMissedWordsPrompt(keywords []model.AudioKeyword) (string, error) {
	normalizedKeywords := normalizeAudioKeywords(keywords)
	if len(normalizedKeywords) == 0 {
		return "", nil
	}

	keywordsJSON, err := json.Marshal(normalizedKeywords)
	if err != nil {
		return "", err
	}

	return "Common missed words: " + string(keywordsJSON), nil
}

func normalizeAudioKeywords(keywords []model.AudioKeyword) []model.AudioKeyword {
	if len(keywords) == 0 {
		return nil
	}

	normalized := make([]model.AudioKeyword, 0, len(keywords))
	for _, keyword := range keywords {
		word := strings.TrimSpace(keyword.Word)
		definition := strings.TrimSpace(keyword.Definition)
		commonMistypes := make([]string, 0, len(keyword.CommonMistypes))
		for _, candidate := range keyword.CommonMistypes {
			candidate = strings.TrimSpace(candidate)
			if candidate == "" {
				continue
			}
			commonMistypes = append(commonMistypes, candidate)
		}

		if word == "" && definition == "" && len(commonMistypes) == 0 {
			continue
		}

		normalized = append(normalized, model.AudioKeyword{
			Word:           word,
			CommonMistypes: commonMistypes,
			Definition:     definition,
		})
	}

	if len(normalized) == 0 {
		return nil
	}

	return normalized
}

func resolveAudioTranscriptionModelName(opts model.AudioOptions) string {
	modelName := strings.TrimSpace(opts.Model)
	if modelName != "" {
		return modelName
	}

	return defaultAudioTranscriptionModelName
}

func audioGeneratorConfigFromOptions(opts model.AudioOptions) model.GeneratorConfig {
	cfg := model.GeneratorConfig{
		URL:       opts.URL,
		AuthToken: opts.AuthToken,
	}

	modelName := strings.TrimSpace(opts.Model)
	if modelName != "" {
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
		clonedKeyword := keyword
		if len(keyword.CommonMistypes) > 0 {
			clonedKeyword.CommonMistypes = append([]string(nil), keyword.CommonMistypes...)
		} else {
			clonedKeyword.CommonMistypes = nil
		}
		cloned.Keywords[i] = clonedKeyword
	}

	return cloned
}

func applyAudioTranscriptionMetadata(
	meta model.GenerationMetadata,
	response *openai.AudioTranscriptionNewResponseUnion,
) {
	if meta == nil || response == nil {
		return
	}

	meta[model.MetadataKeyInputTokens] = strconv.FormatInt(response.Usage.InputTokens, 10)
	meta[model.MetadataKeyOutputTokens] = strconv.FormatInt(response.Usage.OutputTokens, 10)
	meta[model.MetadataKeyTotalTokens] = strconv.FormatInt(response.Usage.TotalTokens, 10)
}
