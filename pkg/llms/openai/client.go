package openai

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	providerName       = "openai"
	defaultModelName   = "gpt-4o"
	defaultTemperature = 0.7
)

type client struct {
	apiClient openai.Client
}

func newClient(cfg model.GeneratorConfig) *client {
	requestOpts := make([]option.RequestOption, 0, 2)
	if strings.TrimSpace(cfg.URL) != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(strings.TrimSpace(cfg.URL)))
	}
	if strings.TrimSpace(cfg.AuthToken) != "" {
		requestOpts = append(requestOpts, option.WithAPIKey(strings.TrimSpace(cfg.AuthToken)))
	}

	return &client{apiClient: openai.NewClient(requestOpts...)}
}

func initMetadata(modelName string) model.GenerationMetadata {
	if strings.TrimSpace(modelName) == "" {
		modelName = "unknown"
	}

	return model.GenerationMetadata{
		model.MetadataKeyProvider: providerName,
		model.MetadataKeyModel:    modelName,
	}
}

func setLatencyMetadata(meta model.GenerationMetadata, start time.Time) {
	if meta == nil {
		return
	}
	meta[model.MetadataKeyLatencyMs] = strconv.FormatInt(time.Since(start).Milliseconds(), 10)
}

func applyResponseMetadata(meta model.GenerationMetadata, response *responses.Response) {
	if meta == nil || response == nil {
		return
	}

	meta[model.MetadataKeyInputTokens] = strconv.FormatInt(response.Usage.InputTokens, 10)
	meta[model.MetadataKeyOutputTokens] = strconv.FormatInt(response.Usage.OutputTokens, 10)
	meta[model.MetadataKeyTotalTokens] = strconv.FormatInt(response.Usage.TotalTokens, 10)
	meta[model.MetadataKeyCachedInputTokens] = strconv.FormatInt(response.Usage.InputTokensDetails.CachedTokens, 10)
	meta[model.MetadataKeyReasoningTokens] = strconv.FormatInt(response.Usage.OutputTokensDetails.ReasoningTokens, 10)
	if response.ID != "" {
		meta[model.MetadataKeyResponseID] = response.ID
	}
	if response.Status != "" {
		meta[model.MetadataKeyResponseStatus] = string(response.Status)
	}
}

func resolveModelName(cfg model.GeneratorConfig) string {
	if cfg.Model != nil {
		modelName := strings.TrimSpace(*cfg.Model)
		if modelName != "" {
			return modelName
		}
	}
	return defaultModelName
}

func isReasoningModel(modelName string) bool {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return false
	}

	return strings.HasPrefix(name, "o1") ||
		strings.HasPrefix(name, "o3") ||
		strings.HasPrefix(name, "o4") ||
		strings.HasPrefix(name, "gpt-5")
}

// resolveTemperature returns nil for reasoning models, which reject the parameter.
func resolveTemperature(ctx context.Context, cfg model.GeneratorConfig, modelName string) *float64 {
	if isReasoningModel(modelName) {
		if cfg.Temperature != nil {
			logging.NewLogger(ctx).Warnf("ignoring temperature for reasoning model %q", modelName)
		}
		return nil
	}
	if cfg.Temperature != nil {
		return cfg.Temperature
	}
	value := defaultTemperature
	return &value
}
