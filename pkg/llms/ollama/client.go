package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/utils"
	ollamasdk "github.com/rozoomcool/go-ollama-sdk"
)

const (
	providerName               = "ollama"
	defaultGenerationModelName = "llama3.1"
	defaultBaseURL             = "http://localhost:11434"
	chatTimeout                = 180 * time.Second
)

type client struct {
	apiClient  *ollamasdk.OllamaClient
	httpClient *http.Client
	baseURL    string
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   any           `json:"format,omitempty"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason,omitempty"`
	PromptEvalCount int64       `json:"prompt_eval_count,omitempty"`
	EvalCount       int64       `json:"eval_count,omitempty"`
	Error           string      `json:"error,omitempty"`
}

func newClient(cfg model.GeneratorConfig) *client {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		baseURL = strings.TrimSpace(os.Getenv("OLLAMA_BASE_URL"))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &client{
		apiClient:  ollamasdk.NewClient(baseURL),
		httpClient: &http.Client{Timeout: chatTimeout},
		baseURL:    baseURL,
	}
}

// chat calls /api/chat directly; the SDK's Chat takes no context and drops
// options and token counts.
func (c *client) chat(ctx context.Context, request chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	httpRequest, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		strings.TrimRight(c.baseURL, "/")+"/api/chat",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json")

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	defer httpResponse.Body.Close()

	rawBody, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	var response chatResponse
	unmarshalErr := json.Unmarshal(rawBody, &response)
	if httpResponse.StatusCode < http.StatusOK || httpResponse.StatusCode >= http.StatusMultipleChoices {
		detail := strings.TrimSpace(string(rawBody))
		if unmarshalErr == nil && strings.TrimSpace(response.Error) != "" {
			detail = strings.TrimSpace(response.Error)
		}
		return nil, utils.WrapIfNotNil(
			fmt.Errorf("ollama chat request failed with status %d: %s", httpResponse.StatusCode, detail),
		)
	}
	if unmarshalErr != nil {
		return nil, utils.WrapIfNotNil(unmarshalErr)
	}
	if strings.TrimSpace(response.Error) != "" {
		return nil, utils.WrapIfNotNil(errors.New(strings.TrimSpace(response.Error)))
	}

	return &response, nil
}

func toWireMessages(messages []ollamasdk.ChatMessage) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, message := range messages {
		out = append(out, chatMessage{Role: message.Role, Content: message.Content})
	}
	return out
}

func buildChatOptions(cfg model.GeneratorConfig) *chatOptions {
	if cfg.Temperature == nil && cfg.MaxTokens == nil {
		return nil
	}
	return &chatOptions{
		Temperature: cfg.Temperature,
		NumPredict:  cfg.MaxTokens,
	}
}

func resolveGenerationModelName(cfg model.GeneratorConfig) string {
	if cfg.Model != nil {
		modelName := strings.TrimSpace(*cfg.Model)
		if modelName != "" {
			return modelName
		}
	}
	return defaultGenerationModelName
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

func applyChatMetadata(meta model.GenerationMetadata, response *chatResponse) {
	if meta == nil || response == nil {
		return
	}

	meta[model.MetadataKeyInputTokens] = strconv.FormatInt(response.PromptEvalCount, 10)
	meta[model.MetadataKeyOutputTokens] = strconv.FormatInt(response.EvalCount, 10)
	meta[model.MetadataKeyTotalTokens] = strconv.FormatInt(response.PromptEvalCount+response.EvalCount, 10)
	if strings.TrimSpace(response.DoneReason) != "" {
		meta[model.MetadataKeyResponseStatus] = response.DoneReason
	}
}
