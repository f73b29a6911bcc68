package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/prompt"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/utils"
	"github.com/invopop/jsonschema"
	ollamasdk "github.com/rozoomcool/go-ollama-sdk"
)

// Generator runs feedback and context extraction against a local Ollama server.
type Generator struct {
	client *client
	cfg    model.GeneratorConfig
}

var (
	_ model.FeedbackGenerator = (*Generator)(nil)
	_ model.ContextExtractor  = (*Generator)(nil)
)

func NewGenerator(opts ...model.GeneratorOption) *Generator {
	cfg := model.ResolveGeneratorOpts(opts...)
	return &Generator{client: newClient(cfg), cfg: cfg}
}

func (g *Generator) GenerateFeedback(ctx context.Context, p model.Prompt) (string, model.GenerationMetadata, error) {
	start := time.Now()
	modelName := resolveGenerationModelName(g.cfg)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	if strings.TrimSpace(p.User) == "" {
		err := errors.New("prompt is required")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	log.Infof("feedback_request model=%q base_url=%q user_chars=%d", modelName, g.client.baseURL, len(p.User))
	response, err := g.client.chat(ctx, chatRequest{
		Model:    modelName,
		Messages: toWireMessages(buildMessages(p)),
		Options:  buildChatOptions(g.cfg),
	})
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	applyChatMetadata(meta, response)

	text := strings.TrimSpace(response.Message.Content)
	if text == "" {
		err = errors.New("response output is empty")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	return text, meta, nil
}

// ExtractContext asks for schema-constrained JSON. Local models sometimes add
// prose anyway, so one repair round is attempted before giving up.
func (g *Generator) ExtractContext(ctx context.Context, description string) (model.PitchContext, model.GenerationMetadata, error) {
	start := time.Now()
	modelName := resolveGenerationModelName(g.cfg)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	if strings.TrimSpace(description) == "" {
		err := errors.New("description is required")
		log.Errorf("error: %v", err)
		return model.PitchContext{}, meta, utils.WrapIfNotNil(err)
	}

	schema, err := generateJSONSchema[model.PitchContext]()
	if err != nil {
		log.Errorf("error: %v", err)
		return model.PitchContext{}, meta, utils.WrapIfNotNil(err)
	}

	response, err := g.client.chat(ctx, chatRequest{
		Model: modelName,
		Messages: []chatMessage{
			{Role: "user", Content: prompt.BuildContextExtractionPrompt(description)},
		},
		Format:  schema,
		Options: buildChatOptions(g.cfg),
	})
	if err != nil {
		log.Errorf("error: %v", err)
		return model.PitchContext{}, meta, utils.WrapIfNotNil(err)
	}
	applyChatMetadata(meta, response)

	out, err := prompt.ParseContext(response.Message.Content)
	if err == nil {
		return out, meta, nil
	}

	log.Warnf("structured output parse failed, attempting repair: %v", err)
	repaired, repairErr := g.repairStructuredJSON(modelName, schema, response.Message.Content)
	if repairErr != nil {
		log.Errorf("error: %v", repairErr)
		return model.PitchContext{}, meta, utils.WrapIfNotNil(err)
	}

	out, err = prompt.ParseContext(repaired)
	if err != nil {
		log.Errorf("error: %v", err)
		return model.PitchContext{}, meta, utils.WrapIfNotNil(err)
	}
	return out, meta, nil
}

func (g *Generator) repairStructuredJSON(modelName string, schema map[string]any, rawOutput string) (string, error) {
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}

	messages := []ollamasdk.ChatMessage{
		{
			Role:    "system",
			Content: "You are a strict JSON formatter.",
		},
		{
			Role: "user",
			Content: "Reformat the following output into valid JSON matching this schema. Return only JSON.\n\n" +
				"Schema:\n" + string(schemaBytes) + "\n\n" +
				"Output:\n" + rawOutput,
		},
	}

	text, err := g.client.apiClient.Chat(modelName, messages)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	return strings.TrimSpace(text), nil
}

func buildMessages(p model.Prompt) []ollamasdk.ChatMessage {
	messages := make([]ollamasdk.ChatMessage, 0, 2)
	if system := strings.TrimSpace(p.System); system != "" {
		messages = append(messages, ollamasdk.ChatMessage{Role: "system", Content: system})
	}
	return append(messages, ollamasdk.ChatMessage{Role: "user", Content: p.User})
}

func generateJSONSchema[T any]() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	var value T
	schema := reflector.Reflect(value)

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	var schemaMap map[string]any
	err = json.Unmarshal(schemaJSON, &schemaMap)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	return schemaMap, nil
}
