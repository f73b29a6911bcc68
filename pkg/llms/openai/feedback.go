package openai

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
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

// Generator implements feedback generation and structured context extraction
// on the Responses API.
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
	modelName := resolveModelName(g.cfg)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	if strings.TrimSpace(p.User) == "" {
		err := errors.New("prompt is required")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	log.Infof("feedback_request model=%q system_chars=%d user_chars=%d", modelName, len(p.System), len(p.User))

	params := g.buildParams(ctx, modelName, p, nil)
	response, err := g.client.apiClient.Responses.New(ctx, params)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	if response == nil {
		err = errors.New("responses API returned nil response")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	applyResponseMetadata(meta, response)

	output := strings.TrimSpace(response.OutputText())
	if output == "" {
		err = errors.New("response output is empty")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	return output, meta, nil
}

func (g *Generator) ExtractContext(ctx context.Context, description string) (model.PitchContext, model.GenerationMetadata, error) {
	start := time.Now()
	modelName := resolveModelName(g.cfg)
	meta := initMetadata(modelName)
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	if strings.TrimSpace(description) == "" {
		err := errors.New("description is required")
		log.Errorf("error: %v", err)
		return model.PitchContext{}, meta, utils.WrapIfNotNil(err)
	}

	schema, err := generateSchema[model.PitchContext]()
	if err != nil {
		log.Errorf("error: %v", err)
		return model.PitchContext{}, meta, utils.WrapIfNotNil(err)
	}
	textCfg := responses.ResponseTextConfigParam{
		Format: responses.ResponseFormatTextConfigUnionParam{
			OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
				Name:   "pitch_context",
				Schema: schema,
				Strict: openai.Bool(true),
			},
		},
	}

	p := model.Prompt{User: prompt.BuildContextExtractionPrompt(description)}
	response, err := g.client.apiClient.Responses.New(ctx, g.buildParams(ctx, modelName, p, &textCfg))
	if err != nil {
		log.Errorf("error: %v", err)
		return model.PitchContext{}, meta, utils.WrapIfNotNil(err)
	}
	if response == nil {
		err = errors.New("responses API returned nil response")
		log.Errorf("error: %v", err)
		return model.PitchContext{}, meta, utils.WrapIfNotNil(err)
	}
	applyResponseMetadata(meta, response)

	var out model.PitchContext
	if err := json.Unmarshal([]byte(strings.TrimSpace(response.OutputText())), &out); err != nil {
		log.Errorf("error: %v", err)
		return model.PitchContext{}, meta, utils.WrapIfNotNil(err)
	}
	return out, meta, nil
}

func (g *Generator) buildParams(
	ctx context.Context,
	modelName string,
	p model.Prompt,
	textCfg *responses.ResponseTextConfigParam,
) responses.ResponseNewParams {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(modelName),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: buildInputItems(p),
		},
	}
	if temperature := resolveTemperature(ctx, g.cfg, modelName); temperature != nil {
		params.Temperature = openai.Float(*temperature)
	}
	if g.cfg.MaxTokens != nil {
		params.MaxOutputTokens = openai.Int(int64(*g.cfg.MaxTokens))
	}
	if textCfg != nil {
		params.Text = *textCfg
	}
	return params
}

func buildInputItems(p model.Prompt) responses.ResponseInputParam {
	items := make(responses.ResponseInputParam, 0, 2)
	if system := strings.TrimSpace(p.System); system != "" {
		items = append(items, responses.ResponseInputItemParamOfMessage(system, responses.EasyInputMessageRoleSystem))
	}
	items = append(items, responses.ResponseInputItemParamOfMessage(p.User, responses.EasyInputMessageRoleUser))
	return items
}

func generateSchema[T any]() (map[string]any, error) {
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
