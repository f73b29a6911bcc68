package gemini

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
	"google.golang.org/genai"
)

// Generator produces feedback, structured pitch context and model listings
// from the Gemini API.
type Generator struct {
	apiClient *genai.Client
	cfg       model.GeneratorConfig
}

var (
	_ model.FeedbackGenerator = (*Generator)(nil)
	_ model.ContextExtractor  = (*Generator)(nil)
	_ model.ModelLister       = (*Generator)(nil)
)

func NewGenerator(ctx context.Context, opts ...model.GeneratorOption) (*Generator, error) {
	cfg := model.ResolveGeneratorOpts(opts...)
	apiClient, err := newAPIClient(ctx, cfg)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return &Generator{apiClient: apiClient, cfg: cfg}, nil
}

// ModelName reports the model used for generation.
func (g *Generator) ModelName() string {
	return resolveGenerationModelName(g.cfg)
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

	config := buildGenerateContentConfig(g.cfg, p.System)
	contents := []*genai.Content{genai.NewContentFromText(p.User, genai.RoleUser)}

	log.Infof("feedback_request model=%q system_chars=%d user_chars=%d", modelName, len(p.System), len(p.User))
	response, err := g.apiClient.Models.GenerateContent(ctx, modelName, contents, config)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	applyGenerateMetadata(meta, response)

	text := strings.TrimSpace(response.Text())
	if text == "" {
		err = errors.New("response output is empty")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	return text, meta, nil
}

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
	config := buildGenerateContentConfig(g.cfg, "")
	config.ResponseMIMEType = "application/json"
	config.ResponseJsonSchema = schema

	contents := []*genai.Content{
		genai.NewContentFromText(prompt.BuildContextExtractionPrompt(description), genai.RoleUser),
	}
	response, err := g.apiClient.Models.GenerateContent(ctx, modelName, contents, config)
	if err != nil {
		log.Errorf("error: %v", err)
		return model.PitchContext{}, meta, utils.WrapIfNotNil(err)
	}
	applyGenerateMetadata(meta, response)

	out, err := prompt.ParseContext(response.Text())
	if err != nil {
		log.Errorf("error: %v", err)
		return model.PitchContext{}, meta, utils.WrapIfNotNil(err)
	}
	return out, meta, nil
}

func buildGenerateContentConfig(cfg model.GeneratorConfig, system string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if cfg.Temperature != nil {
		temp := float32(*cfg.Temperature)
		config.Temperature = &temp
	}
	if cfg.MaxTokens != nil {
		config.MaxOutputTokens = int32(*cfg.MaxTokens)
	}
	return config
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
