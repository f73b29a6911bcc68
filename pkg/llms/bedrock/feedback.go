package bedrock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// Generator produces coaching feedback through the Bedrock Converse API.
type Generator struct {
	client converser
	cfg    model.GeneratorConfig
}

var _ model.FeedbackGenerator = (*Generator)(nil)

// NewGenerator resolves AWS credentials from the environment and builds a
// runtime client.
func NewGenerator(ctx context.Context, opts ...model.GeneratorOption) (*Generator, error) {
	cfg := model.ResolveGeneratorOpts(opts...)
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return &Generator{client: client, cfg: cfg}, nil
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

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(modelName),
		Messages:        buildMessages(p),
		System:          buildSystem(p),
		InferenceConfig: buildInferenceConfig(g.cfg),
	}

	log.Infof("feedback_request model=%q system_chars=%d user_chars=%d", modelName, len(p.System), len(p.User))
	output, err := g.client.Converse(ctx, input)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	applyConverseMetadata(meta, output)

	message, err := extractOutputMessage(output.Output)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	text := extractTextFromMessage(message)
	if text == "" {
		err = errors.New("response output is empty")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	return text, meta, nil
}

func buildSystem(p model.Prompt) []bedrocktypes.SystemContentBlock {
	system := strings.TrimSpace(p.System)
	if system == "" {
		return nil
	}
	return []bedrocktypes.SystemContentBlock{
		&bedrocktypes.SystemContentBlockMemberText{Value: system},
	}
}

func buildMessages(p model.Prompt) []bedrocktypes.Message {
	return []bedrocktypes.Message{
		{
			Role: bedrocktypes.ConversationRoleUser,
			Content: []bedrocktypes.ContentBlock{
				&bedrocktypes.ContentBlockMemberText{Value: p.User},
			},
		},
	}
}

func buildInferenceConfig(cfg model.GeneratorConfig) *bedrocktypes.InferenceConfiguration {
	if cfg.MaxTokens == nil && cfg.Temperature == nil {
		return nil
	}

	inference := &bedrocktypes.InferenceConfiguration{}
	if cfg.MaxTokens != nil {
		inference.MaxTokens = aws.Int32(int32(*cfg.MaxTokens))
	}
	if cfg.Temperature != nil {
		inference.Temperature = aws.Float32(float32(*cfg.Temperature))
	}
	return inference
}

func extractOutputMessage(output bedrocktypes.ConverseOutput) (bedrocktypes.Message, error) {
	if output == nil {
		return bedrocktypes.Message{}, utils.WrapIfNotNil(errors.New("converse output is nil"))
	}

	messageOutput, ok := output.(*bedrocktypes.ConverseOutputMemberMessage)
	if !ok || messageOutput == nil {
		return bedrocktypes.Message{}, utils.WrapIfNotNil(errors.New("converse output is not a message"))
	}
	return messageOutput.Value, nil
}

func extractTextFromMessage(message bedrocktypes.Message) string {
	parts := make([]string, 0)
	for _, block := range message.Content {
		textBlock, ok := block.(*bedrocktypes.ContentBlockMemberText)
		if !ok || textBlock == nil {
			continue
		}
		value := strings.TrimSpace(textBlock.Value)
		if value == "" {
			continue
		}
		parts = append(parts, value)
	}
	return strings.Join(parts, "\n")
}
