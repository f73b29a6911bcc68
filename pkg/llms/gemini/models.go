package gemini

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/utils"
	"google.golang.org/genai"
)

const probePrompt = "test"

// DefaultCandidateModels is the order in which ProbeModel tries models when
// none are given.
var DefaultCandidateModels = []string{
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"gemini-2.0-flash",
}

var ErrNoAvailableModel = errors.New("no available Gemini models found, check the API key")

// ListModels returns the models that support content generation.
func (g *Generator) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	log := logging.NewLogger(ctx)

	var out []model.ModelInfo
	for m, err := range g.apiClient.Models.All(ctx) {
		if err != nil {
			log.Errorf("error: %v", err)
			return nil, utils.WrapIfNotNil(err)
		}
		if m == nil || !supportsGeneration(m.SupportedActions) {
			continue
		}
		out = append(out, model.ModelInfo{
			Name:             strings.TrimPrefix(m.Name, "models/"),
			DisplayName:      m.DisplayName,
			SupportedActions: m.SupportedActions,
		})
	}
	log.Debugf("gemini.ListModels available=%d", len(out))
	return out, nil
}

// ProbeModel returns the first candidate that answers a trivial prompt.
func (g *Generator) ProbeModel(ctx context.Context, candidates ...string) (string, error) {
	if len(candidates) == 0 {
		candidates = DefaultCandidateModels
	}

	log := logging.NewLogger(ctx)
	contents := []*genai.Content{genai.NewContentFromText(probePrompt, genai.RoleUser)}
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, err := g.apiClient.Models.GenerateContent(ctx, candidate, contents, &genai.GenerateContentConfig{}); err != nil {
			if ctx.Err() != nil {
				return "", utils.WrapIfNotNil(ctx.Err())
			}
			log.Warnf("model %q unavailable: %v", candidate, err)
			continue
		}
		log.Infof("using gemini model %q", candidate)
		return candidate, nil
	}
	return "", ErrNoAvailableModel
}

func supportsGeneration(actions []string) bool {
	return slices.Contains(actions, "generateContent") || slices.Contains(actions, "generateContentStream")
}
