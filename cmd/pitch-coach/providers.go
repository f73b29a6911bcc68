package main

import (
	"context"
	"fmt"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/coach"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/config"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/llms/bedrock"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/llms/gemini"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/llms/ollama"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/llms/openai"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/utils"
)

// providers holds the capabilities selected by configuration. Any field may be
// nil when the matching provider is "none".
type providers struct {
	transcriber      model.Transcriber
	feedback         model.FeedbackGenerator
	contextExtractor model.ContextExtractor
	lister           model.ModelLister
	recommended      string
}

func buildProviders(ctx context.Context, cfg *config.Config) (*providers, error) {
	log := logging.NewLogger(ctx)
	p := &providers{}

	switch cfg.Transcriber {
	case config.ProviderOpenAI:
		p.transcriber = openai.NewTranscriber(model.AudioOptions{
			URL:       cfg.OpenAI.BaseURL,
			AuthToken: cfg.OpenAI.APIKey,
			Model:     cfg.OpenAI.AudioModel,
			Keywords:  cfg.Keywords(),
		})
	case config.ProviderGemini:
		transcriber, err := gemini.NewTranscriber(ctx, model.AudioOptions{
			URL:       cfg.Gemini.BaseURL,
			AuthToken: cfg.Gemini.APIKey,
			Model:     cfg.Gemini.AudioModel,
			Keywords:  cfg.Keywords(),
		})
		if err != nil {
			log.Errorf("error: %v", err)
			return nil, utils.WrapIfNotNil(err)
		}
		p.transcriber = transcriber
	case config.ProviderNone:
	default:
		return nil, fmt.Errorf("unsupported transcriber %q", cfg.Transcriber)
	}

	// Model listing only needs a Gemini key, whichever provider gives feedback.
	// It is optional unless Gemini also serves feedback.
	var geminiGen *gemini.Generator
	if cfg.Gemini.APIKey != "" {
		gen, err := newGeminiGenerator(ctx, cfg)
		switch {
		case err == nil:
			geminiGen = gen
			p.lister = gen
			p.recommended = gen.ModelName()
		case cfg.Feedback == config.ProviderGemini:
			log.Errorf("error: %v", err)
			return nil, utils.WrapIfNotNil(err)
		default:
			log.Warnf("gemini model listing disabled: %v", err)
		}
	}

	switch cfg.Feedback {
	case config.ProviderOpenAI:
		gen := openai.NewGenerator(generatorOptions(cfg, cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, cfg.OpenAI.Model)...)
		p.feedback, p.contextExtractor = gen, gen
	case config.ProviderGemini:
		p.feedback, p.contextExtractor = geminiGen, geminiGen
	case config.ProviderBedrock:
		gen, err := bedrock.NewGenerator(ctx, generatorOptions(cfg, cfg.Bedrock.Endpoint, "", cfg.Bedrock.Model)...)
		if err != nil {
			log.Errorf("error: %v", err)
			return nil, utils.WrapIfNotNil(err)
		}
		p.feedback = gen
	case config.ProviderOllama:
		gen := ollama.NewGenerator(generatorOptions(cfg, cfg.Ollama.BaseURL, "", cfg.Ollama.Model)...)
		p.feedback, p.contextExtractor = gen, gen
	case config.ProviderNone:
	default:
		return nil, fmt.Errorf("unsupported feedback provider %q", cfg.Feedback)
	}

	return p, nil
}

// newGeminiGenerator builds the Gemini generator, probing the fallback model
// list first when no model is pinned and probing is enabled.
func newGeminiGenerator(ctx context.Context, cfg *config.Config) (*gemini.Generator, error) {
	opts := generatorOptions(cfg, cfg.Gemini.BaseURL, cfg.Gemini.APIKey, cfg.Gemini.Model)
	gen, err := gemini.NewGenerator(ctx, opts...)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	if cfg.Gemini.Model != "" || !cfg.Gemini.ProbeModels {
		return gen, nil
	}

	modelName, err := gen.ProbeModel(ctx)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return gemini.NewGenerator(ctx, append(opts, model.WithModel(modelName))...)
}

func generatorOptions(cfg *config.Config, url, token, modelName string) []model.GeneratorOption {
	opts := []model.GeneratorOption{
		model.WithURL(url),
		model.WithAuthToken(token),
		model.WithModel(modelName),
	}
	if cfg.Temperature != nil {
		opts = append(opts, model.WithTemperature(*cfg.Temperature))
	}
	return opts
}

func coachOptions(cfg *config.Config, p *providers) []coach.Option {
	opts := []coach.Option{
		coach.WithProfiles(cfg.ProfilesOrDefault()),
		coach.WithExtractorOptions(cfg.Signals.ExtractorOptions()...),
	}
	if p.transcriber != nil {
		opts = append(opts, coach.WithTranscriber(p.transcriber))
	}
	if p.feedback != nil {
		opts = append(opts, coach.WithFeedbackGenerator(p.feedback))
	}
	if p.contextExtractor != nil {
		opts = append(opts, coach.WithContextExtractor(p.contextExtractor))
	}
	return opts
}
