// Package coach wires transcription, delivery-signal extraction, prompt
// construction and feedback generation into a single pipeline.
package coach

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/prompt"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/signals"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/utils"
)

var (
	ErrEmptyTranscript        = errors.New("transcript is required")
	ErrEmptyContext           = errors.New("context description is required")
	ErrEmptyAudio             = errors.New("audio is required")
	ErrUnknownProfile         = errors.New("unknown signal profile")
	ErrTranscriberUnavailable = errors.New("no transcription provider configured")
	ErrFeedbackUnavailable    = errors.New("no feedback provider configured")
)

const (
	metaPrefixTranscription = "transcription."
	metaPrefixFeedback      = "feedback."
)

// AnalyzeRequest is a typed or pasted pitch with optional context.
type AnalyzeRequest struct {
	Transcript string
	Context    *model.PitchContext
}

// Analysis is the result of coaching one pitch.
type Analysis struct {
	Transcript string                   `json:"transcript,omitempty"`
	Feedback   string                   `json:"feedback"`
	Signals    signals.Signals          `json:"signals"`
	Metadata   model.GenerationMetadata `json:"metadata,omitempty"`
}

// Transcription is a provider transcript with the signals taken from it.
type Transcription struct {
	Transcript string                   `json:"transcript"`
	Signals    signals.Signals          `json:"signals"`
	Metadata   model.GenerationMetadata `json:"metadata,omitempty"`
}

// Coach is safe for concurrent use once built.
type Coach struct {
	transcriber      model.Transcriber
	feedback         model.FeedbackGenerator
	contextExtractor model.ContextExtractor
	extractors       map[string]*signals.Extractor
	profileNames     []string
}

type Option func(*options)

type options struct {
	transcriber      model.Transcriber
	feedback         model.FeedbackGenerator
	contextExtractor model.ContextExtractor
	profiles         signals.Profiles
	extractorOpts    []signals.Option
}

func WithTranscriber(t model.Transcriber) Option {
	return func(o *options) {
		o.transcriber = t
	}
}

func WithFeedbackGenerator(g model.FeedbackGenerator) Option {
	return func(o *options) {
		o.feedback = g
	}
}

// WithContextExtractor sets a provider with native structured output. Without
// one, context is extracted by prompting the feedback generator for JSON.
func WithContextExtractor(e model.ContextExtractor) Option {
	return func(o *options) {
		o.contextExtractor = e
	}
}

// WithProfiles replaces the threshold profiles. Both built-in profile names
// must be present.
func WithProfiles(p signals.Profiles) Option {
	return func(o *options) {
		o.profiles = p
	}
}

// WithExtractorOptions is applied to every profile's extractor, for example to
// change the filler vocabulary.
func WithExtractorOptions(opts ...signals.Option) Option {
	return func(o *options) {
		o.extractorOpts = append(o.extractorOpts, opts...)
	}
}

func New(opts ...Option) (*Coach, error) {
	o := options{profiles: signals.DefaultProfiles()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	for _, required := range []string{signals.ProfileTranscript, signals.ProfileProviderResponse} {
		if _, ok := o.profiles.Lookup(required); !ok {
			return nil, utils.WrapIfNotNil(fmt.Errorf("%w: %q is missing", ErrUnknownProfile, required))
		}
	}

	extractors := make(map[string]*signals.Extractor, len(o.profiles))
	for _, name := range o.profiles.Names() {
		thresholds := o.profiles[name]
		if err := thresholds.Validate(); err != nil {
			return nil, utils.WrapIfNotNil(err, "profile "+name)
		}
		extractorOpts := append(append([]signals.Option(nil), o.extractorOpts...), signals.WithProfile(name, thresholds))
		extractors[name] = signals.NewExtractor(extractorOpts...)
	}

	return &Coach{
		transcriber:      o.transcriber,
		feedback:         o.feedback,
		contextExtractor: o.contextExtractor,
		extractors:       extractors,
		profileNames:     o.profiles.Names(),
	}, nil
}

// Profiles lists the configured signal profile names.
func (c *Coach) Profiles() []string {
	return append([]string(nil), c.profileNames...)
}

func (c *Coach) CanTranscribe() bool {
	return c.transcriber != nil
}

func (c *Coach) CanGenerateFeedback() bool {
	return c.feedback != nil
}

// Signals runs the named profile over transcript. Blank input is not an error.
func (c *Coach) Signals(transcript, profile string) (signals.Signals, error) {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		profile = signals.ProfileTranscript
	}
	extractor, ok := c.extractors[profile]
	if !ok {
		return signals.Signals{}, utils.WrapIfNotNil(fmt.Errorf("%w: %q", ErrUnknownProfile, profile))
	}
	return extractor.Extract(transcript), nil
}

// AnalyzeTranscript coaches user-entered text using the transcript profile.
func (c *Coach) AnalyzeTranscript(ctx context.Context, req AnalyzeRequest) (*Analysis, error) {
	log := logging.NewLogger(ctx)
	if strings.TrimSpace(req.Transcript) == "" {
		return nil, utils.WrapIfNotNil(ErrEmptyTranscript)
	}

	delivery := c.extractors[signals.ProfileTranscript].Extract(req.Transcript)
	log.Infof("analyze_transcript words=%d flags=%v", delivery.WordCount, delivery.Active())

	feedback, meta, err := c.generateFeedback(ctx, req.Transcript, req.Context, delivery)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	return &Analysis{
		Feedback: feedback,
		Signals:  delivery,
		Metadata: meta,
	}, nil
}

// AnalyzeAudio transcribes audio, then coaches the transcript using the
// provider_response profile.
func (c *Coach) AnalyzeAudio(ctx context.Context, audio model.AudioInput, pitchCtx *model.PitchContext) (*Analysis, error) {
	transcription, err := c.Transcribe(ctx, audio)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	feedback, feedbackMeta, err := c.generateFeedback(ctx, transcription.Transcript, pitchCtx, transcription.Signals)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	meta := model.GenerationMetadata{}
	meta.Merge(metaPrefixTranscription, transcription.Metadata)
	meta.Merge("", feedbackMeta)

	return &Analysis{
		Transcript: transcription.Transcript,
		Feedback:   feedback,
		Signals:    transcription.Signals,
		Metadata:   meta,
	}, nil
}

// Transcribe converts audio to text and extracts provider_response signals.
func (c *Coach) Transcribe(ctx context.Context, audio model.AudioInput) (*Transcription, error) {
	log := logging.NewLogger(ctx)
	if c.transcriber == nil {
		return nil, utils.WrapIfNotNil(ErrTranscriberUnavailable)
	}
	if len(audio.Data) == 0 {
		return nil, utils.WrapIfNotNil(ErrEmptyAudio)
	}

	transcript, meta, err := c.transcriber.Transcribe(ctx, audio)
	if err != nil {
		log.Errorf("error: %v", err)
		return nil, utils.WrapIfNotNil(err)
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, utils.WrapIfNotNil(ErrEmptyTranscript)
	}

	delivery := c.extractors[signals.ProfileProviderResponse].Extract(transcript)
	log.Infof("transcribed words=%d flags=%v", delivery.WordCount, delivery.Active())

	return &Transcription{
		Transcript: transcript,
		Signals:    delivery,
		Metadata:   meta,
	}, nil
}

// ExtractContext turns a free-form description into a PitchContext.
func (c *Coach) ExtractContext(ctx context.Context, description string) (*model.PitchContext, error) {
	log := logging.NewLogger(ctx)
	if strings.TrimSpace(description) == "" {
		return nil, utils.WrapIfNotNil(ErrEmptyContext)
	}

	if c.contextExtractor != nil {
		pitchCtx, _, err := c.contextExtractor.ExtractContext(ctx, description)
		if err != nil {
			log.Errorf("error: %v", err)
			return nil, utils.WrapIfNotNil(err)
		}
		return &pitchCtx, nil
	}

	if c.feedback == nil {
		return nil, utils.WrapIfNotNil(ErrFeedbackUnavailable)
	}
	text, _, err := c.feedback.GenerateFeedback(ctx, model.Prompt{
		User: prompt.BuildContextExtractionPrompt(description),
	})
	if err != nil {
		log.Errorf("error: %v", err)
		return nil, utils.WrapIfNotNil(err)
	}

	pitchCtx, err := prompt.ParseContext(text)
	if err != nil {
		log.Errorf("error: %v", err)
		return nil, utils.WrapIfNotNil(err)
	}
	return &pitchCtx, nil
}

func (c *Coach) generateFeedback(
	ctx context.Context,
	transcript string,
	pitchCtx *model.PitchContext,
	delivery signals.Signals,
) (string, model.GenerationMetadata, error) {
	if c.feedback == nil {
		return "", nil, utils.WrapIfNotNil(ErrFeedbackUnavailable)
	}

	p := prompt.BuildFeedbackPrompt(transcript, pitchCtx, &delivery)
	feedback, meta, err := c.feedback.GenerateFeedback(ctx, p)
	if err != nil {
		logging.NewLogger(ctx).Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	out := model.GenerationMetadata{}
	out.Merge(metaPrefixFeedback, meta)
	return feedback, out, nil
}
