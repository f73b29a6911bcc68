package tests

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/coach"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/llms/gemini"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/llms/openai"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/signals"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const defaultAudioFixturePath = "data/pitch_sample.m4a"

var pitchKeywords = []model.AudioKeyword{
	{Word: "no-shows", CommonMistypes: []string{"no shows", "noshows"}},
	{Word: "rebook", Definition: "schedule a new appointment"},
}

// transcriptionSuite runs one provider's Transcriber through the coach.
type transcriptionSuite struct {
	ExternalDependenciesSuite
	audio    model.AudioInput
	provider string
}

func (s *transcriptionSuite) loadFixture() {
	path := strings.TrimSpace(os.Getenv("PITCH_AUDIO_FIXTURE"))
	if path == "" {
		path = defaultAudioFixturePath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		s.T().Skipf("%s is not accessible (%v); skipping audio integration test", path, err)
	}
	s.audio = model.AudioInput{Data: data, FileName: filepath.Base(path)}
}

func (s *transcriptionSuite) runTranscription(transcriber model.Transcriber) {
	ctx, cancel := s.providerContext()
	defer cancel()

	c, err := coach.New(coach.WithTranscriber(transcriber))
	require.NoError(s.T(), err)

	result, err := c.Transcribe(ctx, s.audio)
	require.NoError(s.T(), err)
	assert.NotEmpty(s.T(), strings.TrimSpace(result.Transcript))
	assert.Equal(s.T(), signals.ProfileProviderResponse, result.Signals.Profile)
	assert.Positive(s.T(), result.Signals.WordCount)
	assert.Equal(s.T(), s.provider, result.Metadata[model.MetadataKeyProvider])
	assert.NotEmpty(s.T(), result.Metadata[model.MetadataKeyLatencyMs])
	assert.NotEmpty(s.T(), result.Metadata[model.MetadataKeyModel])
}

type OpenAITranscriptionIntegrationSuite struct {
	transcriptionSuite
}

func TestOpenAITranscriptionIntegrationSuite(t *testing.T) {
	suite.Run(t, new(OpenAITranscriptionIntegrationSuite))
}

func (s *OpenAITranscriptionIntegrationSuite) SetupSuite() {
	s.ExternalDependenciesSuite.SetupSuite()
	s.envOrSkip("OPENAI_API_KEY")
	s.loadFixture()
	s.provider = "openai"
}

func (s *OpenAITranscriptionIntegrationSuite) TestTranscribe() {
	s.runTranscription(openai.NewTranscriber(model.AudioOptions{
		AuthToken: os.Getenv("OPENAI_API_KEY"),
		URL:       os.Getenv("OPENAI_BASE_URL"),
		Model:     os.Getenv("OPENAI_AUDIO_MODEL"),
		Keywords:  pitchKeywords,
	}))
}

type GeminiTranscriptionIntegrationSuite struct {
	transcriptionSuite
	apiKey string
}

func TestGeminiTranscriptionIntegrationSuite(t *testing.T) {
	suite.Run(t, new(GeminiTranscriptionIntegrationSuite))
}

func (s *GeminiTranscriptionIntegrationSuite) SetupSuite() {
	s.ExternalDependenciesSuite.SetupSuite()
	s.apiKey = s.envOrSkip("GEMINI_KEY", "GOOGLE_AI_API_KEY")
	s.loadFixture()
	s.provider = "gemini"
}

func (s *GeminiTranscriptionIntegrationSuite) TestTranscribe() {
	ctx, cancel := s.providerContext()
	defer cancel()

	transcriber, err := gemini.NewTranscriber(ctx, model.AudioOptions{
		AuthToken: s.apiKey,
		URL:       os.Getenv("GEMINI_BASE_URL"),
		Model:     os.Getenv("GEMINI_AUDIO_MODEL"),
		Keywords:  pitchKeywords,
	})
	require.NoError(s.T(), err)
	s.runTranscription(transcriber)
}
