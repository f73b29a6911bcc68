package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	openai "github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/suite"
)

type TranscriberSuite struct {
	suite.Suite
}

func TestTranscriberSuite(t *testing.T) {
	suite.Run(t, new(TranscriberSuite))
}

func (s *TranscriberSuite) TestTranscribeEmptyAudioReturnsError() {
	transcriber := NewTranscriber(model.AudioOptions{AuthToken: "test"})

	_, meta, err := transcriber.Transcribe(context.Background(), model.AudioInput{})

	s.Require().Error(err)
	s.Contains(err.Error(), "audio data is required")
	s.Equal(providerName, meta[model.MetadataKeyProvider])
	s.NotEmpty(meta[model.MetadataKeyLatencyMs])
}

func (s *TranscriberSuite) TestTranscribeAgainstFakeServer() {
	var gotPrompt, gotModel, gotFileName string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.True(strings.HasSuffix(r.URL.Path, "/audio/transcriptions"), r.URL.Path)
		s.Require().NoError(r.ParseMultipartForm(1 << 20))
		gotPrompt = r.FormValue("prompt")
		gotModel = r.FormValue("model")
		_, header, err := r.FormFile("file")
		s.Require().NoError(err)
		gotFileName = header.Filename

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"  Um, we help clinics.  ","usage":{"type":"tokens","input_tokens":10,"output_tokens":5,"total_tokens":15}}`))
	}))
	defer server.Close()

	transcriber := NewTranscriber(model.AudioOptions{
		URL:       server.URL + "/v1/",
		AuthToken: "test",
		Keywords:  []model.AudioKeyword{{Word: "Kubernetes"}},
	})

	transcript, meta, err := transcriber.Transcribe(context.Background(), model.AudioInput{
		Data:     []byte("fake-audio"),
		FileName: "take1.m4a",
		MIMEType: "audio/mp4",
	})

	s.Require().NoError(err)
	s.Equal("Um, we help clinics.", transcript)
	s.Equal(defaultAudioTranscriptionModelName, gotModel)
	s.Equal("take1.m4a", gotFileName)
	s.Equal(`Common missed words: [{"word":"Kubernetes"}]`, gotPrompt)
	s.Equal("10", meta[model.MetadataKeyInputTokens])
	s.Equal("15", meta[model.MetadataKeyTotalTokens])
}

func (s *TranscriberSuite) TestResolveAudioTranscriptionModelNameUsesDefault() {
	s.Equal(defaultAudioTranscriptionModelName, resolveAudioTranscriptionModelName(model.AudioOptions{}))
}

func (s *TranscriberSuite) TestResolveAudioTranscriptionModelNameUsesConfigValue() {
	resolved := resolveAudioTranscriptionModelName(model.AudioOptions{
		Model: string(openai.AudioModelGPT4oMiniTranscribe),
	})
	s.Equal(string(openai.AudioModelGPT4oMiniTranscribe), resolved)
}

func (s *TranscriberSuite) TestResolveAudioFileNameKeepsExtension() {
	s.Equal("take.wav", resolveAudioFileName(model.AudioInput{FileName: "take.wav"}))
	s.Equal(defaultAudioFileName, resolveAudioFileName(model.AudioInput{FileName: "blob"}))
	s.Equal(defaultAudioFileName, resolveAudioFileName(model.AudioInput{}))
}

func (s *TranscriberSuite) TestAudioGeneratorConfigFromOptionsMapsFields() {
	cfg := audioGeneratorConfigFromOptions(model.AudioOptions{
		URL:       "https://example.local/v1",
		AuthToken: "abc",
		Model:     "whisper-1",
	})

	s.Equal("https://example.local/v1", cfg.URL)
	s.Equal("abc", cfg.AuthToken)
	s.Require().NotNil(cfg.Model)
	s.Equal("whisper-1", *cfg.Model)
}

func (s *TranscriberSuite) TestCloneAudioOptionsCopiesKeywords() {
	opts := model.AudioOptions{
		Keywords: []model.AudioKeyword{
			{
				Word:           "SaaS",
				CommonMistypes: []string{"sass", "sas"},
				Definition:     "Software as a service.",
			},
		},
	}

	cloned := cloneAudioOptions(opts)
	cloned.Keywords[0].Word = "changed"
	cloned.Keywords[0].CommonMistypes[0] = "changed-mistype"

	s.Equal("SaaS", opts.Keywords[0].Word)
	s.Equal("sass", opts.Keywords[0].CommonMistypes[0])
}

func (s *TranscriberSuite) TestBuildCommonMissedWordsPromptSkipsEmptyKeywordEntries() {
	prompt, err := buildCommonMissedWordsPrompt([]model.AudioKeyword{
		{},
		{
			Word:           " runway ",
			CommonMistypes: []string{" ", "run way"},
		},
	})
	s.Require().NoError(err)

	payload := strings.TrimPrefix(prompt, "Common missed words: ")
	var parsed []model.AudioKeyword
	s.Require().NoError(json.Unmarshal([]byte(payload), &parsed))
	s.Require().Len(parsed, 1)
	s.Equal("runway", parsed[0].Word)
	s.Equal([]string{"run way"}, parsed[0].CommonMistypes)
}

func (s *TranscriberSuite) TestBuildAudioTranscriptionPromptUsesCustomPrompt() {
	prompt, err := buildAudioTranscriptionPrompt(model.AudioOptions{
		Prompt:   "Use this exact audio prompt.",
		Keywords: []model.AudioKeyword{{Word: "should-not-appear"}},
	})
	s.Require().NoError(err)
	s.Equal("Use this exact audio prompt.", prompt)
}

func (s *TranscriberSuite) TestBuildAudioTranscriptionPromptEmptyWithoutKeywords() {
	prompt, err := buildAudioTranscriptionPrompt(model.AudioOptions{})
	s.Require().NoError(err)
	s.Empty(prompt)
}

func (s *TranscriberSuite) TestApplyAudioTranscriptionMetadataUsesTokenUsage() {
	meta := model.GenerationMetadata{}
	response := &openai.AudioTranscriptionNewResponseUnion{
		Usage: openai.AudioTranscriptionNewResponseUnionUsage{
			InputTokens:  10,
			OutputTokens: 5,
			TotalTokens:  15,
			Type:         "tokens",
		},
	}

	applyAudioTranscriptionMetadata(meta, response)

	s.Equal("10", meta[model.MetadataKeyInputTokens])
	s.Equal("5", meta[model.MetadataKeyOutputTokens])
	s.Equal("15", meta[model.MetadataKeyTotalTokens])
}
