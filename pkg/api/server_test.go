package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/coach"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/signals"
	"github.com/stretchr/testify/suite"
)

type fakeTranscriber struct {
	mu         sync.Mutex
	transcript string
	err        error
	inputs     []model.AudioInput
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio model.AudioInput) (string, model.GenerationMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, audio)
	return f.transcript, model.GenerationMetadata{model.MetadataKeyProvider: "fake-stt"}, f.err
}

type fakeFeedback struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []model.Prompt
}

func (f *fakeFeedback) GenerateFeedback(_ context.Context, p model.Prompt) (string, model.GenerationMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	return f.reply, model.GenerationMetadata{model.MetadataKeyProvider: "fake-llm"}, f.err
}

type fakeLister struct {
	models []model.ModelInfo
	err    error
}

func (f *fakeLister) ListModels(context.Context) ([]model.ModelInfo, error) {
	return f.models, f.err
}

type panicCoach struct {
	Coach
}

func (panicCoach) Signals(string, string) (signals.Signals, error) {
	panic("boom")
}

type ServerSuite struct {
	suite.Suite
	transcriber *fakeTranscriber
	feedback    *fakeFeedback
	handler     http.Handler
	server      *httptest.Server
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.transcriber = &fakeTranscriber{transcript: "Um, we help clinics cut no-shows. Maybe by half?"}
	s.feedback = &fakeFeedback{reply: "## Overall impression\nStrong hook."}

	c, err := coach.New(coach.WithTranscriber(s.transcriber), coach.WithFeedbackGenerator(s.feedback))
	s.Require().NoError(err)

	lister := &fakeLister{models: []model.ModelInfo{
		{Name: "gemini-2.5-flash", SupportedActions: []string{"generateContent"}},
		{Name: "gemini-2.5-pro", SupportedActions: []string{"generateContent"}},
	}}
	mcpStub := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	srv := NewServer(c,
		WithModelLister(lister, "gemini-2.5-flash"),
		WithMCPHandler(mcpStub),
		WithMaxUploadBytes(1<<20),
	)
	s.handler = srv.Handler()
	s.server = httptest.NewServer(s.handler)
}

func (s *ServerSuite) TearDownTest() {
	s.server.Close()
}

func (s *ServerSuite) postJSON(path string, body any) *http.Response {
	payload, err := json.Marshal(body)
	s.Require().NoError(err)

	resp, err := http.Post(s.server.URL+path, "application/json", bytes.NewReader(payload))
	s.Require().NoError(err)
	return resp
}

func (s *ServerSuite) postAudio(path string, audio []byte, contentType string, fields map[string]string) *http.Response {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		s.Require().NoError(writer.WriteField(k, v))
	}
	if audio != nil {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="audio"; filename="pitch.webm"`)
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		s.Require().NoError(err)
		_, err = part.Write(audio)
		s.Require().NoError(err)
	}
	s.Require().NoError(writer.Close())

	resp, err := http.Post(s.server.URL+path, writer.FormDataContentType(), &body)
	s.Require().NoError(err)
	return resp
}

func decodeBody[T any](s *ServerSuite, resp *http.Response) T {
	defer resp.Body.Close()
	var out T
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (s *ServerSuite) TestHealth() {
	resp, err := http.Get(s.server.URL + "/healthz")
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.NotEmpty(resp.Header.Get(headerRequestID))

	body := decodeBody[healthResponse](s, resp)
	s.Equal("ok", body.Status)
	s.True(body.Transcriber)
	s.True(body.Feedback)
	s.True(body.ModelListing)
	s.Contains(body.Profiles, signals.ProfileTranscript)
}

func (s *ServerSuite) TestAnalyzeReturnsFeedbackAndSignals() {
	resp := s.postJSON("/api/analyze", map[string]any{
		"transcript": "Um, uh, like, we help clinics. Maybe we could grow?",
		"context":    map[string]string{"audience": "investors", "goal": "raise funding"},
	})
	s.Equal(http.StatusOK, resp.StatusCode)

	body := decodeBody[coach.Analysis](s, resp)
	s.Equal("## Overall impression\nStrong hook.", body.Feedback)
	s.Equal(signals.ProfileTranscript, body.Signals.Profile)
	s.Equal(3, body.Signals.FillerWordCount)
	s.Equal("fake-llm", body.Metadata["feedback.provider"])

	s.Require().Len(s.feedback.prompts, 1)
	s.Contains(s.feedback.prompts[0].User, "Audience: investors")
}

func (s *ServerSuite) TestAnalyzeEmptyContextIsDropped() {
	resp := s.postJSON("/api/analyze", map[string]any{
		"transcript": "We help clinics.",
		"context":    map[string]string{},
	})
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	s.Require().Len(s.feedback.prompts, 1)
	s.NotContains(s.feedback.prompts[0].User, "Context:")
}

func (s *ServerSuite) TestAnalyzeRejectsBlankTranscript() {
	resp := s.postJSON("/api/analyze", map[string]any{"transcript": "   "})
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[errorResponse](s, resp)
	s.Equal("Transcript is required", body.Error)
	s.NotEmpty(body.RequestID)
	s.Empty(s.feedback.prompts)
}

func (s *ServerSuite) TestAnalyzeRejectsMalformedJSON() {
	resp, err := http.Post(s.server.URL+"/api/analyze", "application/json", strings.NewReader("{transcript"))
	s.Require().NoError(err)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[errorResponse](s, resp)
	s.Equal("Request body must be valid JSON", body.Error)
}

func (s *ServerSuite) TestAnalyzeRejectsOversizedJSON() {
	payload := `{"transcript":"` + strings.Repeat("a", int(maxJSONBodyBytes)+10) + `"}`

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(payload)))

	s.Equal(http.StatusRequestEntityTooLarge, rec.Code)
	s.Empty(s.feedback.prompts)
}

func (s *ServerSuite) TestAnalyzeProviderFailureHidesDetails() {
	s.feedback.err = errors.New("upstream said: invalid api key sk-123")

	resp := s.postJSON("/api/analyze", map[string]any{"transcript": "We help clinics."})
	s.Equal(http.StatusInternalServerError, resp.StatusCode)

	body := decodeBody[errorResponse](s, resp)
	s.Equal("Failed to analyze pitch", body.Error)
	s.NotContains(body.Error, "sk-123")
}

func (s *ServerSuite) TestAnalyzeAudio() {
	resp := s.postAudio("/api/analyze-audio", []byte("fake-webm"), "audio/webm;codecs=opus", map[string]string{
		"audience": "hiring manager",
		"duration": "60 seconds",
	})
	s.Equal(http.StatusOK, resp.StatusCode)

	body := decodeBody[coach.Analysis](s, resp)
	s.Equal(s.transcriber.transcript, body.Transcript)
	s.Equal(signals.ProfileProviderResponse, body.Signals.Profile)
	s.Equal("fake-stt", body.Metadata["transcription.provider"])

	s.Require().Len(s.transcriber.inputs, 1)
	s.Equal([]byte("fake-webm"), s.transcriber.inputs[0].Data)
	s.Equal("pitch.webm", s.transcriber.inputs[0].FileName)
	s.Equal("audio/webm", s.transcriber.inputs[0].MIMEType)

	s.Require().Len(s.feedback.prompts, 1)
	s.Contains(s.feedback.prompts[0].User, "Audience: hiring manager")
	s.Contains(s.feedback.prompts[0].User, "Duration: 60 seconds")
}

func (s *ServerSuite) TestTranscribe() {
	resp := s.postAudio("/api/transcribe", []byte("fake-webm"), "application/octet-stream", nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	body := decodeBody[coach.Transcription](s, resp)
	s.Equal(s.transcriber.transcript, body.Transcript)
	s.Equal(1, body.Signals.QuestionMarkCount)
	s.Empty(s.feedback.prompts)

	s.Require().Len(s.transcriber.inputs, 1)
	s.Empty(s.transcriber.inputs[0].MIMEType)
}

func (s *ServerSuite) TestTranscribeRequiresAudioPart() {
	resp := s.postAudio("/api/transcribe", nil, "", map[string]string{"audience": "x"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[errorResponse](s, resp)
	s.Equal("Audio file is required", body.Error)
}

func (s *ServerSuite) TestTranscribeRejectsNonMultipart() {
	resp := s.postJSON("/api/transcribe", map[string]string{"audio": "nope"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func (s *ServerSuite) TestExtractContext() {
	s.feedback.reply = "```json\n{\"audience\":\"customers\",\"goal\":\"sign up\"}\n```"

	resp := s.postJSON("/api/extract-context", map[string]string{"contextTranscript": "pitching to customers"})
	s.Equal(http.StatusOK, resp.StatusCode)

	body := decodeBody[extractContextResponse](s, resp)
	s.Require().NotNil(body.Context)
	s.Equal("customers", body.Context.Audience)
	s.Equal("sign up", body.Context.Goal)
}

func (s *ServerSuite) TestExtractContextRejectsBlank() {
	resp := s.postJSON("/api/extract-context", map[string]string{"contextTranscript": ""})
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[errorResponse](s, resp)
	s.Equal("Context transcript is required", body.Error)
}

func (s *ServerSuite) TestSignals() {
	resp := s.postJSON("/api/signals", map[string]string{
		"transcript": "Wow! This is great! We ship!",
		"profile":    signals.ProfileTranscript,
	})
	s.Equal(http.StatusOK, resp.StatusCode)

	body := decodeBody[signalsResponse](s, resp)
	s.Equal(3, body.Signals.ExclamationMarkCount)
	s.True(body.Signals.Enthusiasm)
	s.Contains(body.Summary, "Delivery signals")
}

func (s *ServerSuite) TestSignalsUnknownProfile() {
	resp := s.postJSON("/api/signals", map[string]string{"transcript": "hi", "profile": "shouting"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	body := decodeBody[errorResponse](s, resp)
	s.Equal("Unknown signal profile", body.Error)
}

func (s *ServerSuite) TestModels() {
	resp, err := http.Get(s.server.URL + "/api/models")
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)

	body := decodeBody[modelsResponse](s, resp)
	s.Equal([]string{"gemini-2.5-flash", "gemini-2.5-pro"}, body.AvailableModels)
	s.Equal("gemini-2.5-flash", body.Recommended)
	s.Len(body.Models, 2)
}

func (s *ServerSuite) TestMCPMounted() {
	resp, err := http.Post(s.server.URL+"/mcp", "application/json", strings.NewReader("{}"))
	s.Require().NoError(err)
	s.Equal(http.StatusTeapot, resp.StatusCode)
	resp.Body.Close()
}

func (s *ServerSuite) TestRequestIDIsEchoed() {
	req, err := http.NewRequest(http.MethodGet, s.server.URL+"/healthz", nil)
	s.Require().NoError(err)
	req.Header.Set(headerRequestID, "req-123")

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal("req-123", resp.Header.Get(headerRequestID))
}

func (s *ServerSuite) TestWrongMethod() {
	resp, err := http.Get(s.server.URL + "/api/analyze")
	s.Require().NoError(err)
	s.Equal(http.StatusMethodNotAllowed, resp.StatusCode)
	resp.Body.Close()
}

type DegradedServerSuite struct {
	suite.Suite
}

func TestDegradedServerSuite(t *testing.T) {
	suite.Run(t, new(DegradedServerSuite))
}

func (s *DegradedServerSuite) TestMissingCapabilitiesReturnNotImplemented() {
	c, err := coach.New()
	s.Require().NoError(err)
	handler := NewServer(c).Handler()

	cases := []struct {
		path    string
		body    string
		message string
	}{
		{"/api/analyze", `{"transcript":"We help clinics."}`, "Feedback generation is not configured"},
		{"/api/extract-context", `{"contextTranscript":"for investors"}`, "Feedback generation is not configured"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body)))

		s.Equal(http.StatusNotImplemented, rec.Code, tc.path)
		var body errorResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Equal(tc.message, body.Error, tc.path)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	s.Equal(http.StatusNotImplemented, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/signals", strings.NewReader(`{"transcript":"um so"}`)))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *DegradedServerSuite) TestModelListingFailure() {
	c, err := coach.New()
	s.Require().NoError(err)
	handler := NewServer(c, WithModelLister(&fakeLister{err: errors.New("quota")}, "")).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))

	s.Equal(http.StatusInternalServerError, rec.Code)
	var body errorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal("Failed to list models", body.Error)
}

func (s *DegradedServerSuite) TestPanicIsRecovered() {
	handler := NewServer(panicCoach{}).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/signals", strings.NewReader(`{"transcript":"hi"}`)))

	s.Equal(http.StatusInternalServerError, rec.Code)
	s.NotEmpty(rec.Header().Get(headerRequestID))
}
