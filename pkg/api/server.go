// Package api is the HTTP surface of the pitch coach: JSON and multipart
// endpoints over the coaching pipeline plus the MCP tools at /mcp.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/coach"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/model"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/signals"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/utils"
)

const (
	defaultMaxUploadBytes int64 = 25 << 20
	maxJSONBodyBytes      int64 = 1 << 20
	multipartMemoryBytes  int64 = 8 << 20

	audioFormField = "audio"
)

// Coach is the pipeline the handlers drive.
type Coach interface {
	Profiles() []string
	CanTranscribe() bool
	CanGenerateFeedback() bool
	Signals(transcript, profile string) (signals.Signals, error)
	AnalyzeTranscript(ctx context.Context, req coach.AnalyzeRequest) (*coach.Analysis, error)
	AnalyzeAudio(ctx context.Context, audio model.AudioInput, pitchCtx *model.PitchContext) (*coach.Analysis, error)
	Transcribe(ctx context.Context, audio model.AudioInput) (*coach.Transcription, error)
	ExtractContext(ctx context.Context, description string) (*model.PitchContext, error)
}

type Option func(*Server)

// WithModelLister enables GET /api/models. recommended is reported as the
// preferred model, usually the one the feedback generator is using.
func WithModelLister(lister model.ModelLister, recommended string) Option {
	return func(s *Server) {
		s.lister = lister
		s.recommended = recommended
	}
}

func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) {
		s.mcpHandler = h
	}
}

// WithMaxUploadBytes caps multipart bodies. Non-positive values keep the default.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

type Server struct {
	coach          Coach
	lister         model.ModelLister
	recommended    string
	mcpHandler     http.Handler
	maxUploadBytes int64
}

func NewServer(c Coach, opts ...Option) *Server {
	s := &Server{
		coach:          c,
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler returns the routed handler with request ids and panic recovery applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/analyze-audio", s.handleAnalyzeAudio)
	mux.HandleFunc("POST /api/transcribe", s.handleTranscribe)
	mux.HandleFunc("POST /api/extract-context", s.handleExtractContext)
	mux.HandleFunc("POST /api/signals", s.handleSignals)
	mux.HandleFunc("GET /api/models", s.handleModels)
	if s.mcpHandler != nil {
		mux.Handle("/mcp", s.mcpHandler)
	}
	return withRequestID(withRecovery(mux))
}

type healthResponse struct {
	Status       string   `json:"status"`
	Transcriber  bool     `json:"transcriber"`
	Feedback     bool     `json:"feedback"`
	Profiles     []string `json:"profiles"`
	ModelListing bool     `json:"modelListing"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "ok",
		Transcriber:  s.coach.CanTranscribe(),
		Feedback:     s.coach.CanGenerateFeedback(),
		Profiles:     s.coach.Profiles(),
		ModelListing: s.lister != nil,
	})
}

type analyzeRequest struct {
	Transcript string              `json:"transcript"`
	Context    *model.PitchContext `json:"context,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}

	pitchCtx := req.Context
	if pitchCtx != nil && pitchCtx.IsZero() {
		pitchCtx = nil
	}

	analysis, err := s.coach.AnalyzeTranscript(r.Context(), coach.AnalyzeRequest{
		Transcript: req.Transcript,
		Context:    pitchCtx,
	})
	if err != nil {
		writeError(w, r, err, "Failed to analyze pitch")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleAnalyzeAudio(w http.ResponseWriter, r *http.Request) {
	audio, err := s.readAudio(w, r)
	if err != nil {
		writeError(w, r, err, "Failed to read audio")
		return
	}

	analysis, err := s.coach.AnalyzeAudio(r.Context(), audio, contextFromForm(r))
	if err != nil {
		writeError(w, r, err, "Failed to analyze pitch")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	audio, err := s.readAudio(w, r)
	if err != nil {
		writeError(w, r, err, "Failed to read audio")
		return
	}

	transcription, err := s.coach.Transcribe(r.Context(), audio)
	if err != nil {
		writeError(w, r, err, "Failed to transcribe audio")
		return
	}
	writeJSON(w, http.StatusOK, transcription)
}

type extractContextRequest struct {
	ContextTranscript string `json:"contextTranscript"`
}

type extractContextResponse struct {
	Context *model.PitchContext `json:"context"`
}

func (s *Server) handleExtractContext(w http.ResponseWriter, r *http.Request) {
	var req extractContextRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}

	pitchCtx, err := s.coach.ExtractContext(r.Context(), req.ContextTranscript)
	if err != nil {
		writeError(w, r, err, "Failed to extract context")
		return
	}
	writeJSON(w, http.StatusOK, extractContextResponse{Context: pitchCtx})
}

type signalsRequest struct {
	Transcript string `json:"transcript"`
	Profile    string `json:"profile"`
}

type signalsResponse struct {
	Signals signals.Signals `json:"signals"`
	Summary string          `json:"summary"`
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	var req signalsRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "")
		return
	}

	result, err := s.coach.Signals(req.Transcript, req.Profile)
	if err != nil {
		writeError(w, r, err, "Failed to analyze delivery")
		return
	}
	writeJSON(w, http.StatusOK, signalsResponse{Signals: result, Summary: signals.Render(result)})
}

type modelsResponse struct {
	AvailableModels []string          `json:"availableModels"`
	Models          []model.ModelInfo `json:"models"`
	Recommended     string            `json:"recommended"`
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if s.lister == nil {
		writeError(w, r, errModelsDisabled, "")
		return
	}

	models, err := s.lister.ListModels(r.Context())
	if err != nil {
		writeError(w, r, err, "Failed to list models")
		return
	}

	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	writeJSON(w, http.StatusOK, modelsResponse{
		AvailableModels: names,
		Models:          models,
		Recommended:     s.recommended,
	})
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return err
		}
		return errBadJSON
	}
	return nil
}

func (s *Server) readAudio(w http.ResponseWriter, r *http.Request) (model.AudioInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return model.AudioInput{}, err
		}
		return model.AudioInput{}, errAudioRequired
	}

	file, header, err := r.FormFile(audioFormField)
	if err != nil {
		return model.AudioInput{}, errAudioRequired
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		return model.AudioInput{}, utils.WrapIfNotNil(err)
	}

	fileName := ""
	if header.Filename != "" {
		fileName = filepath.Base(header.Filename)
	}
	return model.AudioInput{
		Data:     buf.Bytes(),
		FileName: fileName,
		MIMEType: uploadMIMEType(header.Header.Get("Content-Type")),
	}, nil
}

func uploadMIMEType(raw string) string {
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil || mediaType == "application/octet-stream" {
		return ""
	}
	return mediaType
}

func contextFromForm(r *http.Request) *model.PitchContext {
	field := func(name string) string {
		return strings.TrimSpace(r.FormValue(name))
	}

	pitchCtx := model.PitchContext{
		Audience:      field("audience"),
		Goal:          field("goal"),
		Duration:      field("duration"),
		Scenario:      field("scenario"),
		EnglishLevel:  field("english_level"),
		ToneStyle:     field("tone_style"),
		Constraints:   field("constraints"),
		NotesFromUser: field("notes_from_user"),
	}
	if pitchCtx.IsZero() {
		return nil
	}
	return &pitchCtx
}
