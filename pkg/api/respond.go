package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/coach"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/logging"
)

var (
	errBadJSON        = errors.New("request body must be valid JSON")
	errAudioRequired  = errors.New("audio file is required")
	errModelsDisabled = errors.New("model listing is not configured")
)

type publicError struct {
	target  error
	status  int
	message string
}

// publicErrors maps sentinel errors onto the status and message a client sees.
// Anything not listed is a 500 with a route specific message.
var publicErrors = []publicError{
	{errBadJSON, http.StatusBadRequest, "Request body must be valid JSON"},
	{errAudioRequired, http.StatusBadRequest, "Audio file is required"},
	{coach.ErrEmptyTranscript, http.StatusBadRequest, "Transcript is required"},
	{coach.ErrEmptyContext, http.StatusBadRequest, "Context transcript is required"},
	{coach.ErrEmptyAudio, http.StatusBadRequest, "Audio file is required"},
	{coach.ErrUnknownProfile, http.StatusBadRequest, "Unknown signal profile"},
	{coach.ErrTranscriberUnavailable, http.StatusNotImplemented, "Transcription is not configured"},
	{coach.ErrFeedbackUnavailable, http.StatusNotImplemented, "Feedback generation is not configured"},
	{errModelsDisabled, http.StatusNotImplemented, "Model listing is not configured"},
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, message := classify(err)
	if status == http.StatusInternalServerError {
		logging.NewLogger(r.Context()).Errorf("error: %v", err)
		message = fallback
		if message == "" {
			message = http.StatusText(status)
		}
	}

	writeJSON(w, status, errorResponse{
		Error:     message,
		RequestID: logging.RequestIDFromContext(r.Context()),
	})
}

func classify(err error) (int, string) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge, "Request body is too large"
	}
	for _, pe := range publicErrors {
		if errors.Is(err, pe.target) {
			return pe.status, pe.message
		}
	}
	return http.StatusInternalServerError, ""
}
