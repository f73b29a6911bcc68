package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/pitch-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pitch-coach/pkg/utils"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-ID"
	maxRequestIDLen = 128
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withRequestID reuses a caller supplied X-Request-ID or mints one, stores it
// in the request context and logs one line per request.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := strings.TrimSpace(r.Header.Get(headerRequestID))
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = uuid.NewString()
		}

		w.Header().Set(headerRequestID, requestID)
		ctx := logging.WithRequestID(r.Context(), requestID)
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r.WithContext(ctx))

		logging.NewLogger(ctx).Infof(
			"http_request method=%s path=%s status=%d latency_ms=%d",
			r.Method, r.URL.Path, recorder.status, time.Since(start).Milliseconds(),
		)
	})
}

func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			if recovered == http.ErrAbortHandler {
				panic(recovered)
			}

			log := logging.NewLogger(r.Context())
			log.Errorf("panic serving %s %s: %v", r.Method, r.URL.Path, recovered)
			utils.PrintStack("panic", log)
			writeError(w, r, errors.New("internal error"), "internal error")
		}()
		next.ServeHTTP(w, r)
	})
}
