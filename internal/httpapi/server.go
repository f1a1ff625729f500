// Package httpapi exposes the capture endpoint providers deliver webhooks to.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sarathsp06/hookline/internal/capture"
	"github.com/sarathsp06/hookline/internal/logger"
	"github.com/sarathsp06/hookline/internal/webhooks"
)

// MaxBodyBytes bounds the accepted payload size
const MaxBodyBytes = 1 << 20

// Capturer records an inbound webhook
type Capturer interface {
	Capture(ctx context.Context, origin webhooks.Origin, payload []byte) capture.Outcome
}

// Verifier authenticates a delivery before it is captured, typically by
// checking a provider signature header against body
type Verifier interface {
	Verify(r *http.Request, origin webhooks.Origin, body []byte) error
}

// Response is the JSON body returned to the provider
type Response struct {
	Accepted  bool   `json:"accepted"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Key       string `json:"key,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Server handles webhook deliveries
type Server struct {
	capturer Capturer
	verifier Verifier
	logger   *slog.Logger
}

// NewServer creates a server. verifier may be nil.
func NewServer(capturer Capturer, verifier Verifier) *Server {
	return &Server{
		capturer: capturer,
		verifier: verifier,
		logger:   logger.NewLogger("http"),
	}
}

// Handler returns the instrumented HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhooks/{origin}", s.handleCapture)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return otelhttp.NewHandler(mux, "hookline.http")
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-Id", requestID)
	log := s.logger.With("request_id", requestID)

	origin, known := webhooks.OriginFromPath(r.URL.Path)
	if !known {
		// Unknown origins are rejected by capture with a validation error
		origin = webhooks.Origin(r.PathValue("origin"))
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, Response{Reason: "payload too large"})
			return
		}
		log.Warn("Failed to read webhook body", "origin", origin, "error", err)
		writeJSON(w, http.StatusBadRequest, Response{Reason: "unreadable body"})
		return
	}

	if s.verifier != nil {
		if err := s.verifier.Verify(r, origin, body); err != nil {
			log.Warn("Webhook verification failed", "origin", origin, "error", err)
			writeJSON(w, http.StatusUnauthorized, Response{Reason: "verification failed"})
			return
		}
	}

	outcome := s.capturer.Capture(r.Context(), origin, body)
	code, response := respond(outcome)
	if code >= http.StatusInternalServerError {
		log.Error("Capture failed", "origin", origin, "pk", outcome.Key.PartitionKey, "error", outcome.Err)
	}
	writeJSON(w, code, response)
}

// respond maps a capture outcome to a status code: 2xx stops provider
// redelivery, 5xx asks for it
func respond(outcome capture.Outcome) (int, Response) {
	response := Response{Key: outcome.Key.PartitionKey}
	switch outcome.Result {
	case capture.Accepted:
		response.Accepted = true
		return http.StatusAccepted, response
	case capture.Duplicate:
		response.Accepted = true
		response.Duplicate = true
		return http.StatusOK, response
	}

	response.Reason = outcome.Reason
	if outcome.Retryable() {
		return http.StatusInternalServerError, response
	}
	return http.StatusBadRequest, response
}

func writeJSON(w http.ResponseWriter, code int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
