package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iconidentify/mediagrab/internal/domain"
	"github.com/iconidentify/mediagrab/internal/resolver"
)

// StatusClientClosedRequest is logged when the caller went away before a
// resolution finished. Nothing is written back.
const StatusClientClosedRequest = 499

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Success  bool              `json:"success"`
	Error    string            `json:"error"`
	Attempts []AttemptResponse `json:"attempts,omitempty"`
}

// AttemptResponse is one provider failure of an exhausted resolution.
type AttemptResponse struct {
	Provider   string `json:"provider"`
	Error      string `json:"error"`
	DurationMs int64  `json:"duration_ms"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: msg})
}

// StatusFor maps a resolution error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownCapability):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoProviders):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrProvidersExhausted):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeResolveError writes err with its mapped status. Exhaustion lists
// every attempt; cancellation by the client is only logged.
func writeResolveError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, c domain.Capability, err error) {
	status := StatusFor(err)
	if status == StatusClientClosedRequest {
		logger.Info("client closed request", "capability", string(c), "path", r.URL.Path)
		w.WriteHeader(status)
		return
	}

	failure := domain.Failure(err)
	resp := ErrorResponse{Success: failure.Success, Error: failure.Error}
	var exhausted *domain.ExhaustedError
	if errors.As(err, &exhausted) {
		resp.Error = "All providers failed for " + string(c) + ": " + exhausted.Error()
		for _, a := range exhausted.Attempts {
			msg := "unknown error"
			if a.Err != nil {
				msg = a.Err.Error()
			}
			resp.Attempts = append(resp.Attempts, AttemptResponse{
				Provider:   a.Provider,
				Error:      msg,
				DurationMs: a.Duration.Milliseconds(),
			})
		}
	}
	if status >= http.StatusInternalServerError {
		logger.Warn("resolution failed", "capability", string(c), "status", status, "error", err)
	}
	writeJSON(w, status, resp)
}

// queryParam returns the first non-blank query parameter among names.
func queryParam(r *http.Request, names ...string) string {
	q := r.URL.Query()
	for _, name := range names {
		if v := strings.TrimSpace(q.Get(name)); v != "" {
			return v
		}
	}
	return ""
}

// resolveAndWrite resolves req and writes the result, or the mapped error.
func resolveAndWrite(w http.ResponseWriter, r *http.Request, engine resolver.Resolver, logger *slog.Logger, req resolver.Request) {
	res, err := engine.Resolve(r.Context(), req)
	if err != nil {
		writeResolveError(w, r, logger, req.Capability, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
