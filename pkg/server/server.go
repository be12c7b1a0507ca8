// Package server exposes the session over a loopback HTTP API so host glue
// can submit prompts and manage the credential and cache.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pario-ai/inserter/pkg/orchestrator"
	"github.com/pario-ai/inserter/pkg/provider"
)

// maxBodyBytes bounds request bodies read by the API.
const maxBodyBytes = 1 << 20

// CredentialValidator checks a credential against the upstream.
type CredentialValidator interface {
	ValidateCredential(ctx context.Context, credential string) (bool, error)
}

// Server is the inserter HTTP API.
type Server struct {
	addr      string
	session   *orchestrator.Session
	validator CredentialValidator
	log       zerolog.Logger
	mux       *http.ServeMux
}

// New creates a Server. validator may be nil, in which case the validate
// endpoint reports 501.
func New(addr string, sess *orchestrator.Session, validator CredentialValidator, log zerolog.Logger) *Server {
	s := &Server{
		addr:      addr,
		session:   sess,
		validator: validator,
		log:       log,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("/v1/prompt", s.handlePrompt)
	s.mux.HandleFunc("/v1/settings/credential", s.handleCredential)
	s.mux.HandleFunc("/v1/settings/credential/validate", s.handleValidate)
	s.mux.HandleFunc("/v1/cache/stats", s.handleCacheStats)
	s.mux.HandleFunc("/v1/cache", s.handleCache)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", reqID)

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	s.mux.ServeHTTP(rec, r)

	s.log.Info().
		Str("request_id", reqID).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", rec.status).
		Dur("duration", time.Since(start)).
		Msg("request")
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("inserter listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

type promptResponse struct {
	Text   string `json:"text"`
	Cached bool   `json:"cached"`
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}

	var req promptRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}

	out, err := s.session.Handle(r.Context(), req.Prompt)
	if errors.Is(err, orchestrator.ErrEmptyPrompt) {
		writeJSONError(w, http.StatusBadRequest, "", "prompt is empty")
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "", err.Error())
		return
	}

	switch out.Kind {
	case orchestrator.Resolved:
		if out.Cached {
			w.Header().Set("X-Inserter-Cache", "hit")
		} else {
			w.Header().Set("X-Inserter-Cache", "miss")
		}
		writeJSON(w, http.StatusOK, promptResponse{Text: out.Text, Cached: out.Cached})
	case orchestrator.CredentialMissing:
		writeJSONError(w, http.StatusPreconditionFailed, out.Kind.String(), out.Message())
	default:
		writeJSONError(w, failureStatus(out.Failure), out.Failure.String(), out.Message())
	}
}

type credentialRequest struct {
	Credential string `json:"credential"`
}

func (s *Server) handleCredential(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeJSONError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}

	var req credentialRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "", "invalid request body")
		return
	}
	if err := s.session.SaveCredential(req.Credential); err != nil {
		s.log.Error().Err(err).Msg("save credential failed")
		writeJSONError(w, http.StatusInternalServerError, "", "failed to save credential")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}
	if s.validator == nil {
		writeJSONError(w, http.StatusNotImplemented, "", "credential validation not configured")
		return
	}

	cred := s.session.Credential()
	if cred == "" {
		writeJSON(w, http.StatusOK, map[string]bool{"valid": false})
		return
	}
	valid, err := s.validator.ValidateCredential(r.Context(), cred)
	if err != nil {
		s.log.Warn().Err(err).Msg("credential validation failed")
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}
	stats, err := s.session.Orchestrator().Cache().Stats()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "", "cache stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSONError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}
	removed, err := s.session.Orchestrator().Cache().ClearAll()
	if err != nil {
		s.log.Error().Err(err).Msg("cache clear failed")
		writeJSONError(w, http.StatusInternalServerError, "", "cache clear failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

func failureStatus(kind provider.Kind) int {
	switch kind {
	case provider.KindUnauthenticated:
		return http.StatusUnauthorized
	case provider.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Kind    string `json:"kind"`
	Code    int    `json:"code"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSONError(w http.ResponseWriter, code int, kind, message string) {
	writeJSON(w, code, errorEnvelope{Error: errorBody{
		Message: message,
		Type:    "inserter_error",
		Kind:    kind,
		Code:    code,
	}})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
