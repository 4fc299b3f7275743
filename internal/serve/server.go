// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package serve exposes the validation orchestrator over HTTP.
// Implements: prd005-service (R1, R2, R3, R4);
//
//	docs/ARCHITECTURE § Service Surface.
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/pdiddy/proofbridge/internal/extract"
	"github.com/pdiddy/proofbridge/internal/validate"
	"github.com/pdiddy/proofbridge/pkg/logging"
	"github.com/pdiddy/proofbridge/pkg/types"
)

const (
	// maxBodyBytes bounds request bodies on the v1 endpoints.
	maxBodyBytes = 1 << 20

	// drainGrace bounds the listener drain during shutdown. The orchestrator
	// applies its own grace on top.
	drainGrace = 10 * time.Second
)

// Server serves validation requests over HTTP. Rate limiting applies to the
// /v1 endpoints; /healthz and /metrics stay open for probes and scrapers.
type Server struct {
	orch      *validate.Orchestrator
	extractor *extract.Extractor
	log       *logging.Logger
	cfg       types.ServeConfig
	limiter   *rate.Limiter
	registry  *prometheus.Registry
}

// New builds a Server around an initialized orchestrator. A nil logger
// discards service diagnostics.
func New(orch *validate.Orchestrator, log *logging.Logger, cfg types.ServeConfig) *Server {
	if log == nil {
		log = logging.Discard()
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(newOrchestratorCollector(orch))
	return &Server{
		orch:      orch,
		extractor: extract.New(log),
		log:       log,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		registry:  registry,
	}
}

// Handler returns the composed route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /v1/validate", s.rateLimited(http.HandlerFunc(s.handleValidate)))
	mux.Handle("POST /v1/consistency", s.rateLimited(http.HandlerFunc(s.handleConsistency)))
	mux.Handle("GET /v1/status", s.rateLimited(http.HandlerFunc(s.handleStatus)))
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// Run serves until ctx is cancelled, then drains the listener and shuts the
// orchestrator down. The listener stops accepting before the orchestrator
// drains so no request arrives after the pool starts closing.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http service listening", "addr", s.cfg.Addr)
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http service: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("http service draining")
	drainCtx, cancel := context.WithTimeout(context.Background(), drainGrace)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		s.log.Warn("listener drain failed", "error", err)
	}
	<-errCh

	return s.orch.Shutdown(context.Background())
}

func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleValidate accepts a citation as JSON or as raw text and responds with
// the validation result. Raw text runs through the extractor first; JSON
// bodies without claims do too, so callers may post bare {id, raw_text}
// records.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	citation, err := s.citationFromRequest(r.Header.Get("Content-Type"), body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.orch.ValidateMathematicalCitation(r.Context(), &citation)
	if err != nil {
		s.writeOrchestratorError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) citationFromRequest(contentType string, body []byte) (types.MathematicalCitation, error) {
	if !strings.Contains(contentType, "json") {
		return s.extractor.ExtractMathematicalCitation(types.Citation{
			RawText: string(body),
			Source:  "http",
		})
	}

	var citation types.MathematicalCitation
	if err := json.Unmarshal(body, &citation); err != nil {
		return types.MathematicalCitation{}, fmt.Errorf("parsing citation: %w", err)
	}
	if len(citation.Claims) == 0 {
		return s.extractor.ExtractMathematicalCitation(citation.Citation)
	}
	return citation, nil
}

// handleConsistency accepts a JSON array of citations and responds with the
// cross-citation verdict.
func (s *Server) handleConsistency(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var citations []types.MathematicalCitation
	if err := json.Unmarshal(body, &citations); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parsing citations: %v", err))
		return
	}

	verdict, err := s.orch.CheckConsistencyAcrossCitations(r.Context(), citations)
	if err != nil {
		s.writeOrchestratorError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Status())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeOrchestratorError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Warn("request failed", "path", r.URL.Path, "error", err)
	switch {
	case errors.Is(err, validate.ErrQueueFull):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, validate.ErrWaitTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, validate.ErrShuttingDown),
		errors.Is(err, validate.ErrNotInitialized),
		errors.Is(err, validate.ErrNoAdapters):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	if len(body) == 0 {
		return nil, errors.New("empty request body")
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
