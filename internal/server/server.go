// Package server exposes the clone pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/sync/errgroup"

	"siteclone/internal/clone"
)

const maxRequestBytes = 1 << 20

// Cloner is the pipeline entry point; *clone.Pipeline satisfies it.
type Cloner interface {
	Run(ctx context.Context, req clone.Request) (clone.Outcome, error)
}

type Options struct {
	AllowedOrigins []string
	// PoweredBy names the model provider in the welcome message.
	PoweredBy string
	Logger    zerolog.Logger
}

type cloneRequest struct {
	TargetURL string `json:"target_url"`
}

type cloneResponse struct {
	ClonedHTML string `json:"cloned_html"`
	Message    string `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type handler struct {
	cloner    Cloner
	poweredBy string
}

// New returns the routed handler wrapped in access logging, request ids,
// panic recovery and CORS.
func New(cloner Cloner, opts Options) http.Handler {
	h := &handler{cloner: cloner, poweredBy: opts.PoweredBy}
	if h.poweredBy == "" {
		h.poweredBy = "an LLM"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /clone_website", h.cloneWebsite)
	mux.HandleFunc("GET /{$}", h.root)

	var next http.Handler = mux
	next = newCORS(opts.AllowedOrigins).wrap(next)
	next = recoverer(next)
	next = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	})(next)
	next = hlog.RequestIDHandler("req_id", "X-Request-Id")(next)
	next = hlog.NewHandler(opts.Logger)(next)
	return next
}

func (h *handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{
		Message: fmt.Sprintf("Welcome to the Website Cloner API! Powered by %s.", h.poweredBy),
	})
}

func (h *handler) cloneWebsite(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	var req cloneRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}

	log.Info().Str("target_url", req.TargetURL).Msg("Received request to clone URL")
	out, err := h.cloner.Run(r.Context(), clone.Request{TargetURL: req.TargetURL})
	if err != nil {
		f, ok := clone.AsFailure(err)
		if !ok {
			log.Error().Err(err).Msg("Unclassified pipeline error")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: fmt.Sprintf("Unexpected server error: %v", err)})
			return
		}
		log.Warn().Err(err).Str("stage", string(f.Stage)).Str("cause", f.Cause).Msg("Clone failed")
		writeJSON(w, f.HTTPStatus(), errorResponse{Detail: f.Detail})
		return
	}

	writeJSON(w, http.StatusOK, cloneResponse{ClonedHTML: out.ClonedHTML, Message: out.Message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hlog.FromRequest(r).Error().Interface("panic", rec).Msg("Handler panicked")
				writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Serve runs srv on ln until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server, ln net.Listener, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		zerolog.Ctx(ctx).Info().Msg("Shutting down server")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
