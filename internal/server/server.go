// Package server exposes melting and JSON conversion over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rakaly/cli/internal/convert"
	"github.com/rakaly/cli/internal/game"
	"github.com/rakaly/cli/internal/jsonfmt"
	"github.com/rakaly/cli/internal/melt"
)

// Config tunes the service. Melt and JSON hold the defaults that query
// parameters override.
type Config struct {
	MaxBodyBytes   int64
	RateLimit      float64
	RateBurst      int
	AllowedOrigins []string
	Melt           melt.Options
	JSON           jsonfmt.Options
	Encoding       game.Encoding
}

// Server handles conversion requests.
type Server struct {
	conv    *convert.Converter
	cfg     Config
	limiter *rate.Limiter
}

// New creates a Server. A non-positive RateLimit disables rate limiting.
func New(conv *convert.Converter, cfg Config) *Server {
	s := &Server{conv: conv, cfg: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if s.cfg.Encoding == "" {
		s.cfg.Encoding = game.Windows1252
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{unknownTokensHeader, requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/melt", s.handleMelt)
		r.Post("/json", s.handleJSON)
	})
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("starting server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

const unknownTokensHeader = "X-Unknown-Tokens"

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleMelt(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := convert.MeltRequest{Options: s.cfg.Melt}
	var err error
	if req.Game, err = game.Parse(q.Get("game")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Version, err = versionParam(q.Get("game_version")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if v := q.Get("unknown_key"); v != "" {
		if req.Options.UnknownKey, err = melt.ParseUnknownPolicy(v); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if req.Options.Retain, err = boolParam(q.Get("retain"), req.Options.Retain); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var out bytes.Buffer
	res, err := s.conv.Melt(r.Context(), data, req, &out)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if len(res.UnknownTokens) > 0 {
		ids := make([]string, len(res.UnknownTokens))
		for i, id := range res.UnknownTokens {
			ids[i] = fmt.Sprintf("%04x", id)
		}
		w.Header().Set(unknownTokensHeader, strings.Join(ids, ","))
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(out.Bytes()) //nolint:errcheck
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := convert.JSONRequest{Encoding: s.cfg.Encoding, JSON: s.cfg.JSON}
	var err error
	if v := q.Get("game"); v != "" {
		if req.Game, err = game.Parse(v); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if req.Version, err = versionParam(q.Get("game_version")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if v := q.Get("duplicate_keys"); v != "" {
		if req.JSON.DuplicateKeys, err = jsonfmt.ParseDuplicateKeys(v); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if v := q.Get("encoding"); v != "" {
		if req.Encoding, err = game.ParseEncoding(v); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if req.JSON.Pretty, err = boolParam(q.Get("pretty"), req.JSON.Pretty); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Interpolate, err = boolParam(q.Get("interpolate"), false); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	var out bytes.Buffer
	if err := s.conv.JSON(r.Context(), data, req, &out); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(out.Bytes()) //nolint:errcheck
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body := r.Body
	if s.cfg.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "read request body"))
		return nil, false
	}
	return data, true
}

func boolParam(v string, def bool) (bool, error) {
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid boolean %q", v)
	}
	return b, nil
}

func versionParam(v string) (game.Version, error) {
	if v == "" {
		return game.Version{}, nil
	}
	return game.ParseVersion(v)
}

// statusFor maps conversion failures to response codes. Anything that is
// not a client parameter problem is blamed on the uploaded file.
func statusFor(err error) int {
	var unsupported *game.UnsupportedError
	switch {
	case errors.As(err, &unsupported), errors.Is(err, convert.ErrInterpolateGameFile):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusUnprocessableEntity
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
