// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api exposes the search engine over HTTP: author ranking, raw
// resource search, ad-hoc embedding, and a health probe, all JSON.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/expert-engine/internal/embedding"
	"github.com/pdiddy/expert-engine/internal/ranking"
	"github.com/pdiddy/expert-engine/internal/search"
	"github.com/pdiddy/expert-engine/pkg/types"
)

// Engine is the search surface the server fronts.
type Engine interface {
	SearchResource(ctx context.Context, resource, query string, opts search.Options) ([]types.SearchHit, error)
	SearchAuthors(ctx context.Context, query string, opts search.Options, w io.Writer) (search.AuthorsResult, error)
}

// Server handles the HTTP API.
type Server struct {
	engine   Engine
	embedder embedding.Embedder
	mux      *http.ServeMux
	logw     io.Writer
}

// NewServer builds the request router. Log lines go to logw.
func NewServer(engine Engine, embedder embedding.Embedder, logw io.Writer) *Server {
	s := &Server{engine: engine, embedder: embedder, mux: http.NewServeMux(), logw: logw}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /search/authors", s.handleSearchAuthors)
	s.mux.HandleFunc("GET /search/resource", s.handleSearchResource)
	s.mux.HandleFunc("POST /embed", s.handleEmbed)
	return s
}

// ServeHTTP tags every request with an id, serves it, and logs one line.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)

	fmt.Fprintf(s.logw, "%s %s %d %s id=%s\n",
		r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond), requestID)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearchAuthors(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	opts, err := optionsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if insts := r.URL.Query().Get("institutions"); insts != "" {
		opts.Institutions = strings.Split(insts, ",")
	}

	result, err := s.engine.SearchAuthors(r.Context(), query, opts, io.Discard)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearchResource(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}
	resource := r.URL.Query().Get("type")
	if resource == "" {
		resource = "work"
	}

	opts, err := optionsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opts.TopK == 0 {
		opts.TopK = 3
	}

	hits, err := s.engine.SearchResource(r.Context(), resource, query, opts)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if hits == nil {
		hits = []types.SearchHit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

type embedRequest struct {
	Texts []string `json:"texts"`

	// Kind selects the prefix: "query" or "doc" (default).
	Kind string `json:"kind,omitempty"`
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req embedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, "texts must not be empty")
		return
	}

	var vectors [][]float32
	var err error
	switch req.Kind {
	case "query":
		vectors = make([][]float32, len(req.Texts))
		for i, text := range req.Texts {
			vectors[i], err = s.embedder.EmbedQuery(r.Context(), text)
			if err != nil {
				break
			}
		}
	case "doc", "":
		vectors, err = s.embedder.EmbedDocuments(r.Context(), req.Texts)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown kind %q: use query or doc", req.Kind))
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vectors": vectors})
}

// optionsFromQuery reads the search knobs shared by both search endpoints.
func optionsFromQuery(r *http.Request) (search.Options, error) {
	var opts search.Options
	q := r.URL.Query()

	var err error
	if opts.TopK, err = intParam(q.Get("top_k"), "top_k"); err != nil {
		return opts, err
	}
	if opts.SinceYear, err = intParam(q.Get("since_year"), "since_year"); err != nil {
		return opts, err
	}
	opts.AuthorID = q.Get("author_id")

	if raw := q.Get("min_distance"); raw != "" {
		min, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return opts, fmt.Errorf("min_distance must be a number, got %q", raw)
		}
		opts.MinDistance = &min
	}
	return opts, nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, raw)
	}
	return n, nil
}

// writeEngineError maps engine errors to status codes: configuration errors
// are the client's fault, everything else is an upstream failure.
func writeEngineError(w http.ResponseWriter, err error) {
	var ce *ranking.ConfigError
	if errors.As(err, &ce) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusBadGateway, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
