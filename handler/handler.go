// Package handler provides the HTTP transport for the GraphQL gateway.
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stevemurr/foogate/apperr"
	"github.com/stevemurr/foogate/resolver"
	"github.com/stevemurr/foogate/schema"
)

const maxBodyBytes = 4 << 20

// Handler holds the server dependencies and registers routes.
type Handler struct {
	resolver *resolver.Resolver
	schema   graphql.Schema
	mux      *http.ServeMux
	log      *slog.Logger
	origins  []string
	metrics  http.Handler
	next     http.Handler
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithAllowedOrigins sets the CORS origins. "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) { h.origins = origins }
}

// WithMetrics replaces the /metrics handler.
func WithMetrics(m http.Handler) Option {
	return func(h *Handler) { h.metrics = m }
}

// New creates a Handler and wires up all routes.
func New(r *resolver.Resolver, s graphql.Schema, opts ...Option) *Handler {
	h := &Handler{
		resolver: r,
		schema:   s,
		mux:      http.NewServeMux(),
		log:      slog.Default(),
		origins:  []string{"*"},
		metrics:  promhttp.Handler(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.routes()
	h.next = requestLogger(h.log, corsMiddleware(h.mux, h.origins))
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.next.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /{$}", h.root)
	h.mux.HandleFunc("GET /health", h.health)
	h.mux.Handle("GET /metrics", h.metrics)

	h.mux.HandleFunc("GET /graphql", h.graphql)
	h.mux.HandleFunc("POST /graphql", h.graphql)
	h.mux.HandleFunc("GET /graphiql", h.graphiql)
	h.mux.HandleFunc("POST /graphiql", h.graphiql)
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorResult is the response for a request that never reached the executor.
func errorResult(err *apperr.Error) *graphql.Result {
	return &graphql.Result{Errors: []gqlerrors.FormattedError{{
		Message:    err.Error(),
		Extensions: err.Extensions(),
	}}}
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "foogate",
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.resolver.Collection().Ping(ctx); err != nil {
		h.log.WarnContext(ctx, "store ping failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "detail": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ---------- graphql ----------

func (h *Handler) graphql(w http.ResponseWriter, r *http.Request) {
	req, aerr := readRequest(r)
	if aerr != nil {
		h.log.InfoContext(r.Context(), "rejected graphql request", "kind", aerr.Kind.String(), "error", aerr)
		writeJSON(w, http.StatusBadRequest, errorResult(aerr))
		return
	}
	// Mutations are POST only.
	if r.Method == http.MethodGet && isMutation(req) {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, &graphql.Result{Errors: []gqlerrors.FormattedError{{
			Message:    "mutations must be sent with POST",
			Extensions: map[string]interface{}{"code": "METHOD_NOT_ALLOWED"},
		}}})
		return
	}

	result := schema.Execute(r.Context(), h.schema, h.resolver, req)
	status := http.StatusOK
	if result.HasErrors() {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

// readRequest decodes the envelope from the URL on GET and from the body
// on POST.
func readRequest(r *http.Request) (schema.Request, *apperr.Error) {
	var req schema.Request
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if vars := q.Get("variables"); vars != "" {
			if err := json.Unmarshal([]byte(vars), &req.Variables); err != nil {
				return req, apperr.NewDecode("read request", err)
			}
		}
	} else {
		defer r.Body.Close()
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			return req, apperr.NewIO("read request", err)
		}
		if len(body) > maxBodyBytes {
			return req, apperr.NewIO("read request", errors.New("request body too large"))
		}
		if err := json.Unmarshal(body, &req); err != nil {
			return req, apperr.NewDecode("read request", err)
		}
	}
	if req.Query == "" {
		return req, apperr.NewMissing("read request", "query")
	}
	return req, nil
}

// isMutation reports whether req would run a mutation. With no operation name
// any mutation in the document counts. Documents that do not parse are left
// to the executor to report.
func isMutation(req schema.Request) bool {
	doc, err := parser.Parse(parser.ParseParams{Source: req.Query})
	if err != nil {
		return false
	}
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if req.OperationName != "" && (op.Name == nil || op.Name.Value != req.OperationName) {
			continue
		}
		if op.Operation == ast.OperationTypeMutation {
			return true
		}
	}
	return false
}
