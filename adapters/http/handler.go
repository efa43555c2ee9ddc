// Package http provides the HTTP handlers for the document REST API.
package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/artpar/kvorm/adapters/metrics"
	"github.com/artpar/kvorm/domain/document"
	"github.com/artpar/kvorm/domain/query"
	"github.com/artpar/kvorm/domain/validate"
	"github.com/artpar/kvorm/model"
	"github.com/artpar/kvorm/pkg/httpapi"
	"github.com/artpar/kvorm/ports"
)

// maxBodyBytes caps request bodies. Documents are small JSON objects; a
// larger body is a client mistake, not a use case.
const maxBodyBytes = 1 << 20

// DocumentHandler serves the /api/{collection} routes on top of a model
// registry.
type DocumentHandler struct {
	registry *model.Registry
	logger   zerolog.Logger
	metrics  *metrics.Collector
	backend  string
}

// NewDocumentHandler creates a document API handler.
func NewDocumentHandler(registry *model.Registry, logger zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{
		registry: registry,
		logger:   logger,
	}
}

// NewDocumentHandlerWithMetrics creates a document API handler that reports
// store errors against the named backend.
func NewDocumentHandlerWithMetrics(registry *model.Registry, logger zerolog.Logger, m *metrics.Collector, backend string) *DocumentHandler {
	return &DocumentHandler{
		registry: registry,
		logger:   logger,
		metrics:  m,
		backend:  backend,
	}
}

// CreateRequest is the body of POST /api/{collection}.
type CreateRequest struct {
	Data document.Document `json:"data"`
}

// UpdateRequest is the body of PUT /api/{collection}/{id}.
type UpdateRequest struct {
	Data document.Document `json:"data"`
}

// Create handles POST /api/{collection}.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	m, ok := h.model(w, r)
	if !ok {
		return
	}

	var req CreateRequest
	if err := decodeBody(r, &req); err != nil {
		httpapi.WriteBadRequest(w, err.Error())
		return
	}
	if req.Data == nil {
		httpapi.WriteBadRequest(w, "request body must carry a 'data' object")
		return
	}

	doc, err := m.Create(r.Context(), req.Data)
	if err != nil {
		h.writeModelError(w, m.Collection(), err)
		return
	}

	httpapi.WriteJSON(w, http.StatusCreated, httpapi.CreateResponse{
		Success: true,
		ID:      document.Stringify(doc[document.FieldID]),
		Data:    doc,
	})
}

// List handles GET /api/{collection}. Optional limit and skip query
// parameters page through the collection.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	m, ok := h.model(w, r)
	if !ok {
		return
	}

	limit, skip := httpapi.ParseListParams(r.URL.Query().Get)
	plan := query.Plan{Limit: limit, Skip: skip}

	docs, err := m.Run(r.Context(), plan)
	if err != nil {
		h.writeModelError(w, m.Collection(), err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, listResponse(m.Collection(), docs))
}

// Get handles GET /api/{collection}/{id}. The response body is the document
// itself.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, ok := h.model(w, r)
	if !ok {
		return
	}

	doc, err := m.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeModelError(w, m.Collection(), err)
		return
	}
	if doc == nil {
		httpapi.WriteError(w, httpapi.ErrDocumentNotFound())
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, doc)
}

// Update handles PUT /api/{collection}/{id}.
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	m, ok := h.model(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := decodeBody(r, &req); err != nil {
		httpapi.WriteBadRequest(w, err.Error())
		return
	}
	if req.Data == nil {
		httpapi.WriteBadRequest(w, "request body must carry a 'data' object")
		return
	}

	id := chi.URLParam(r, "id")
	doc, err := m.Update(r.Context(), id, req.Data)
	if err != nil {
		h.writeModelError(w, m.Collection(), err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, httpapi.UpdateResponse{
		Success: true,
		ID:      id,
		Data:    doc,
	})
}

// Delete handles DELETE /api/{collection}/{id}.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	m, ok := h.model(w, r)
	if !ok {
		return
	}

	existed, err := m.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeModelError(w, m.Collection(), err)
		return
	}
	if !existed {
		httpapi.WriteError(w, httpapi.ErrDocumentNotFound())
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, httpapi.DeleteResponse{
		Success: true,
		Deleted: true,
	})
}

// Query handles POST /api/{collection}/query. The body is a query plan:
// filters, sort directives, skip and limit.
func (h *DocumentHandler) Query(w http.ResponseWriter, r *http.Request) {
	m, ok := h.model(w, r)
	if !ok {
		return
	}

	var plan query.Plan
	if err := decodeBody(r, &plan); err != nil {
		httpapi.WriteBadRequest(w, err.Error())
		return
	}

	docs, err := m.Run(r.Context(), plan)
	if err != nil {
		h.writeModelError(w, m.Collection(), err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, listResponse(m.Collection(), docs))
}

// Count handles GET /api/{collection}/count.
func (h *DocumentHandler) Count(w http.ResponseWriter, r *http.Request) {
	m, ok := h.model(w, r)
	if !ok {
		return
	}

	n, err := m.Count(r.Context())
	if err != nil {
		h.writeModelError(w, m.Collection(), err)
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, httpapi.CountResponse{
		Collection: m.Collection(),
		Count:      n,
	})
}

// model resolves the collection from the URL and writes a 404 when the
// registry does not know it.
func (h *DocumentHandler) model(w http.ResponseWriter, r *http.Request) (*model.Model, bool) {
	collection := chi.URLParam(r, "collection")
	m, ok := h.registry.Model(collection)
	if !ok {
		httpapi.WriteError(w, httpapi.ErrCollectionNotFound(collection))
		return nil, false
	}
	return m, true
}

// writeModelError maps a model error onto the API error vocabulary:
// validation failures are 422 with the failing field, a missing document is
// 404, anything else means the store is unreachable and maps to 503.
func (h *DocumentHandler) writeModelError(w http.ResponseWriter, collection string, err error) {
	var nf *model.NotFoundError
	if errors.As(err, &nf) {
		httpapi.WriteError(w, httpapi.ErrDocumentNotFound())
		return
	}

	if field, ok := validate.FailedField(err); ok {
		httpapi.WriteError(w, httpapi.ErrValidation(field, err.Error()))
		return
	}

	h.logger.Error().
		Err(err).
		Str("collection", collection).
		Msg("document store error")
	if h.metrics != nil {
		h.metrics.StoreErrors.WithLabelValues(h.backend).Inc()
	}
	httpapi.WriteError(w, httpapi.ErrUnavailable(""))
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func listResponse(collection string, docs []document.Document) httpapi.ListResponse {
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return httpapi.ListResponse{
		Collection: collection,
		Count:      len(out),
		Documents:  out,
	}
}

// HealthHandler provides health check endpoints backed by a store ping.
type HealthHandler struct {
	store ports.DocumentStore
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(store ports.DocumentStore) *HealthHandler {
	return &HealthHandler{store: store}
}

// Liveness returns a simple liveness check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, httpapi.HealthResponse{Status: "ok"})
}

// Readiness checks that the document store answers a ping.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			httpapi.WriteJSON(w, http.StatusServiceUnavailable, httpapi.HealthResponse{
				Status:   "error",
				Database: "disconnected",
				Error:    err.Error(),
			})
			return
		}
	}

	httpapi.WriteJSON(w, http.StatusOK, httpapi.HealthResponse{
		Status:   "ok",
		Database: "connected",
	})
}

// VersionInfo carries build identifiers into the version endpoint.
type VersionInfo struct {
	Version string
	Commit  string
}

// NewVersionHandler creates the version endpoint.
func NewVersionHandler(info VersionInfo) http.HandlerFunc {
	if info.Version == "" {
		info.Version = "dev"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		httpapi.WriteJSON(w, http.StatusOK, httpapi.VersionResponse{
			Service: "kvorm",
			Version: info.Version,
			Commit:  info.Commit,
		})
	}
}

// Root describes the API surface, mirroring what clients probe on first
// contact.
func Root(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"name":   "kvorm",
		"status": "running",
		"endpoints": map[string]string{
			"health":     "GET /health",
			"create":     "POST /api/{collection}",
			"find_all":   "GET /api/{collection}",
			"find_by_id": "GET /api/{collection}/{id}",
			"update":     "PUT /api/{collection}/{id}",
			"delete":     "DELETE /api/{collection}/{id}",
			"query":      "POST /api/{collection}/query",
			"count":      "GET /api/{collection}/count",
		},
	})
}
