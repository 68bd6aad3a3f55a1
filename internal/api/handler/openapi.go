package handler

import (
	"log/slog"
	"net/http"
	"sync"

	"sigs.k8s.io/yaml"

	"github.com/tenantgate/tenantgate/internal/api/middleware"
	"github.com/tenantgate/tenantgate/internal/api/response"
)

// OpenAPIHandler serves the API description as JSON.
type OpenAPIHandler struct {
	source []byte

	once    sync.Once
	doc     []byte
	convErr error
}

// NewOpenAPIHandler creates a handler for a YAML OpenAPI document. The
// document is converted on first request and cached.
func NewOpenAPIHandler(yamlDoc []byte) *OpenAPIHandler {
	return &OpenAPIHandler{source: yamlDoc}
}

func (h *OpenAPIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.once.Do(func() {
		h.doc, h.convErr = yaml.YAMLToJSON(h.source)
	})

	if h.convErr != nil {
		slog.Error("failed to convert OpenAPI document", "error", h.convErr)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "OpenAPI document is unavailable", middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(h.doc); err != nil {
		slog.Error("failed to write OpenAPI document", "error", err)
	}
}
