package handler

import (
	"net/http"
)

// Endpoint describes one public route.
type Endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// IndexResponse is the JSON response of GET /.
type IndexResponse struct {
	Name      string     `json:"name"`
	Version   string     `json:"version"`
	Endpoints []Endpoint `json:"endpoints"`
}

// IndexHandler lists the public endpoints.
type IndexHandler struct {
	version   string
	endpoints []Endpoint
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(version string, endpoints []Endpoint) *IndexHandler {
	return &IndexHandler{version: version, endpoints: endpoints}
}

// Index handles GET /.
func (h *IndexHandler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, IndexResponse{
		Name:      "mediagrab",
		Version:   h.version,
		Endpoints: h.endpoints,
	})
}
