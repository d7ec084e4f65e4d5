// Package site serves the service index at the root path.
package site

import (
	"context"
	"encoding/json"
	"net/http"
)

// Route describes one public endpoint in the index.
type Route struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	About  string `json:"about"`
}

// Routes lists the endpoints advertised at /.
var Routes = []Route{
	{http.MethodGet, "/api/pet", "current pet after time decay"},
	{http.MethodPost, "/api/pet", "update pet and partner names"},
	{http.MethodPost, "/api/action", "apply a partner's care action"},
	{http.MethodPost, "/api/couple-activity", "apply a joint activity"},
	{http.MethodPost, "/api/reset", "start over with a new pet"},
	{http.MethodGet, "/api/history", "action history, newest first"},
	{http.MethodGet, "/stats", "service statistics"},
	{http.MethodGet, "/healthz", "liveness probe"},
	{http.MethodGet, "/metrics", "prometheus metrics"},
	{http.MethodGet, "/api-docs", "API reference"},
}

type index struct {
	Service string  `json:"service"`
	Version string  `json:"version"`
	Routes  []Route `json:"routes"`
}

// Register attaches the index to mux. It also becomes the catch-all for
// unknown paths, which get a JSON 404.
func Register(_ context.Context, mux *http.ServeMux, version string) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("/", NewRootHandler(version))
}

// RootHandler handles requests that match no other route.
type RootHandler struct {
	body index
}

// NewRootHandler creates a root handler reporting version.
func NewRootHandler(version string) *RootHandler {
	return &RootHandler{body: index{Service: "couplepet", Version: version, Routes: Routes}}
}

func (h *RootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if r.URL.Path != "/" {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "not_found", "message": r.URL.Path + " not found"})
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_ = json.NewEncoder(w).Encode(map[string]string{"code": "method_not_allowed", "message": r.Method + " not allowed"})
		return
	}
	_ = json.NewEncoder(w).Encode(h.body)
}
