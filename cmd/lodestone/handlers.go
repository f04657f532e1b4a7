package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/quillforge/lodestone"
)

type handler struct {
	engine lodestone.Engine
}

func newHandler(eng lodestone.Engine) *handler {
	return &handler{engine: eng}
}

type searchRequest struct {
	Query      string   `json:"query"`
	TopK       int      `json:"top_k,omitempty"`
	Folder     string   `json:"folder,omitempty"`
	Path       string   `json:"path,omitempty"`
	ActivePath string   `json:"active_path,omitempty"`
	Allow      []string `json:"allow,omitempty"`
	Deny       []string `json:"deny,omitempty"`
}

func (h *handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.TopK < 0 || req.TopK > 200 {
		writeError(w, http.StatusBadRequest, "top_k must be between 0 and 200")
		return
	}

	var opts []lodestone.SearchOption
	if req.TopK > 0 {
		opts = append(opts, lodestone.WithTopK(req.TopK))
	}
	if req.Folder != "" {
		opts = append(opts, lodestone.WithFolder(req.Folder))
	}
	if req.Path != "" {
		opts = append(opts, lodestone.WithPath(req.Path))
	}
	if req.ActivePath != "" {
		opts = append(opts, lodestone.WithActivePath(req.ActivePath))
	}
	if len(req.Allow) > 0 {
		opts = append(opts, lodestone.WithAllow(req.Allow...))
	}
	if len(req.Deny) > 0 {
		opts = append(opts, lodestone.WithDeny(req.Deny...))
	}

	results, trace, err := h.engine.Search(ctx, req.Query, opts...)
	if err != nil {
		slog.Error("search failed", "query", req.Query, "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"trace":   trace,
	})
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.engine.Status(r.Context())
	if err != nil {
		slog.Error("status failed", "error", err)
		writeError(w, http.StatusInternalServerError, "status unavailable")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	summary, err := h.engine.IndexAll(ctx)
	if err != nil {
		slog.Error("index build failed", "error", err)
		writeError(w, http.StatusInternalServerError, "index build failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	result, err := h.engine.CheckChanges(ctx)
	if err != nil {
		slog.Error("change check failed", "error", err)
		writeError(w, http.StatusInternalServerError, "change check failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	err := h.engine.RecordOpen(r.Context(), req.Path)
	if errors.Is(err, lodestone.ErrDocumentNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		slog.Error("recording open failed", "path", req.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "recording open failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": req.Path, "status": "recorded"})
}

func (h *handler) handleDeleteDocuments(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paths []string `json:"paths"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, "paths is required")
		return
	}

	if err := h.engine.DeleteDocuments(r.Context(), req.Paths); err != nil {
		slog.Error("deleting documents failed", "error", err)
		writeError(w, http.StatusInternalServerError, "deleting documents failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": req.Paths})
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
