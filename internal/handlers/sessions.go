package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/uiaudit/internal/models"
	"github.com/lehigh-university-libraries/uiaudit/internal/workspace"
)

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		snaps, err := h.workspace.List(r.Context())
		if err != nil {
			h.writeWorkspaceError(w, err, workspace.Snapshot{})
			return
		}
		projects := make([]models.DesignProject, 0, len(snaps))
		for _, s := range snaps {
			projects = append(projects, s.Project())
		}
		h.writeJSON(w, projects)
	case "POST":
		var request struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(w, r, 1<<16, &request); err != nil && !errors.Is(err, io.EOF) {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		snap, err := h.workspace.Create(r.Context(), strings.TrimSpace(request.Name))
		if err != nil {
			h.writeWorkspaceError(w, err, workspace.Snapshot{})
			return
		}
		h.writeJSONStatus(w, http.StatusCreated, snap)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleSessionDetail serves /api/sessions/{id} and /api/sessions/{id}/{action}
func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/")
	sessionID, action, _ := strings.Cut(rest, "/")
	if sessionID == "" || strings.Contains(action, "/") {
		h.writeError(w, "Not found", http.StatusNotFound)
		return
	}

	type route struct {
		method string
		fn     func(http.ResponseWriter, *http.Request, string)
	}
	routes := map[string]route{
		"upload":    {"POST", h.handleUpload},
		"analyze":   {"POST", h.handleAnalyze},
		"correct":   {"POST", h.handleCorrect},
		"chat":      {"POST", h.handleChat},
		"view":      {"POST", h.handleView},
		"image":     {"GET", h.handleImage(false)},
		"corrected": {"GET", h.handleImage(true)},
		"report":    {"GET", h.handleReport},
	}

	if action == "" {
		switch r.Method {
		case "GET":
			snap, err := h.workspace.Get(r.Context(), sessionID)
			if err != nil {
				h.writeWorkspaceError(w, err, snap)
				return
			}
			h.writeJSON(w, snap)
		case "DELETE":
			if err := h.workspace.Delete(r.Context(), sessionID); err != nil {
				h.writeWorkspaceError(w, err, workspace.Snapshot{})
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	rt, ok := routes[action]
	if !ok {
		h.writeError(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != rt.method {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	rt.fn(w, r, sessionID)
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request, sessionID string) {
	snap, err := h.workspace.Analyze(r.Context(), sessionID)
	if err != nil {
		h.writeWorkspaceError(w, err, snap)
		return
	}
	h.writeJSON(w, snap)
}

func (h *Handler) handleCorrect(w http.ResponseWriter, r *http.Request, sessionID string) {
	snap, err := h.workspace.Correct(r.Context(), sessionID)
	if err != nil {
		h.writeWorkspaceError(w, err, snap)
		return
	}
	h.writeJSON(w, snap)
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request, sessionID string) {
	var request struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(w, r, 1<<20, &request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	snap, err := h.workspace.Chat(r.Context(), sessionID, request.Message)
	if err != nil {
		h.writeWorkspaceError(w, err, snap)
		return
	}
	h.writeJSON(w, snap)
}

func (h *Handler) handleView(w http.ResponseWriter, r *http.Request, sessionID string) {
	var request struct {
		Mode models.ViewMode `json:"mode"`
	}
	if err := decodeJSON(w, r, 1<<10, &request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	snap, err := h.workspace.SetView(r.Context(), sessionID, request.Mode)
	if err != nil {
		h.writeWorkspaceError(w, err, snap)
		return
	}
	h.writeJSON(w, snap)
}
