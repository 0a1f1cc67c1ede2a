package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/uiaudit/internal/config"
	"github.com/lehigh-university-libraries/uiaudit/internal/models"
	"github.com/lehigh-university-libraries/uiaudit/internal/shell"
)

// HandleShell serves /api/shell and /api/shell/{panel}
func (h *Handler) HandleShell(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/shell"), "/")
	if name == "" {
		h.writeJSON(w, h.panels)
		return
	}
	if name == "history" {
		h.writeJSON(w, h.panels.SearchHistory(r.URL.Query().Get("q")))
		return
	}

	panel, err := h.panels.Panel(name)
	if err != nil {
		if errors.Is(err, shell.ErrUnknownPanel) {
			h.writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, panel)
}

// HandleSpecs reads or replaces the design spec used by later analyses
func (h *Handler) HandleSpecs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		h.specMu.RLock()
		spec := h.spec
		h.specMu.RUnlock()
		h.writeJSON(w, spec)
	case "PUT":
		h.specMu.RLock()
		spec := h.spec
		h.specMu.RUnlock()

		// fields left out keep their current values
		if err := decodeJSON(w, r, 1<<16, &spec); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := config.ValidateDesignSpec(spec); err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := h.saveSpec(spec); err != nil {
			h.writeError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.writeJSON(w, spec)
	default:
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) saveSpec(spec models.DesignSpec) error {
	h.specMu.Lock()
	defer h.specMu.Unlock()

	if h.specsFile != "" {
		if err := config.SaveDesignSpec(h.specsFile, spec); err != nil {
			return err
		}
	}
	h.spec = spec
	if h.onSpecChange != nil {
		h.onSpecChange(spec)
	}
	return nil
}
