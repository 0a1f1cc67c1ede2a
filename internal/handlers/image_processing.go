package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lehigh-university-libraries/uiaudit/internal/report"
	"github.com/lehigh-university-libraries/uiaudit/internal/workspace"
)

func (h *Handler) handleImage(corrected bool) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, sessionID string) {
		img, err := h.workspace.Image(r.Context(), sessionID, corrected)
		if err != nil {
			if _, snapErr := h.workspace.Get(r.Context(), sessionID); snapErr != nil {
				h.writeWorkspaceError(w, snapErr, workspace.Snapshot{})
				return
			}
			h.writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", img.MIMEType)
		w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		if _, err := w.Write(img.Data); err != nil {
			slog.Error("Unable to write image", "session_id", sessionID, "err", err)
		}
	}
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request, sessionID string) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap, err := h.workspace.Get(r.Context(), sessionID)
	if err != nil {
		h.writeWorkspaceError(w, err, snap)
		return
	}

	rep := report.FromSnapshot(snap, h.now())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="uiaudit-%s%s"`, sessionID, format.Extension()))
	if err := report.Write(w, format, rep); err != nil {
		slog.Error("Unable to write report", "session_id", sessionID, "format", format, "err", err)
	}
}
