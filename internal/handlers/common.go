package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/uiaudit/internal/images"
	"github.com/lehigh-university-libraries/uiaudit/internal/models"
	"github.com/lehigh-university-libraries/uiaudit/internal/shell"
	"github.com/lehigh-university-libraries/uiaudit/internal/storage"
	"github.com/lehigh-university-libraries/uiaudit/internal/workspace"
)

type Handler struct {
	workspace *workspace.Controller
	fetcher   *images.Fetcher
	panels    *shell.Panels
	staticDir string
	now       func() time.Time

	specMu       sync.RWMutex
	spec         models.DesignSpec
	specsFile    string
	onSpecChange func(models.DesignSpec)
}

type Options struct {
	Workspace *workspace.Controller
	Fetcher   *images.Fetcher
	// Spec is the design spec in force at startup
	Spec models.DesignSpec
	// SpecsFile, when set, receives every accepted spec update
	SpecsFile    string
	OnSpecChange func(models.DesignSpec)
	StaticDir    string
}

func New(opts Options) (*Handler, error) {
	panels, err := shell.Load()
	if err != nil {
		return nil, err
	}
	if opts.Fetcher == nil {
		opts.Fetcher = images.NewFetcher()
	}
	if opts.StaticDir == "" {
		opts.StaticDir = "static"
	}
	if opts.Spec.BaseGrid == 0 {
		opts.Spec = models.DefaultDesignSpec()
	}
	return &Handler{
		workspace:    opts.Workspace,
		fetcher:      opts.Fetcher,
		panels:       panels,
		staticDir:    opts.StaticDir,
		now:          time.Now,
		spec:         opts.Spec,
		specsFile:    opts.SpecsFile,
		onSpecChange: opts.OnSpecChange,
	}, nil
}

// Routes registers every endpoint on mux
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/sessions", h.HandleSessions)
	mux.HandleFunc("/api/sessions/", h.HandleSessionDetail)
	mux.HandleFunc("/api/shell", h.HandleShell)
	mux.HandleFunc("/api/shell/", h.HandleShell)
	mux.HandleFunc("/api/specs", h.HandleSpecs)
	mux.HandleFunc("/", h.HandleStatic)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Warn(message)
	}
	http.Error(w, message, code)
}

// actionError lets the UI refresh its buttons from the session that
// rejected the action
type actionError struct {
	Error   string              `json:"error"`
	Outcome *models.Outcome     `json:"outcome,omitempty"`
	Session *workspace.Snapshot `json:"session,omitempty"`
}

func (h *Handler) writeWorkspaceError(w http.ResponseWriter, err error, snap workspace.Snapshot) {
	body := actionError{Error: err.Error()}
	if snap.ID != "" {
		body.Session = &snap
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.writeError(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, workspace.ErrEmptyMessage), errors.Is(err, workspace.ErrInvalidView):
		h.writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, workspace.ErrStale):
		body.Outcome = &models.Outcome{Status: models.OutcomeStale, Reason: err.Error(), At: h.now()}
		slog.Warn("Stale result", "session_id", snap.ID)
		h.writeJSONStatus(w, http.StatusConflict, body)
	case workspace.IsPrecondition(err):
		slog.Warn("Action rejected", "session_id", snap.ID, "reason", err)
		h.writeJSONStatus(w, http.StatusConflict, body)
	case errors.Is(err, workspace.ErrRemote):
		body.Outcome = snap.LastChat
		slog.Error("Remote call failed", "session_id", snap.ID, "err", err)
		h.writeJSONStatus(w, http.StatusBadGateway, body)
	default:
		h.writeError(w, fmt.Sprintf("Internal error: %v", err), http.StatusInternalServerError)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(v)
}
