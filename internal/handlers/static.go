package handlers

import (
	"log/slog"
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

func (h *Handler) HandleStatic(w http.ResponseWriter, r *http.Request) {
	// Check if image URL parameter is provided
	if imageURL := r.URL.Query().Get("image"); imageURL != "" && r.Method == "GET" {
		sessionID, err := h.createSessionFromURL(r, imageURL)
		if err != nil {
			slog.Error("Failed to create session from URL", "url", imageURL, "error", err)
			http.Error(w, "Failed to process image URL: "+err.Error(), http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, "/?session="+sessionID, http.StatusFound)
		return
	}

	filePath := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/static"), "/")
	if filePath == "" {
		filePath = "index.html"
	}

	// Prevent directory traversal attacks
	if strings.Contains(filePath, "..") {
		http.Error(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	// Set appropriate content type based on file extension
	switch path.Ext(filePath) {
	case ".css":
		w.Header().Set("Content-Type", "text/css")
	case ".js":
		w.Header().Set("Content-Type", "application/javascript")
	case ".html":
		w.Header().Set("Content-Type", "text/html")
	}

	http.ServeFile(w, r, filepath.Join(h.staticDir, filepath.FromSlash(filePath)))
}

func (h *Handler) createSessionFromURL(r *http.Request, imageURL string) (string, error) {
	img, err := h.fetcher.Fetch(r.Context(), imageURL)
	if err != nil {
		return "", err
	}

	snap, err := h.workspace.Create(r.Context(), path.Base(imageURL))
	if err != nil {
		return "", err
	}
	if _, err := h.workspace.Upload(r.Context(), snap.ID, "", img); err != nil {
		return "", err
	}

	slog.Info("Session created from URL", "session_id", snap.ID, "url", imageURL)
	return snap.ID, nil
}
