package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/lehigh-university-libraries/uiaudit/internal/images"
	"github.com/lehigh-university-libraries/uiaudit/internal/models"
)

// handleUpload accepts a multipart file, or JSON with image_url or data_url
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request, sessionID string) {
	var (
		img  models.ImageBuffer
		name string
		err  error
	)

	// Check if this is a JSON request with image URL
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		img, name, err = h.readJSONUpload(w, r)
	} else {
		img, name, err = h.readFileUpload(w, r)
	}
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	logDimensions(sessionID, img)

	snap, err := h.workspace.Upload(r.Context(), sessionID, name, img)
	if err != nil {
		h.writeWorkspaceError(w, err, snap)
		return
	}
	h.writeJSON(w, snap)
}

func (h *Handler) readJSONUpload(w http.ResponseWriter, r *http.Request) (models.ImageBuffer, string, error) {
	var request struct {
		ImageURL string `json:"image_url"`
		DataURL  string `json:"data_url"`
		Name     string `json:"name"`
	}
	// base64 inflates the payload by a third
	if err := decodeJSON(w, r, images.MaxUploadBytes*4/3+4096, &request); err != nil {
		return models.ImageBuffer{}, "", errors.New("Invalid JSON: " + err.Error())
	}

	switch {
	case request.ImageURL != "":
		u, err := url.Parse(request.ImageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return models.ImageBuffer{}, "", errors.New("image_url must be an http(s) URL")
		}
		img, err := h.fetcher.Fetch(r.Context(), request.ImageURL)
		if err != nil {
			return models.ImageBuffer{}, "", errors.New("Failed to process image URL: " + err.Error())
		}
		name := request.Name
		if name == "" {
			name = path.Base(u.Path)
		}
		return img, name, nil
	case request.DataURL != "":
		img, err := images.DecodeDataURL(request.DataURL)
		if err != nil {
			return models.ImageBuffer{}, "", err
		}
		return img, request.Name, nil
	}
	return models.ImageBuffer{}, "", errors.New("image_url or data_url is required")
}

func (h *Handler) readFileUpload(w http.ResponseWriter, r *http.Request) (models.ImageBuffer, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, images.MaxUploadBytes+1<<20)

	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("files")
		if err != nil {
			return models.ImageBuffer{}, "", errors.New("Failed to read file: " + err.Error())
		}
	}
	defer file.Close()

	// Read one byte past the limit so oversize files are detected
	fileData, err := io.ReadAll(io.LimitReader(file, images.MaxUploadBytes+1))
	if err != nil {
		return models.ImageBuffer{}, "", errors.New("Failed to read file contents: " + err.Error())
	}

	img, err := images.FromBytes(fileData, header.Header.Get("Content-Type"))
	if err != nil {
		return models.ImageBuffer{}, "", err
	}
	return img, header.Filename, nil
}

func logDimensions(sessionID string, img models.ImageBuffer) {
	width, height, err := images.Dimensions(img)
	if err != nil {
		slog.Warn("Failed to get image dimensions", "session_id", sessionID, "mime", img.MIMEType, "err", err)
		return
	}
	slog.Debug("Upload dimensions", "session_id", sessionID, "width", width, "height", height)
}
