package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/uiaudit/internal/models"
)

// Fetcher retrieves design images from remote URLs
type Fetcher struct {
	HTTPClient *http.Client
}

// NewFetcher creates a new image fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Fetch downloads an image and validates it like a direct upload
func (f *Fetcher) Fetch(ctx context.Context, imageURL string) (models.ImageBuffer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return models.ImageBuffer{}, fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return models.ImageBuffer{}, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.ImageBuffer{}, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	// Read one byte past the limit so oversize bodies are detected
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxUploadBytes+1))
	if err != nil {
		return models.ImageBuffer{}, fmt.Errorf("failed to read image data: %w", err)
	}

	img, err := FromBytes(data, resp.Header.Get("Content-Type"))
	if err != nil {
		return models.ImageBuffer{}, err
	}

	slog.Debug("Fetched image", "url", imageURL, "mime", img.MIMEType, "bytes", len(img.Data))
	return img, nil
}
