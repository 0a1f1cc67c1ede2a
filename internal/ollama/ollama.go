package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/uiaudit/internal/models"
)

// Ollama answers design questions with a local vision model
type Ollama struct {
	URL      string
	Model    string
	Language string

	client *http.Client
}

// New returns a new Ollama chat backend
func New(url, model, language string) *Ollama {
	if url == "" {
		url = "http://localhost:11434"
	}
	return &Ollama{
		URL:      url,
		Model:    model,
		Language: language,
		client:   &http.Client{},
	}
}

// Chat sends the question to /api/generate without streaming
func (o *Ollama) Chat(ctx context.Context, question string, image *models.ImageBuffer) (string, error) {
	language := o.Language
	if language == "" {
		language = "English"
	}

	body := map[string]interface{}{
		"model":  o.Model,
		"prompt": fmt.Sprintf("You are a senior UI/UX design expert. Answer the user's question in %s: %s", language, question),
		"stream": false,
	}
	if image != nil && len(image.Data) > 0 {
		body["images"] = []string{base64.StdEncoding.EncodeToString(image.Data)}
	}

	requestBody, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := strings.TrimRight(o.URL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	return response.Response, nil
}
