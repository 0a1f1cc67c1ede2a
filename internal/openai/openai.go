package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/uiaudit/internal/models"
)

const defaultBaseURL = "https://api.openai.com/v1"

// OpenAI answers design questions through the chat completions API
type OpenAI struct {
	APIKey   string
	Model    string
	Language string
	BaseURL  string

	client *http.Client
}

// New returns a new OpenAI chat backend
func New(apiKey, model, language string) *OpenAI {
	return &OpenAI{
		APIKey:   apiKey,
		Model:    model,
		Language: language,
		BaseURL:  defaultBaseURL,
		client:   &http.Client{},
	}
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

// Chat sends the question, plus the screenshot when there is one
func (o *OpenAI) Chat(ctx context.Context, question string, image *models.ImageBuffer) (string, error) {
	if o.APIKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	language := o.Language
	if language == "" {
		language = "English"
	}

	content := []contentPart{{
		Type: "text",
		Text: fmt.Sprintf("You are a senior UI/UX design expert. Answer the user's question in %s: %s", language, question),
	}}
	if image != nil {
		content = append(content, contentPart{Type: "image_url", ImageURL: &imageURL{URL: image.DataURL()}})
	}

	requestBody, err := json.Marshal(map[string]interface{}{
		"model":    o.Model,
		"messages": []message{{Role: "user", Content: content}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := strings.TrimRight(o.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.APIKey)

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
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI")
	}

	return response.Choices[0].Message.Content, nil
}
