package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/lehigh-university-libraries/uiaudit/internal/models"
)

type restPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *restInlineData `json:"inline_data,omitempty"`
	Thought    bool            `json:"thought,omitempty"`
}

type restInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type restContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []restPart `json:"parts"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type restGenerationConfig struct {
	ThinkingConfig *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type restRequest struct {
	Contents         []restContent        `json:"contents"`
	GenerationConfig restGenerationConfig `json:"generationConfig"`
}

type restResponse struct {
	Candidates []struct {
		Content restContent `json:"content"`
	} `json:"candidates"`
}

// Chat answers a question about the design as a senior UI/UX expert.
// Errors are returned to the caller untouched.
func (e *Engine) Chat(ctx context.Context, message string, img *models.ImageBuffer) (string, error) {
	if e.opts.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}
	if err := e.wait(ctx); err != nil {
		return "", err
	}

	parts := []restPart{{Text: fmt.Sprintf("You are a senior UI/UX design expert. Answer the user's question in %s: %s", e.opts.Language, message)}}
	if img != nil {
		prepared := prepare(*img)
		parts = append(parts, restPart{InlineData: &restInlineData{
			MIMEType: prepared.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(prepared.Data),
		}})
	}

	var reqBody restRequest
	reqBody.Contents = []restContent{{Role: "user", Parts: parts}}
	if e.opts.ThinkingBudget > 0 {
		reqBody.GenerationConfig.ThinkingConfig = &thinkingConfig{ThinkingBudget: e.opts.ThinkingBudget}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(e.opts.BaseURL, "/"), url.PathEscape(e.opts.ChatModel))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.opts.APIKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call Gemini API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("gemini API returned status %d: %s", resp.StatusCode, string(body))
	}

	var out restResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode Gemini response: %w", err)
	}

	// Thought summaries are not part of the answer
	var sb strings.Builder
	if len(out.Candidates) > 0 {
		for _, p := range out.Candidates[0].Content.Parts {
			if p.Thought {
				continue
			}
			sb.WriteString(p.Text)
		}
	}
	return sb.String(), nil
}
