package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/uiaudit/internal/images"
	"github.com/lehigh-university-libraries/uiaudit/internal/models"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Options configures an Engine
type Options struct {
	APIKey          string
	AnalysisModel   string
	CorrectionModel string
	ChatModel       string
	ThinkingBudget  int
	Language        string
	Spec            models.DesignSpec

	// RequestsPerSecond throttles all three calls together; 0 disables it
	RequestsPerSecond float64
	// BaseURL overrides the REST endpoint used for chat
	BaseURL string
}

// Engine talks to Google Gemini for analysis, correction and chat
type Engine struct {
	opts       Options
	limiter    *rate.Limiter
	httpClient *http.Client

	specMu sync.RWMutex
	spec   models.DesignSpec
}

// New returns a new Gemini engine
func New(opts Options) *Engine {
	opts.APIKey = strings.TrimSpace(opts.APIKey)
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Language == "" {
		opts.Language = "English"
	}
	if opts.Spec.BaseGrid == 0 {
		opts.Spec = models.DefaultDesignSpec()
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Engine{
		opts:       opts,
		limiter:    rate.NewLimiter(limit, 1),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		spec:       opts.Spec,
	}
}

func (e *Engine) Name() string { return "gemini" }

// SetSpec swaps the design rules used by later analyses
func (e *Engine) SetSpec(spec models.DesignSpec) {
	e.specMu.Lock()
	e.spec = spec
	e.specMu.Unlock()
}

func (e *Engine) Spec() models.DesignSpec {
	e.specMu.RLock()
	defer e.specMu.RUnlock()
	return e.spec
}

func (e *Engine) wait(ctx context.Context) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// model opens a client for one call; the returned func closes it
func (e *Engine) model(ctx context.Context, name string) (*genai.GenerativeModel, func(), error) {
	if e.opts.APIKey == "" {
		return nil, nil, errors.New("GEMINI_API_KEY is empty")
	}
	if err := e.wait(ctx); err != nil {
		return nil, nil, err
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(e.opts.APIKey))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			slog.Warn("Unable to close gemini client", "err", err)
		}
	}
	return client.GenerativeModel(strings.TrimSpace(name)), closeFn, nil
}

// prepare shrinks oversized screenshots before they are uploaded
func prepare(img models.ImageBuffer) models.ImageBuffer {
	out, resized, err := images.Downscale(img, images.DefaultMaxEdge)
	if err != nil {
		slog.Debug("Sending image unmodified", "mime", img.MIMEType, "err", err)
		return img
	}
	if resized {
		slog.Debug("Downscaled image before upload", "from_bytes", len(img.Data), "to_bytes", len(out.Data))
	}
	return out
}

func imagePart(img models.ImageBuffer) genai.Part {
	return genai.Blob{MIMEType: img.MIMEType, Data: img.Data}
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func ptrFloat32(v float32) *float32 { return &v }
