package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/uiaudit/internal/models"
)

// Correct asks the image model to apply the fixes and redraw the design.
// A response without any image part yields (nil, nil).
func (e *Engine) Correct(ctx context.Context, img models.ImageBuffer, instruction string) (*models.ImageBuffer, error) {
	m, closeFn, err := e.model(ctx, e.opts.CorrectionModel)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	resp, err := m.GenerateContent(ctx, correctionParts(img, instruction)...)
	if err != nil {
		return nil, fmt.Errorf("gemini correct: %w", err)
	}

	out := firstImage(resp)
	if out == nil {
		slog.Warn("Correction returned no image", "model", e.opts.CorrectionModel)
		return nil, nil
	}

	slog.Info("Design corrected", "model", e.opts.CorrectionModel, "mime", out.MIMEType, "bytes", len(out.Data))
	return out, nil
}

func correctionParts(img models.ImageBuffer, instruction string) []genai.Part {
	prompt := fmt.Sprintf("Improve the UI in this image by applying the following fixes: %s. Return the complete revised UI design as an image.", instruction)
	return []genai.Part{imagePart(prepare(img)), genai.Text(prompt)}
}

// firstImage returns the first inline image payload in the response
func firstImage(resp *genai.GenerateContentResponse) *models.ImageBuffer {
	if resp == nil {
		return nil
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			var blob genai.Blob
			switch v := p.(type) {
			case genai.Blob:
				blob = v
			case *genai.Blob:
				if v == nil {
					continue
				}
				blob = *v
			default:
				continue
			}
			if len(blob.Data) == 0 {
				continue
			}
			mime := blob.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return &models.ImageBuffer{MIMEType: mime, Data: blob.Data}
		}
	}
	return nil
}
