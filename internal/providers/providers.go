package providers

import (
	"context"

	"github.com/lehigh-university-libraries/uiaudit/internal/models"
)

// Chatter answers free-text questions about a design
type Chatter interface {
	Chat(ctx context.Context, message string, image *models.ImageBuffer) (string, error)
}

// Auditor is everything the workspace needs from the remote model.
//
// Analyze returns an empty slice with a nil error when the design has no
// issues; any failure is reported through the error. Correct returns a nil
// buffer with a nil error when the model answered without an image.
type Auditor interface {
	Analyze(ctx context.Context, image models.ImageBuffer) ([]models.Issue, error)
	Correct(ctx context.Context, image models.ImageBuffer, instruction string) (*models.ImageBuffer, error)
	Chatter
}

// WithChatter routes chat to a different backend while keeping analysis and
// correction on the base auditor
func WithChatter(base Auditor, chat Chatter) Auditor {
	if chat == nil {
		return base
	}
	return &routed{Auditor: base, chat: chat}
}

type routed struct {
	Auditor
	chat Chatter
}

func (r *routed) Chat(ctx context.Context, message string, image *models.ImageBuffer) (string, error) {
	return r.chat.Chat(ctx, message, image)
}
