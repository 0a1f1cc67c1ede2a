package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/uiaudit/internal/metrics"
	"github.com/lehigh-university-libraries/uiaudit/internal/models"
)

// Chat asks a question about the current design. Chat is independent of the
// image pipeline, so several questions may be in flight at once. The user
// turn and its answer are appended together when the answer arrives, which
// keeps each pair adjacent. A failed call still appends the pair, with
// ChatFallback as the answer, and the failure is returned wrapped in
// ErrRemote.
func (c *Controller) Chat(ctx context.Context, id, message string) (Snapshot, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Snapshot{}, ErrEmptyMessage
	}

	current, err := c.store.Get(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	img := current.Image

	callCtx, cancel := c.callContext(ctx)
	start := time.Now()
	reply, callErr := c.auditor.Chat(callCtx, message, img)
	cancel()
	metrics.ObserveCall("chat", start, callErr)

	answer := reply
	if callErr != nil {
		slog.Error("Chat failed", "session_id", id, "err", callErr)
		answer = ChatFallback
	} else if strings.TrimSpace(answer) == "" {
		slog.Warn("Chat returned an empty answer", "session_id", id)
		answer = ChatFallback
	}

	s, err := c.update(context.WithoutCancel(ctx), id, func(s *models.Session) error {
		s.Transcript = append(s.Transcript,
			models.ChatTurn{Role: models.RoleUser, Content: message},
			models.ChatTurn{Role: models.RoleAssistant, Content: answer},
		)
		s.LastChat = c.outcome(callErr, "")
		return nil
	})
	if err != nil {
		return snapshotOrEmpty(s), err
	}
	if callErr != nil {
		return NewSnapshot(s), fmt.Errorf("%w: %v", ErrRemote, callErr)
	}
	return NewSnapshot(s), nil
}
