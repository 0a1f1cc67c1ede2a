package workspace

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/uiaudit/internal/metrics"
	"github.com/lehigh-university-libraries/uiaudit/internal/models"
)

// Analyze runs the structured analysis on the current image. A failed call
// leaves an empty issue list and a failed outcome; it is not returned as an
// error. ErrStale is returned when the image changed while the call ran.
func (c *Controller) Analyze(ctx context.Context, id string) (Snapshot, error) {
	var (
		img     models.ImageBuffer
		version int64
	)
	s, err := c.update(ctx, id, func(s *models.Session) error {
		if s.Image == nil {
			return ErrNoImage
		}
		if s.Analyzing || s.Correcting {
			return ErrBusy
		}
		s.Analyzing = true
		img = *s.Image
		version = s.Version
		return nil
	})
	if err != nil {
		return snapshotOrEmpty(s), err
	}

	callCtx, cancel := c.callContext(ctx)
	start := time.Now()
	issues, callErr := c.auditor.Analyze(callCtx, img)
	cancel()
	metrics.ObserveCall("analyze", start, callErr)

	if callErr != nil {
		slog.Error("Analysis failed", "session_id", id, "err", callErr)
		issues = nil
	} else {
		metrics.IssuesFound(len(issues))
	}

	s, err = c.complete(ctx, id, version, "analyze", func(s *models.Session) {
		s.Analyzing = false
		s.Analyzed = true
		s.Issues = issues
		s.LastAnalysis = c.outcome(callErr, "")
	})
	if err != nil {
		return snapshotOrEmpty(s), err
	}
	slog.Info("Analysis finished", "session_id", id, "issues", len(s.Issues), "status", s.LastAnalysis.Status)
	return NewSnapshot(s), nil
}

// Correct asks for a regenerated design that applies every issue's fix.
// Without an image in the answer the session stays on the issue list.
func (c *Controller) Correct(ctx context.Context, id string) (Snapshot, error) {
	var (
		img         models.ImageBuffer
		instruction string
		version     int64
	)
	s, err := c.update(ctx, id, func(s *models.Session) error {
		if s.Image == nil {
			return ErrNoImage
		}
		if !s.Analyzed || len(s.Issues) == 0 {
			return ErrNoIssues
		}
		if s.Corrected != nil {
			return ErrAlreadyCorrected
		}
		if s.Analyzing || s.Correcting {
			return ErrBusy
		}
		s.Correcting = true
		img = *s.Image
		instruction = BuildInstruction(s.Issues)
		version = s.Version
		return nil
	})
	if err != nil {
		return snapshotOrEmpty(s), err
	}

	callCtx, cancel := c.callContext(ctx)
	start := time.Now()
	corrected, callErr := c.auditor.Correct(callCtx, img, instruction)
	cancel()
	metrics.ObserveCall("correct", start, callErr)

	if callErr != nil {
		slog.Error("Correction failed", "session_id", id, "err", callErr)
		corrected = nil
	}

	s, err = c.complete(ctx, id, version, "correct", func(s *models.Session) {
		s.Correcting = false
		switch {
		case callErr != nil:
			s.LastCorrection = c.outcome(callErr, "")
		case corrected == nil || len(corrected.Data) == 0:
			s.LastCorrection = c.outcome(nil, "model returned no image")
		default:
			s.Corrected = corrected
			s.View = models.ViewCompare
			s.LastCorrection = c.outcome(nil, "")
		}
	})
	if err != nil {
		return snapshotOrEmpty(s), err
	}
	slog.Info("Correction finished", "session_id", id, "status", s.LastCorrection.Status)
	return NewSnapshot(s), nil
}

// BuildInstruction joins each issue as "title: suggestion", separated by "; "
func BuildInstruction(issues []models.Issue) string {
	parts := make([]string, 0, len(issues))
	for _, is := range issues {
		parts = append(parts, is.Title+": "+is.Suggestion)
	}
	return strings.Join(parts, "; ")
}

// IsPrecondition reports whether err rejects an action for the session's
// current state rather than signalling a failure
func IsPrecondition(err error) bool {
	for _, target := range []error{ErrNoImage, ErrBusy, ErrNoIssues, ErrAlreadyCorrected, ErrNoCorrection, ErrStale} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
