package providers

import (
	"context"
	"sync"

	"github.com/lehigh-university-libraries/uiaudit/internal/models"
)

// Static is a canned Auditor for tests and demos. Each hook is optional;
// a nil hook answers with the matching field.
type Static struct {
	Issues    []models.Issue
	Corrected *models.ImageBuffer
	Reply     string

	AnalyzeFunc func(ctx context.Context, image models.ImageBuffer) ([]models.Issue, error)
	CorrectFunc func(ctx context.Context, image models.ImageBuffer, instruction string) (*models.ImageBuffer, error)
	ChatFunc    func(ctx context.Context, message string, image *models.ImageBuffer) (string, error)

	mu           sync.Mutex
	instructions []string
}

func (s *Static) Analyze(ctx context.Context, image models.ImageBuffer) ([]models.Issue, error) {
	if s.AnalyzeFunc != nil {
		return s.AnalyzeFunc(ctx, image)
	}
	out := make([]models.Issue, len(s.Issues))
	copy(out, s.Issues)
	return out, nil
}

func (s *Static) Correct(ctx context.Context, image models.ImageBuffer, instruction string) (*models.ImageBuffer, error) {
	s.mu.Lock()
	s.instructions = append(s.instructions, instruction)
	s.mu.Unlock()

	if s.CorrectFunc != nil {
		return s.CorrectFunc(ctx, image, instruction)
	}
	return s.Corrected, nil
}

func (s *Static) Chat(ctx context.Context, message string, image *models.ImageBuffer) (string, error) {
	if s.ChatFunc != nil {
		return s.ChatFunc(ctx, message, image)
	}
	return s.Reply, nil
}

// Instructions returns every correction instruction received so far
func (s *Static) Instructions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.instructions))
	copy(out, s.instructions)
	return out
}
