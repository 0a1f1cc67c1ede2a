// Package workspace sequences uploads, analysis, auto-correction and chat
// for each review session.
//
// The controller holds no session state of its own. Every operation is a
// read-modify-write against the store guarded by a per-session lock, and
// remote calls run outside that lock. Each call carries the session version
// it was issued against; a result is dropped when an upload bumped the
// version in the meantime.
package workspace

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/uiaudit/internal/metrics"
	"github.com/lehigh-university-libraries/uiaudit/internal/models"
	"github.com/lehigh-university-libraries/uiaudit/internal/providers"
	"github.com/lehigh-university-libraries/uiaudit/internal/storage"
)

var (
	ErrNoImage          = errors.New("no image uploaded")
	ErrBusy             = errors.New("another request is already in flight")
	ErrNoIssues         = errors.New("no issues to correct")
	ErrAlreadyCorrected = errors.New("design already corrected")
	ErrNoCorrection     = errors.New("no corrected image")
	ErrStale            = errors.New("result discarded: a newer image was uploaded")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrInvalidView      = errors.New("invalid view mode")
	ErrRemote           = errors.New("remote call failed")
)

// ChatFallback is stored as the assistant turn when chat fails or answers nothing
const ChatFallback = "Sorry, I could not process that request."

const DefaultTimeout = 120 * time.Second

type Controller struct {
	store   storage.Store
	auditor providers.Auditor
	timeout time.Duration
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type Option func(*Controller)

// WithTimeout bounds every remote call. Zero or less disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.timeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func New(store storage.Store, auditor providers.Auditor, opts ...Option) *Controller {
	c := &Controller{
		store:   store,
		auditor: auditor,
		timeout: DefaultTimeout,
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// lock serializes writers of one session
func (c *Controller) lock(id string) func() {
	c.mu.Lock()
	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}

func (c *Controller) forget(id string) {
	c.mu.Lock()
	delete(c.locks, id)
	c.mu.Unlock()
}

func (c *Controller) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// update applies fn through the store's atomic Update. fn returning an error
// leaves the stored session untouched. fn may run again on a fresh copy when
// another process wrote the session first, so it only sets the session and
// plain locals.
func (c *Controller) update(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, error) {
	unlock := c.lock(id)
	defer unlock()

	return c.store.Update(ctx, id, func(s *models.Session) error {
		if err := fn(s); err != nil {
			return err
		}
		s.UpdatedAt = c.now()
		return nil
	})
}

// complete applies a finished call's result if the session still holds the
// image the call was issued against
func (c *Controller) complete(ctx context.Context, id string, version int64, operation string, fn func(*models.Session)) (*models.Session, error) {
	// the result must land even if the caller went away
	ctx = context.WithoutCancel(ctx)
	return c.update(ctx, id, func(s *models.Session) error {
		if s.Version != version {
			metrics.StaleResult(operation)
			slog.Warn("Discarding stale result", "session_id", id, "operation", operation, "issued_version", version, "current_version", s.Version)
			return ErrStale
		}
		fn(s)
		return nil
	})
}

func (c *Controller) outcome(err error, reason string) *models.Outcome {
	if err != nil {
		return &models.Outcome{Status: models.OutcomeFailed, Reason: err.Error(), At: c.now()}
	}
	if reason != "" {
		return &models.Outcome{Status: models.OutcomeFailed, Reason: reason, At: c.now()}
	}
	return &models.Outcome{Status: models.OutcomeOK, At: c.now()}
}

func (c *Controller) countSessions(ctx context.Context) {
	list, err := c.store.List(ctx)
	if err != nil {
		slog.Warn("Unable to count sessions", "err", err)
		return
	}
	metrics.SetSessions(len(list))
}

// Create starts an empty review session
func (c *Controller) Create(ctx context.Context, name string) (Snapshot, error) {
	now := c.now()
	s := &models.Session{
		ID:         uuid.NewString(),
		Name:       name,
		CreatedAt:  now,
		UpdatedAt:  now,
		View:       models.ViewSingle,
		Transcript: []models.ChatTurn{},
	}
	if err := c.store.Set(ctx, s); err != nil {
		return Snapshot{}, err
	}
	slog.Info("Session created", "session_id", s.ID)
	c.countSessions(ctx)
	return NewSnapshot(s), nil
}

func (c *Controller) Get(ctx context.Context, id string) (Snapshot, error) {
	s, err := c.store.Get(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(s), nil
}

func (c *Controller) List(ctx context.Context) ([]Snapshot, error) {
	list, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Snapshot, 0, len(list))
	for _, s := range list {
		out = append(out, NewSnapshot(s))
	}
	return out, nil
}

func (c *Controller) Delete(ctx context.Context, id string) error {
	unlock := c.lock(id)
	err := c.store.Delete(ctx, id)
	unlock()
	if err != nil {
		return err
	}
	c.forget(id)
	slog.Info("Session deleted", "session_id", id)
	c.countSessions(ctx)
	return nil
}

// Upload replaces the session image. The issue list, corrected image, view
// and pipeline outcomes are reset; the chat transcript is kept. Any analysis
// or correction still in flight is orphaned by the version bump.
func (c *Controller) Upload(ctx context.Context, id, name string, img models.ImageBuffer) (Snapshot, error) {
	if len(img.Data) == 0 {
		return Snapshot{}, ErrNoImage
	}
	s, err := c.update(ctx, id, func(s *models.Session) error {
		s.Version++
		s.Image = &img
		if name != "" {
			s.Name = name
		}
		s.Issues = nil
		s.Analyzed = false
		s.Corrected = nil
		s.View = models.ViewSingle
		s.Analyzing = false
		s.Correcting = false
		s.LastAnalysis = nil
		s.LastCorrection = nil
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	slog.Info("Image uploaded", "session_id", id, "version", s.Version, "mime", img.MIMEType, "bytes", len(img.Data))
	return NewSnapshot(s), nil
}

// SetView switches between the single image and the side-by-side comparison
func (c *Controller) SetView(ctx context.Context, id string, mode models.ViewMode) (Snapshot, error) {
	if mode != models.ViewSingle && mode != models.ViewCompare {
		return Snapshot{}, ErrInvalidView
	}
	s, err := c.update(ctx, id, func(s *models.Session) error {
		if mode == models.ViewCompare && s.Corrected == nil {
			return ErrNoCorrection
		}
		s.View = mode
		return nil
	})
	return snapshotOrEmpty(s), err
}

// Image returns the uploaded image, or the corrected one
func (c *Controller) Image(ctx context.Context, id string, corrected bool) (*models.ImageBuffer, error) {
	s, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if corrected {
		if s.Corrected == nil {
			return nil, ErrNoCorrection
		}
		return s.Corrected, nil
	}
	if s.Image == nil {
		return nil, ErrNoImage
	}
	return s.Image, nil
}

func snapshotOrEmpty(s *models.Session) Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return NewSnapshot(s)
}
