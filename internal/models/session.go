package models

import "time"

// ViewMode selects how the workspace shows the screenshot
type ViewMode string

const (
	ViewSingle  ViewMode = "single"
	ViewCompare ViewMode = "compare"
)

// OutcomeStatus tags how the last call of an operation ended
type OutcomeStatus string

const (
	OutcomeOK     OutcomeStatus = "ok"
	OutcomeFailed OutcomeStatus = "failed"
	// OutcomeStale means the result arrived after a newer upload and was dropped
	OutcomeStale OutcomeStatus = "stale"
)

type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
	At     time.Time     `json:"at"`
}

// Session is one review workspace. Version is bumped on every upload and
// tags in-flight calls so late results for an older image can be dropped.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`

	Image     *ImageBuffer `json:"image,omitempty"`
	Issues    []Issue      `json:"issues"`
	Analyzed  bool         `json:"analyzed"`
	Corrected *ImageBuffer `json:"corrected,omitempty"`
	View      ViewMode     `json:"view"`

	Analyzing  bool `json:"analyzing"`
	Correcting bool `json:"correcting"`

	Transcript []ChatTurn `json:"transcript"`

	LastAnalysis   *Outcome `json:"last_analysis,omitempty"`
	LastCorrection *Outcome `json:"last_correction,omitempty"`
	LastChat       *Outcome `json:"last_chat,omitempty"`
}

// Clone copies the session so callers can mutate it without touching the
// stored value. Image buffers are shared since they are never mutated.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Issues != nil {
		c.Issues = make([]Issue, len(s.Issues))
		copy(c.Issues, s.Issues)
		for i, is := range c.Issues {
			if is.Location != nil {
				loc := *is.Location
				c.Issues[i].Location = &loc
			}
		}
	}
	if s.Transcript != nil {
		c.Transcript = make([]ChatTurn, len(s.Transcript))
		copy(c.Transcript, s.Transcript)
	}
	c.LastAnalysis = cloneOutcome(s.LastAnalysis)
	c.LastCorrection = cloneOutcome(s.LastCorrection)
	c.LastChat = cloneOutcome(s.LastChat)
	return &c
}

func cloneOutcome(o *Outcome) *Outcome {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}
