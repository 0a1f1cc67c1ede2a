package workspace

import (
	"time"

	"github.com/lehigh-university-libraries/uiaudit/internal/models"
)

// State is the pipeline position of a session. Chat is available in every state.
type State string

const (
	StateEmpty      State = "empty"
	StateLoaded     State = "loaded"
	StateAnalyzing  State = "analyzing"
	StateReviewed   State = "reviewed"
	StateCorrecting State = "correcting"
	StateCompared   State = "compared"
)

// StateOf derives the state from the stored session
func StateOf(s *models.Session) State {
	switch {
	case s.Image == nil:
		return StateEmpty
	case s.Analyzing:
		return StateAnalyzing
	case s.Correcting:
		return StateCorrecting
	case s.Corrected != nil:
		return StateCompared
	case s.Analyzed:
		return StateReviewed
	default:
		return StateLoaded
	}
}

// Snapshot is the view of a session handed to the UI. Image payloads are
// left out and served separately.
type Snapshot struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
	State     State     `json:"state"`

	HasImage      bool            `json:"has_image"`
	ImageMIMEType string          `json:"image_mime_type,omitempty"`
	Issues        []models.Issue  `json:"issues"`
	Score         *int            `json:"score,omitempty"`
	HasCorrection bool            `json:"has_correction"`
	View          models.ViewMode `json:"view"`

	Analyzing  bool `json:"analyzing"`
	Correcting bool `json:"correcting"`

	Transcript []models.ChatTurn `json:"transcript"`

	// Highlights are the visible parts of issue boxes, for drawing over the image
	Highlights []Highlight `json:"highlights"`

	LastAnalysis   *models.Outcome `json:"last_analysis,omitempty"`
	LastCorrection *models.Outcome `json:"last_correction,omitempty"`
	LastChat       *models.Outcome `json:"last_chat,omitempty"`

	CanAnalyze bool `json:"can_analyze"`
	CanCorrect bool `json:"can_correct"`
	CanCompare bool `json:"can_compare"`
}

func NewSnapshot(s *models.Session) Snapshot {
	s = s.Clone()
	busy := s.Analyzing || s.Correcting

	snap := Snapshot{
		ID:             s.ID,
		Name:           s.Name,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		Version:        s.Version,
		State:          StateOf(s),
		HasImage:       s.Image != nil,
		Issues:         s.Issues,
		HasCorrection:  s.Corrected != nil,
		View:           s.View,
		Analyzing:      s.Analyzing,
		Correcting:     s.Correcting,
		Transcript:     s.Transcript,
		LastAnalysis:   s.LastAnalysis,
		LastCorrection: s.LastCorrection,
		LastChat:       s.LastChat,
		CanAnalyze:     s.Image != nil && !busy,
		CanCorrect:     s.Image != nil && s.Analyzed && len(s.Issues) > 0 && s.Corrected == nil && !busy,
		CanCompare:     s.Corrected != nil,
	}
	if s.Image != nil {
		snap.ImageMIMEType = s.Image.MIMEType
	}
	if snap.Issues == nil {
		snap.Issues = []models.Issue{}
	}
	if snap.Transcript == nil {
		snap.Transcript = []models.ChatTurn{}
	}
	snap.Highlights = highlights(snap.Issues)
	if snap.View == "" {
		snap.View = models.ViewSingle
	}
	if s.Analyzed {
		score := models.QualityScore(s.Issues)
		snap.Score = &score
	}
	return snap
}

// Highlight is an issue box clipped to the image
type Highlight struct {
	IssueID  string          `json:"issue_id"`
	Severity models.Severity `json:"severity"`
	Title    string          `json:"title"`
	Box      models.Location `json:"box"`
}

func highlights(issues []models.Issue) []Highlight {
	out := []Highlight{}
	for _, is := range issues {
		if is.Location == nil {
			continue
		}
		box, ok := is.Location.Clamped()
		if !ok {
			continue
		}
		out = append(out, Highlight{IssueID: is.ID, Severity: is.Severity, Title: is.Title, Box: box})
	}
	return out
}

// Project summarizes the snapshot for listings
func (s Snapshot) Project() models.DesignProject {
	p := models.DesignProject{
		ID:        s.ID,
		Name:      s.Name,
		CreatedAt: s.CreatedAt,
		Issues:    s.Issues,
	}
	if s.HasImage {
		p.ImageURL = "/api/sessions/" + s.ID + "/image"
	}
	if s.HasCorrection {
		p.CorrectedImageURL = "/api/sessions/" + s.ID + "/corrected"
	}
	return p
}
