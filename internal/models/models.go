package models

import (
	"encoding/base64"
	"time"
)

// Category groups a design issue by the kind of rule it breaks
type Category string

const (
	CategoryVisual    Category = "Visual"
	CategoryHierarchy Category = "Hierarchy"
	CategoryUsability Category = "Usability"
	CategoryDetail    Category = "Detail"
)

// Categories lists every valid category in display order
var Categories = []Category{CategoryVisual, CategoryHierarchy, CategoryUsability, CategoryDetail}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Severity ranks how urgently an issue should be fixed
type Severity string

const (
	SeverityCritical   Severity = "Critical"
	SeverityWarning    Severity = "Warning"
	SeveritySuggestion Severity = "Suggestion"
)

// Severities lists every valid severity from most to least urgent
var Severities = []Severity{SeverityCritical, SeverityWarning, SeveritySuggestion}

func (s Severity) Valid() bool {
	for _, v := range Severities {
		if s == v {
			return true
		}
	}
	return false
}

// Location is a rectangle in percentages (0-100) of the image, origin top-left
type Location struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Clamped returns the part of the rectangle that lies inside the image.
// The second return value is false when nothing of it is visible.
func (l Location) Clamped() (Location, bool) {
	x0, y0 := clampPct(l.X), clampPct(l.Y)
	x1, y1 := clampPct(l.X+l.Width), clampPct(l.Y+l.Height)
	if x1 <= x0 || y1 <= y0 {
		return Location{}, false
	}
	return Location{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}, true
}

func clampPct(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// Issue is one design problem found in a screenshot
type Issue struct {
	ID          string    `json:"id" yaml:"id"`
	Category    Category  `json:"category" yaml:"category"`
	Severity    Severity  `json:"severity" yaml:"severity"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Suggestion  string    `json:"suggestion" yaml:"suggestion"`
	Location    *Location `json:"location,omitempty" yaml:"location,omitempty"`
}

// QualityScore is the headline score shown next to an issue list
func QualityScore(issues []Issue) int {
	score := 100 - 3*len(issues)
	if score < 0 {
		return 0
	}
	return score
}

// ImageBuffer is an encoded image held in memory.
// Buffers are replaced wholesale, never mutated in place.
type ImageBuffer struct {
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// DataURL renders the buffer as a data: URI
func (b *ImageBuffer) DataURL() string {
	if b == nil {
		return ""
	}
	return "data:" + b.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(b.Data)
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one message in the design chat transcript
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// DesignProject summarizes a reviewed design for listings and exports
type DesignProject struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	ImageURL          string    `json:"image_url"`
	CreatedAt         time.Time `json:"created_at"`
	Issues            []Issue   `json:"issues"`
	CorrectedImageURL string    `json:"corrected_image_url,omitempty"`
}

// DesignSpec holds the team design rules the analysis checks against
type DesignSpec struct {
	PrimaryColor   string `json:"primary_color" yaml:"primary_color"`
	SecondaryColor string `json:"secondary_color" yaml:"secondary_color"`
	SuccessColor   string `json:"success_color" yaml:"success_color"`
	BaseGrid       int    `json:"base_grid" yaml:"base_grid"`
	BorderRadius   int    `json:"border_radius" yaml:"border_radius"`
	FontFamily     string `json:"font_family" yaml:"font_family"`
	BodySize       int    `json:"body_size" yaml:"body_size"`
	HeadingSize    int    `json:"heading_size" yaml:"heading_size"`
	CaptionSize    int    `json:"caption_size" yaml:"caption_size"`
}

// DefaultDesignSpec mirrors the defaults of the specs panel
func DefaultDesignSpec() DesignSpec {
	return DesignSpec{
		PrimaryColor:   "#2563EB",
		SecondaryColor: "#4F46E5",
		SuccessColor:   "#22C55E",
		BaseGrid:       8,
		BorderRadius:   8,
		FontFamily:     "Inter",
		BodySize:       14,
		HeadingSize:    24,
		CaptionSize:    12,
	}
}
