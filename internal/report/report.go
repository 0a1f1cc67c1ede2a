// Package report exports the findings of a review session.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/lehigh-university-libraries/uiaudit/internal/models"
	"github.com/lehigh-university-libraries/uiaudit/internal/workspace"
)

type Format string

const (
	FormatYAML    Format = "yaml"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

var ErrUnknownFormat = errors.New("unknown report format")

// ParseFormat accepts yaml, yml, json or parquet; empty means yaml
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "parquet":
		return FormatParquet, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "application/yaml"
	}
}

func (f Format) Extension() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return "." + string(f)
}

// Report is the exported view of one session
type Report struct {
	Session     string         `json:"session" yaml:"session"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	CreatedAt   time.Time      `json:"created_at" yaml:"created_at"`
	GeneratedAt time.Time      `json:"generated_at" yaml:"generated_at"`
	Status      string         `json:"status" yaml:"status"`
	Reason      string         `json:"reason,omitempty" yaml:"reason,omitempty"`
	Score       int            `json:"score" yaml:"score"`
	Issues      []models.Issue `json:"issues" yaml:"issues"`
	Corrected   bool           `json:"corrected" yaml:"corrected"`
}

// IssueRow is one issue flattened for columnar export
type IssueRow struct {
	Session     string  `parquet:"session"`
	Name        string  `parquet:"name"`
	GeneratedAt string  `parquet:"generated_at"`
	Score       int     `parquet:"score"`
	IssueID     string  `parquet:"issue_id"`
	Category    string  `parquet:"category"`
	Severity    string  `parquet:"severity"`
	Title       string  `parquet:"title"`
	Description string  `parquet:"description"`
	Suggestion  string  `parquet:"suggestion"`
	HasLocation bool    `parquet:"has_location"`
	X           float64 `parquet:"x"`
	Y           float64 `parquet:"y"`
	Width       float64 `parquet:"width"`
	Height      float64 `parquet:"height"`
}

// FromSnapshot builds a report. A session that was never analyzed reports
// status "pending".
func FromSnapshot(snap workspace.Snapshot, now time.Time) Report {
	r := Report{
		Session:     snap.ID,
		Name:        snap.Name,
		CreatedAt:   snap.CreatedAt,
		GeneratedAt: now,
		Status:      "pending",
		Issues:      snap.Issues,
		Corrected:   snap.HasCorrection,
	}
	if r.Issues == nil {
		r.Issues = []models.Issue{}
	}
	if snap.Score != nil {
		r.Score = *snap.Score
	}
	if snap.LastAnalysis != nil {
		r.Status = string(snap.LastAnalysis.Status)
		r.Reason = snap.LastAnalysis.Reason
	}
	return r
}

func (r Report) Rows() []IssueRow {
	rows := make([]IssueRow, 0, len(r.Issues))
	for _, is := range r.Issues {
		row := IssueRow{
			Session:     r.Session,
			Name:        r.Name,
			GeneratedAt: r.GeneratedAt.UTC().Format(time.RFC3339),
			Score:       r.Score,
			IssueID:     is.ID,
			Category:    string(is.Category),
			Severity:    string(is.Severity),
			Title:       is.Title,
			Description: is.Description,
			Suggestion:  is.Suggestion,
		}
		if is.Location != nil {
			row.HasLocation = true
			row.X = is.Location.X
			row.Y = is.Location.Y
			row.Width = is.Location.Width
			row.Height = is.Location.Height
		}
		rows = append(rows, row)
	}
	return rows
}

// Write encodes the reports in the given format. YAML and JSON write a
// single document when there is exactly one report and a list otherwise;
// parquet writes one row per issue across all reports.
func Write(w io.Writer, format Format, reports ...Report) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(single(reports)); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(single(reports)); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	case FormatParquet:
		return writeParquet(w, reports)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func single(reports []Report) interface{} {
	if len(reports) == 1 {
		return reports[0]
	}
	return reports
}

func writeParquet(w io.Writer, reports []Report) error {
	writer := parquet.NewGenericWriter[IssueRow](w)
	for _, r := range reports {
		rows := r.Rows()
		if len(rows) == 0 {
			continue
		}
		if _, err := writer.Write(rows); err != nil {
			return fmt.Errorf("failed to write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// ReadParquet loads the rows written by Write with FormatParquet
func ReadParquet(r io.ReaderAt, size int64) ([]IssueRow, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[IssueRow](pf)
	defer reader.Close()

	var out []IssueRow
	rows := make([]IssueRow, 64)
	for {
		n, err := reader.Read(rows)
		out = append(out, rows[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}
	return out, nil
}
