// Package shell serves the static informational panels around the
// workspace. None of it depends on the model clients.
package shell

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed panels.yaml
var panelsYAML []byte

var ErrUnknownPanel = errors.New("unknown panel")

type NavItem struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

type Stat struct {
	Label  string `yaml:"label" json:"label"`
	Value  string `yaml:"value" json:"value"`
	Change string `yaml:"change" json:"change"`
	Color  string `yaml:"color" json:"color"`
}

type ActiveProject struct {
	Name     string `yaml:"name" json:"name"`
	Updated  string `yaml:"updated" json:"updated"`
	Pending  int    `yaml:"pending" json:"pending"`
	Progress int    `yaml:"progress" json:"progress"`
}

type Activity struct {
	Text string `yaml:"text" json:"text"`
	Time string `yaml:"time" json:"time"`
	Type string `yaml:"type" json:"type"`
}

type Dashboard struct {
	Greeting       string          `yaml:"greeting" json:"greeting"`
	Subtitle       string          `yaml:"subtitle" json:"subtitle"`
	Stats          []Stat          `yaml:"stats" json:"stats"`
	ActiveProjects []ActiveProject `yaml:"active_projects" json:"active_projects"`
	Activity       []Activity      `yaml:"activity" json:"activity"`
}

type HistoryEntry struct {
	ID     int    `yaml:"id" json:"id"`
	Name   string `yaml:"name" json:"name"`
	Date   string `yaml:"date" json:"date"`
	Issues int    `yaml:"issues" json:"issues"`
	Score  int    `yaml:"score" json:"score"`
	Status string `yaml:"status" json:"status"`
}

type Member struct {
	Name   string `yaml:"name" json:"name"`
	Role   string `yaml:"role" json:"role"`
	Status string `yaml:"status" json:"status"`
	Avatar string `yaml:"avatar" json:"avatar"`
}

type Team struct {
	Title    string   `yaml:"title" json:"title"`
	Projects int      `yaml:"projects" json:"projects"`
	Members  []Member `yaml:"members" json:"members"`
}

type Panels struct {
	Product   string         `yaml:"product" json:"product"`
	Nav       []NavItem      `yaml:"nav" json:"nav"`
	Dashboard Dashboard      `yaml:"dashboard" json:"dashboard"`
	History   []HistoryEntry `yaml:"history" json:"history"`
	Team      Team           `yaml:"team" json:"team"`
}

var loadPanels = sync.OnceValues(func() (*Panels, error) {
	return parse(panelsYAML)
})

func parse(data []byte) (*Panels, error) {
	var p Panels
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse panels: %w", err)
	}
	return &p, nil
}

// Load returns the embedded panel data
func Load() (*Panels, error) {
	return loadPanels()
}

// SearchHistory filters history rows by a case-insensitive name match
func (p *Panels) SearchHistory(query string) []HistoryEntry {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]HistoryEntry, 0, len(p.History))
	for _, h := range p.History {
		if query == "" || strings.Contains(strings.ToLower(h.Name), query) {
			out = append(out, h)
		}
	}
	return out
}

// Panel returns one panel by the id used in navigation
func (p *Panels) Panel(name string) (interface{}, error) {
	switch name {
	case "dashboard":
		return p.Dashboard, nil
	case "history":
		return p.History, nil
	case "team":
		return p.Team, nil
	case "nav":
		return p.Nav, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownPanel, name)
}
