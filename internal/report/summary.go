package report

// Summary aggregates the issue rows of one or more parquet exports
type Summary struct {
	Screens      int            `json:"screens" yaml:"screens"`
	Issues       int            `json:"issues" yaml:"issues"`
	AverageScore float64        `json:"average_score" yaml:"average_score"`
	BySeverity   map[string]int `json:"by_severity" yaml:"by_severity"`
	ByCategory   map[string]int `json:"by_category" yaml:"by_category"`
}

// Summarize counts issues per severity and category. Screens are counted by
// session, so a screen with no issues has no rows and is not included.
func Summarize(rows []IssueRow) Summary {
	sum := Summary{
		BySeverity: map[string]int{},
		ByCategory: map[string]int{},
	}
	scores := map[string]int{}
	for _, row := range rows {
		sum.Issues++
		sum.BySeverity[row.Severity]++
		sum.ByCategory[row.Category]++
		scores[row.Session] = row.Score
	}

	sum.Screens = len(scores)
	if sum.Screens > 0 {
		total := 0
		for _, s := range scores {
			total += s
		}
		sum.AverageScore = float64(total) / float64(sum.Screens)
	}
	return sum
}
