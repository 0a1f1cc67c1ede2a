package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/uiaudit/internal/models"
)

// Analyze asks the model for a list of design issues in the screenshot.
// Issue IDs are assigned locally in the order the model returned them.
func (e *Engine) Analyze(ctx context.Context, img models.ImageBuffer) ([]models.Issue, error) {
	m, closeFn, err := e.model(ctx, e.opts.AnalysisModel)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	config, parts := e.analysisRequest(img)
	m.GenerationConfig = config
	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini analyze: %w", err)
	}

	issues, err := parseIssues(firstText(resp))
	if err != nil {
		return nil, fmt.Errorf("gemini analyze: %w", err)
	}

	slog.Info("Design analyzed", "model", e.opts.AnalysisModel, "issues", len(issues))
	return issues, nil
}

// analysisRequest is the structured-output config and the parts sent for
// one screenshot
func (e *Engine) analysisRequest(img models.ImageBuffer) (genai.GenerationConfig, []genai.Part) {
	config := genai.GenerationConfig{
		Temperature:      ptrFloat32(0.2),
		ResponseMIMEType: "application/json",
		ResponseSchema:   issueListSchema(),
	}
	return config, []genai.Part{imagePart(prepare(img)), genai.Text(e.analysisPrompt())}
}

func (e *Engine) analysisPrompt() string {
	spec := e.Spec()
	return fmt.Sprintf(`Analyze this UI design screenshot and find common UX/UI design issues.

Check for:
1. Color contrast (WCAG compliance). The brand primary color is %s, secondary %s, success %s.
2. Typography hierarchy and consistency. Expected sizes: body %dpx, heading %dpx, caption %dpx, font family %s.
3. Spacing and grid alignment against a %dpx base grid.
4. Component consistency (buttons, inputs, corner radius of %dpx).
5. Usability (labels, touch/click target sizes).

Return a structured JSON list. Write title, description and suggestion in %s.
Each issue must contain:
category (one of: %s),
severity (one of: %s),
title (short name),
description (the specific problem),
suggestion (how to fix it),
location (x, y, width, height as percentages of the image size, origin top-left).`,
		spec.PrimaryColor, spec.SecondaryColor, spec.SuccessColor,
		spec.BodySize, spec.HeadingSize, spec.CaptionSize, spec.FontFamily,
		spec.BaseGrid,
		spec.BorderRadius,
		e.opts.Language,
		joinEnum(models.Categories),
		joinEnum(models.Severities),
	)
}

func joinEnum[T ~string](vals []T) string {
	return strings.Join(enumStrings(vals), ", ")
}

type rawIssue struct {
	Category    models.Category  `json:"category"`
	Severity    models.Severity  `json:"severity"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Suggestion  string           `json:"suggestion"`
	Location    *models.Location `json:"location"`
}

// parseIssues validates the model output and numbers the issues issue-0..issue-N-1
func parseIssues(text string) ([]models.Issue, error) {
	text = stripCodeFences(text)
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}
	if err := validateIssueJSON(text); err != nil {
		return nil, err
	}

	var raw []rawIssue
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("bad JSON: %w", err)
	}

	issues := make([]models.Issue, 0, len(raw))
	for i, r := range raw {
		issues = append(issues, models.Issue{
			ID:          fmt.Sprintf("issue-%d", i),
			Category:    r.Category,
			Severity:    r.Severity,
			Title:       r.Title,
			Description: r.Description,
			Suggestion:  r.Suggestion,
			Location:    r.Location,
		})
	}
	return issues, nil
}
