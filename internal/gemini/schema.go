package gemini

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/lehigh-university-libraries/uiaudit/internal/models"
	"github.com/xeipuuv/gojsonschema"
)

func enumStrings[T ~string](vals []T) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}

// issueListSchema constrains the structured-generation response
func issueListSchema() *genai.Schema {
	number := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeNumber, Description: desc}
	}
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"category":    {Type: genai.TypeString, Enum: enumStrings(models.Categories)},
				"severity":    {Type: genai.TypeString, Enum: enumStrings(models.Severities)},
				"title":       {Type: genai.TypeString, Description: "Short name of the issue"},
				"description": {Type: genai.TypeString, Description: "What is wrong"},
				"suggestion":  {Type: genai.TypeString, Description: "How to fix it"},
				"location": {
					Type:     genai.TypeObject,
					Nullable: true,
					Properties: map[string]*genai.Schema{
						"x":      number("Left edge, percent of image width"),
						"y":      number("Top edge, percent of image height"),
						"width":  number("Percent of image width"),
						"height": number("Percent of image height"),
					},
					Required: []string{"x", "y", "width", "height"},
				},
			},
			Required: []string{"category", "severity", "title", "description", "suggestion"},
		},
	}
}

// issueListJSONSchema mirrors issueListSchema for validating what comes back
func issueListJSONSchema() string {
	quoted := func(vals []string) string {
		q := make([]string, len(vals))
		for i, v := range vals {
			q[i] = fmt.Sprintf("%q", v)
		}
		return strings.Join(q, ",")
	}
	return fmt.Sprintf(`{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["category", "severity", "title", "description", "suggestion"],
    "properties": {
      "category": {"type": "string", "enum": [%s]},
      "severity": {"type": "string", "enum": [%s]},
      "title": {"type": "string"},
      "description": {"type": "string"},
      "suggestion": {"type": "string"},
      "location": {
        "type": ["object", "null"],
        "required": ["x", "y", "width", "height"],
        "properties": {
          "x": {"type": "number"},
          "y": {"type": "number"},
          "width": {"type": "number"},
          "height": {"type": "number"}
        }
      }
    }
  }
}`, quoted(enumStrings(models.Categories)), quoted(enumStrings(models.Severities)))
}

var compiledIssueSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(issueListJSONSchema()))
})

// validateIssueJSON reports every schema violation in one error
func validateIssueJSON(doc string) error {
	schema, err := compiledIssueSchema()
	if err != nil {
		return fmt.Errorf("bad issue schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if !res.Valid() {
		errs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("schema violations: %s", strings.Join(errs, "; "))
	}
	return nil
}
