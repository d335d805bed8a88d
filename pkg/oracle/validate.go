package oracle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/SaiNageswarS/NurixLearn/internal/xjson"
	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

const resultSchema = `{
	"type": "object",
	"required": ["correctness_score", "errors_found", "feedback"],
	"properties": {
		"feedback": {"type": "string"},
		"question_analysis": {"type": "object"},
		"working_note_analysis": {"type": "object"}
	}
}`

var schemaLoader = gojsonschema.NewStringLoader(resultSchema)

// ParseResult validates a raw oracle response. Structural violations are errors; a score that is
// not a number in 0..100 becomes 0 and a non-array errors_found becomes empty.
func ParseResult(raw []byte) (*ScoreResult, error) {
	res, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResult, err)
	}

	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidResult, strings.Join(msgs, "; "))
	}

	var doc map[string]any
	if err := xjson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResult, err)
	}

	out := &ScoreResult{
		Feedback: doc["feedback"].(string),
	}

	if score, ok := doc["correctness_score"].(float64); ok && score >= 0 && score <= 100 {
		out.Score = score
	}

	if items, ok := doc["errors_found"].([]any); ok {
		for _, item := range items {
			if e, ok := scoreError(item); ok {
				out.Errors = append(out.Errors, e)
			}
		}
	}

	if out.Errors == nil {
		out.Errors = []models.ScoreError{}
	}

	out.QuestionAnalysis, _ = doc["question_analysis"].(map[string]any)
	out.WorkingNoteAnalysis, _ = doc["working_note_analysis"].(map[string]any)

	return out, nil
}

func scoreError(item any) (models.ScoreError, bool) {
	switch v := item.(type) {
	case string:
		return models.ScoreError{Description: v}, v != ""
	case map[string]any:
		e := models.ScoreError{}
		e.Step, _ = v["step"].(string)
		e.ErrorType, _ = v["error_type"].(string)
		e.Description, _ = v["description"].(string)
		e.Severity, _ = v["severity"].(string)

		return e, e.Description != "" || e.ErrorType != ""
	default:
		return models.ScoreError{}, false
	}
}

// IsInvalidResult reports whether err came from response validation.
func IsInvalidResult(err error) bool {
	return errors.Is(err, ErrInvalidResult)
}
