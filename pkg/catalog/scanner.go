package catalog

import (
	"context"
	"strings"

	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/oracle"
)

// Scanner finds errors in a submission.
type Scanner interface {
	Scan(ctx context.Context, target ScanTarget) ([]models.Finding, error)
}

// OracleScanner scans by grading the submission with the scoring oracle.
type OracleScanner struct {
	client oracle.Client
}

func NewOracleScanner(client oracle.Client) *OracleScanner {
	return &OracleScanner{client: client}
}

func (s *OracleScanner) Scan(ctx context.Context, target ScanTarget) ([]models.Finding, error) {
	result, err := s.client.Evaluate(ctx, oracle.Request{
		QuestionURL: target.QuestionURL,
		SolutionURL: target.SolutionURL,
		Region:      target.Region,
	})
	if err != nil {
		return nil, err
	}

	findings := make([]models.Finding, 0, len(result.Errors))
	for _, e := range result.Errors {
		findings = append(findings, toFinding(e))
	}

	return FilterFindings(findings, target.ErrorPatterns), nil
}

// toFinding defaults a missing or unknown severity to medium.
func toFinding(e models.ScoreError) models.Finding {
	severity, err := models.ParseSeverity(e.Severity)
	if err != nil {
		severity = models.SeverityMedium
	}

	return models.Finding{
		Message:   e.Description,
		Severity:  severity,
		Step:      e.Step,
		ErrorType: e.ErrorType,
	}
}

// FilterFindings keeps the findings whose message or type contains one of patterns, ignoring
// case. No patterns keeps everything.
func FilterFindings(findings []models.Finding, patterns []string) []models.Finding {
	if len(patterns) == 0 {
		return findings
	}

	out := make([]models.Finding, 0, len(findings))

	for _, f := range findings {
		text := strings.ToLower(f.Message + " " + f.ErrorType)

		for _, p := range patterns {
			if strings.Contains(text, strings.ToLower(p)) {
				out = append(out, f)

				break
			}
		}
	}

	return out
}
