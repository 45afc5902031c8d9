package validate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sriram-PR/site-indexer/pkg/models"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// ReportFile is written next to the notifier reports
const ReportFile = "seo-validation-report.json"

// Verdicts
const (
	VerdictReady         = "READY"
	VerdictReadyWarnings = "READY WITH WARNINGS"
	VerdictNotReady      = "NOT READY"
)

// CheckResult is the outcome of one check
type CheckResult struct {
	Name    string             `json:"name"`
	Status  models.CheckStatus `json:"status"`
	Message string             `json:"message"`
}

// Report aggregates every check. Ready is true iff no check failed.
type Report struct {
	Timestamp   time.Time     `json:"timestamp"`
	SiteURL     string        `json:"site_url"`
	Directory   string        `json:"directory"`
	Passed      int           `json:"passed"`
	Warned      int           `json:"warned"`
	Failed      int           `json:"failed"`
	Errors      []string      `json:"errors,omitempty"`
	Results     []CheckResult `json:"results"`
	Ready       bool          `json:"ready"`
	SuccessRate float64       `json:"success_rate"`
	Verdict     string        `json:"verdict"`
}

func (r *Report) add(res CheckResult) {
	switch res.Status {
	case models.CheckPass:
		r.Passed++
	case models.CheckWarning:
		r.Warned++
	default:
		res.Status = models.CheckFail
		r.Failed++
	}
	r.Results = append(r.Results, res)
}

func (r *Report) finalize(threshold float64) {
	if total := len(r.Results); total > 0 {
		r.SuccessRate = float64(r.Passed) / float64(total)
	}
	r.Ready = r.Failed == 0
	switch {
	case !r.Ready:
		r.Verdict = VerdictNotReady
	case r.SuccessRate >= threshold:
		r.Verdict = VerdictReady
	default:
		r.Verdict = VerdictReadyWarnings
	}
}

// Result returns the named check, or nil
func (r *Report) Result(name string) *CheckResult {
	for i := range r.Results {
		if r.Results[i].Name == name {
			return &r.Results[i]
		}
	}
	return nil
}

// Summary renders a console table of the checks and the verdict
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Deployment validation for %s\n", r.SiteURL)
	for _, res := range r.Results {
		fmt.Fprintf(&b, "  [%-7s] %-26s %s\n", strings.ToUpper(res.Status.String()), res.Name, res.Message)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "  error: %s\n", e)
	}
	fmt.Fprintf(&b, "Passed %d, warnings %d, failed %d (%.0f%%): %s\n",
		r.Passed, r.Warned, r.Failed, r.SuccessRate*100, r.Verdict)
	return b.String()
}

// WriteReport stores r as JSON in dir and returns the path
func WriteReport(dir string, r *Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: create report dir %s: %w", utils.ErrFilesystem, dir, err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: validation report: %w", utils.ErrParsing, err)
	}
	path := filepath.Join(dir, ReportFile)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("%w: write %s: %w", utils.ErrFilesystem, path, err)
	}
	return path, nil
}
