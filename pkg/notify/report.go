package notify

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"

	"github.com/Sriram-PR/site-indexer/pkg/models"
	"github.com/Sriram-PR/site-indexer/pkg/utils"
)

// Report file names
const (
	StatusFile       = "google-submission-status.json"
	ReportFile       = "indexing-report.json"
	DashboardFile    = "indexing-dashboard.html"
	InstructionsFile = "search-console-setup-instructions.txt"
	VerificationFile = "google-verification-template.html"
)

// SubmissionStatus is the compact status record kept for the next run and for humans
type SubmissionStatus struct {
	SubmissionDate time.Time `json:"submissionDate"`
	SiteURL        string    `json:"siteUrl"`
	SitemapURL     string    `json:"sitemapUrl"`
	PriorityPages  []string  `json:"priorityPages"`
	LastCheck      time.Time `json:"lastCheck"`
	IndexingStatus string    `json:"indexingStatus"`
}

// WriteReports writes every report for r into dir. Each file is written on its own;
// failures are joined and wrapped with utils.ErrFilesystem.
func WriteReports(dir string, r *SubmissionReport, verificationToken string, log *logrus.Entry) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create report dir %s: %w", utils.ErrFilesystem, dir, err)
	}

	files := map[string]func() ([]byte, error){
		StatusFile: func() ([]byte, error) {
			return marshalJSON(SubmissionStatus{
				SubmissionDate: r.Timestamp,
				SiteURL:        r.SiteURL,
				SitemapURL:     r.SitemapURL,
				PriorityPages:  r.PriorityPages,
				LastCheck:      r.Timestamp,
				IndexingStatus: r.IndexingStatus,
			})
		},
		ReportFile:    func() ([]byte, error) { return marshalJSON(r) },
		DashboardFile: func() ([]byte, error) { return RenderDashboard(r) },
	}
	if r.ManualRequired {
		files[InstructionsFile] = func() ([]byte, error) { return []byte(Instructions(r)), nil }
	}
	if verificationToken != "" {
		files[VerificationFile] = func() ([]byte, error) { return renderVerification(verificationToken) }
	}

	var errs []error
	for _, name := range []string{StatusFile, ReportFile, DashboardFile, InstructionsFile, VerificationFile} {
		render, ok := files[name]
		if !ok {
			continue
		}
		data, err := render()
		if err == nil {
			err = os.WriteFile(filepath.Join(dir, name), data, 0644)
		}
		if err != nil {
			log.WithError(err).WithField("file", name).Error("Failed to write report")
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		log.WithFields(logrus.Fields{"file": name, "sha256": utils.SHA256Hex(data)}).Debug("Wrote report")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", utils.ErrFilesystem, errors.Join(errs...))
	}
	return nil
}

func marshalJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: JSON report: %w", utils.ErrParsing, err)
	}
	return append(data, '\n'), nil
}

// Instructions is the markdown checklist for finishing a submission by hand
func Instructions(r *SubmissionReport) string {
	var b strings.Builder
	b.WriteString("# Search Console manual submission\n\n")
	fmt.Fprintf(&b, "Automatic notification did not complete for %s (run %s).\n\n", r.SiteURL, r.RunID)

	b.WriteString("## Channels needing attention\n\n")
	for _, c := range r.Channels {
		for _, t := range c.Targets {
			if t.Exhausted {
				fmt.Fprintf(&b, "- **%s**: %s (%s after %d attempt(s))\n", c.Channel, t.Target, t.Status, t.Attempts)
			}
		}
	}

	b.WriteString("\n## Steps\n\n")
	b.WriteString("1. Open https://search.google.com/search-console and select the property for " + r.SiteURL + "/.\n")
	b.WriteString("2. If the property is not verified, upload the verification file or add the meta tag from " + VerificationFile + ".\n")
	b.WriteString("3. Go to **Sitemaps**, enter `" + r.SitemapURL + "` and press **Submit**.\n")
	b.WriteString("4. Use **URL Inspection** and **Request indexing** for each priority page below.\n")
	b.WriteString("5. In Bing Webmaster Tools, submit the same sitemap under **Sitemaps**.\n")

	if len(r.PriorityPages) > 0 {
		b.WriteString("\n## Priority pages\n\n")
		for _, p := range r.PriorityPages {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	return b.String()
}

var dashboardTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"statusClass": func(s models.NotificationStatus) string { return "status-" + s.String() },
	"date":        func(t time.Time) string { return t.Format(time.RFC3339) },
}).Parse(dashboardHTML))

type dashboardData struct {
	Report       *SubmissionReport
	Instructions template.HTML
}

// RenderDashboard renders the HTML dashboard with one card per channel
func RenderDashboard(r *SubmissionReport) ([]byte, error) {
	data := dashboardData{Report: r}
	if r.ManualRequired {
		var md bytes.Buffer
		if err := goldmark.Convert([]byte(Instructions(r)), &md); err != nil {
			return nil, fmt.Errorf("%w: render instructions: %w", utils.ErrParsing, err)
		}
		// goldmark omits raw HTML unless built WithUnsafe
		data.Instructions = template.HTML(md.String())
	}
	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("%w: render dashboard: %w", utils.ErrParsing, err)
	}
	return buf.Bytes(), nil
}

var verificationTmpl = template.Must(template.New("verification").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="google-site-verification" content="{{.}}">
  <title>Google site verification</title>
</head>
<body>google-site-verification: {{.}}</body>
</html>
`))

func renderVerification(token string) ([]byte, error) {
	var buf bytes.Buffer
	if err := verificationTmpl.Execute(&buf, token); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Indexing dashboard: {{.Report.SiteURL}}</title>
  <style>
    body { font-family: system-ui, sans-serif; margin: 2rem; color: #222; }
    .cards { display: flex; flex-wrap: wrap; gap: 1rem; }
    .card { border: 1px solid #ddd; border-radius: 8px; padding: 1rem; min-width: 16rem; }
    .status-success { border-left: 6px solid #2e7d32; }
    .status-warning { border-left: 6px solid #f9a825; }
    .status-error { border-left: 6px solid #c62828; }
    table { border-collapse: collapse; font-size: 0.9rem; }
    td, th { padding: 0.2rem 0.6rem; text-align: left; border-bottom: 1px solid #eee; }
  </style>
</head>
<body>
  <h1>Indexing dashboard</h1>
  <p>Site: <a href="{{.Report.SiteURL}}">{{.Report.SiteURL}}</a><br>
     Sitemap: <a href="{{.Report.SitemapURL}}">{{.Report.SitemapURL}}</a><br>
     Run: {{.Report.RunID}} at {{date .Report.Timestamp}}<br>
     Indexing status: <strong>{{.Report.IndexingStatus}}</strong></p>

  <div class="cards">
  {{- range .Report.Channels}}
    <div class="card {{statusClass .Status}}">
      <h2>{{.Channel}}</h2>
      <p>Status: <strong>{{.Status}}</strong></p>
      <table>
        <tr><th>Target</th><th>Strategy</th><th>Status</th><th>Code</th></tr>
        {{- range .Results}}
        <tr><td>{{.Target}}</td><td>{{.Strategy}}</td><td>{{.Status}}</td><td>{{if .StatusCode}}{{.StatusCode}}{{end}}</td></tr>
        {{- end}}
      </table>
    </div>
  {{- end}}
  </div>

  {{- with .Report.Verification}}
  <h2>Sitemap verification</h2>
  <div class="card {{statusClass .Status}}">
    <p>Method: {{.Method}}<br>
       Status: <strong>{{.Status}}</strong>{{if .StatusCode}} (HTTP {{.StatusCode}}){{end}}<br>
       {{.Message}}</p>
    {{- if eq .Method "search_console"}}
    <p>Last submitted: {{or .LastSubmitted "just now"}}<br>
       Last downloaded: {{.LastDownloaded}}<br>
       Errors: {{.Errors}}, warnings: {{.Warnings}}</p>
    {{- else if .Root}}
    <p>Root: &lt;{{.Root}}&gt;, {{.URLCount}} entries</p>
    {{- end}}
    {{- if .Error}}<p>Error: {{.Error}}</p>{{end}}
  </div>
  {{- end}}

  {{- if .Report.PriorityPages}}
  <h2>Priority pages</h2>
  <ul>
  {{- range .Report.PriorityPages}}
    <li><a href="{{.}}">{{.}}</a></li>
  {{- end}}
  </ul>
  {{- end}}

  {{- if .Instructions}}
  <section class="instructions">
  {{.Instructions}}
  </section>
  {{- end}}
</body>
</html>
`
