package report

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"sitewatch/internal/models"
)

var bodyTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #222;">
<h2>Monitoring Report</h2>
<p>Generated at {{.GeneratedAt}}</p>

{{if .Summary.AllClear}}
<p><strong>All monitored websites are healthy.</strong></p>
{{else}}

{{if .Summary.Down}}
<h3>Down ({{len .Summary.Down}})</h3>
<ul>
{{range .Summary.Down}}
  <li>{{.URL}}{{if .StatusCode}} &mdash; HTTP {{.StatusCode}}{{end}}{{if .Error}} &mdash; {{.Error}}{{end}}</li>
{{end}}
</ul>
{{end}}

{{if .Summary.Expiring}}
<h3>Domains expiring ({{len .Summary.Expiring}})</h3>
<ul>
{{range .Summary.Expiring}}
  <li>{{.URL}} &mdash; expires {{.ExpiresAt}} ({{.Days}} days)</li>
{{end}}
</ul>
{{end}}

{{if .Summary.ContentChanged}}
<h3>Content changed ({{len .Summary.ContentChanged}})</h3>
<ul>
{{range .Summary.ContentChanged}}
  <li>{{.URL}}
    {{if .Pages}}<ul>{{range .Pages}}<li>{{.Slug}}: {{printf "%.2f" .ChangePercent}}%</li>{{end}}</ul>{{end}}
  </li>
{{end}}
</ul>
{{end}}

{{if .Summary.BrokenAssets}}
<h3>Broken assets ({{len .Summary.BrokenAssets}})</h3>
<ul>
{{range .Summary.BrokenAssets}}
  <li>{{.URL}}
    <ul>{{range .Assets}}<li>{{.Type}}: {{.URL}}{{if .Status}} (HTTP {{.Status}}){{end}}</li>{{end}}</ul>
  </li>
{{end}}
</ul>
{{end}}

{{end}}
</body>
</html>
`))

type bodyData struct {
	GeneratedAt string
	Summary     models.ReportSummary
}

func renderBody(summary models.ReportSummary, at time.Time) (string, error) {
	var buf strings.Builder
	data := bodyData{GeneratedAt: at.UTC().Format("2006-01-02 15:04 MST"), Summary: summary}
	if err := bodyTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render report body: %w", err)
	}
	return buf.String(), nil
}

// fallbackBody is a plain rendering used when template execution fails.
func fallbackBody(summary models.ReportSummary) string {
	return fmt.Sprintf(
		"<html><body><p>Monitoring report: %d down, %d expiring, %d changed, %d with broken assets.</p></body></html>",
		len(summary.Down), len(summary.Expiring), len(summary.ContentChanged), len(summary.BrokenAssets),
	)
}
