package report

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"strings"

	"github.com/NAMEAMITSONI/authopsy/pkg/authz"
	"github.com/NAMEAMITSONI/authopsy/pkg/types"
)

// The page is self-contained: inline CSS, no external assets, safe to
// attach to a ticket.
const htmlPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Authorization Scan - {{.Report.Target}}</title>
<style>
  body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 2rem; color: #1a1a2e; }
  h1 { font-size: 1.4rem; }
  h2 { font-size: 1.1rem; margin-top: 2rem; }
  table { border-collapse: collapse; width: 100%; margin-top: 0.5rem; }
  th, td { text-align: left; padding: 0.4rem 0.8rem; border-bottom: 1px solid #ddd; font-size: 0.9rem; }
  th { background: #16213e; color: #fff; }
  code { background: #f4f4f4; padding: 0.1rem 0.3rem; border-radius: 3px; }
  .s2xx { color: #0a7d33; font-weight: 600; }
  .sdenied { color: #b8860b; font-weight: 600; }
  .serr { color: #c0392b; font-weight: 600; }
  .sev-critical { background: #c0392b; color: #fff; padding: 0.1rem 0.5rem; border-radius: 3px; }
  .sev-high { background: #e67e22; color: #fff; padding: 0.1rem 0.5rem; border-radius: 3px; }
  .sev-medium { background: #f1c40f; padding: 0.1rem 0.5rem; border-radius: 3px; }
  .sev-low { background: #3498db; color: #fff; padding: 0.1rem 0.5rem; border-radius: 3px; }
  .sev-info, .sev-ok { background: #ecf0f1; padding: 0.1rem 0.5rem; border-radius: 3px; }
  .meta { color: #666; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>Authorization Scan Report</h1>
<p class="meta">
  Target <code>{{.Report.Target}}</code> ·
  Scan <code>{{.Report.ScanID}}</code> ·
  {{.Report.ScanTime.Format "2006-01-02 15:04:05 MST"}} ·
  {{.Report.Summary.TotalEndpoints}} endpoints ·
  {{.Report.Summary.TotalRequests}} requests ·
  {{.Report.Summary.DurationMS}}ms
</p>

<h2>Access Matrix</h2>
<table>
  <tr><th>Endpoint</th><th>Admin</th><th>User</th><th>Anon</th></tr>
  {{range .Report.Results}}
  <tr>
    <td><code>{{.Method}} {{.Path}}</code></td>
    <td>{{statusCell (resp . "admin")}}</td>
    <td>{{statusCell (resp . "user")}}</td>
    <td>{{statusCell (resp . "anon")}}</td>
  </tr>
  {{end}}
</table>

<h2>Findings ({{len .Findings}})</h2>
{{if .Findings}}
<table>
  <tr><th>Severity</th><th>Rule</th><th>Endpoint</th><th>Description</th><th>Evidence</th></tr>
  {{range .Findings}}
  <tr>
    <td><span class="sev-{{.Severity}}">{{.Severity}}</span></td>
    <td>{{.Rule}}</td>
    <td><code>{{.Endpoint}}</code></td>
    <td>{{.Description}}{{if .Remediation}}<br><em>{{.Remediation}}</em>{{end}}</td>
    <td><code>{{.Evidence}}</code></td>
  </tr>
  {{end}}
</table>
{{else}}
<p>No findings.</p>
{{end}}
</body>
</html>`

type htmlData struct {
	Report   *authz.Report
	Findings []types.Finding
}

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"statusCell": htmlStatusCell,
	"resp": func(res authz.EndpointResult, role string) authz.ResponseInfo {
		return res.Responses[authz.Role(role)]
	},
}).Parse(htmlPage))

func htmlStatusCell(info authz.ResponseInfo) template.HTML {
	if info.Error != "" {
		return template.HTML(`<span class="serr">ERR</span>`)
	}
	class := ""
	switch {
	case info.Status >= 200 && info.Status < 300:
		class = "s2xx"
	case info.Status == 401 || info.Status == 403:
		class = "sdenied"
	}
	return template.HTML(fmt.Sprintf(`<span class="%s">%d</span>`, class, info.Status))
}

// WriteHTML renders the report as a standalone HTML page. OK findings are
// left out; the matrix already shows expected behavior.
func WriteHTML(w io.Writer, r *authz.Report) error {
	var findings []types.Finding
	for _, f := range r.Findings() {
		if f.Rule != types.RuleOK {
			findings = append(findings, f)
		}
	}
	return htmlTemplate.Execute(w, htmlData{Report: r, Findings: findings})
}

// SaveHTML writes the HTML report to a file.
func SaveHTML(path string, r *authz.Report) error {
	if !strings.HasSuffix(path, ".html") && !strings.HasSuffix(path, ".htm") {
		path += ".html"
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()
	if err := WriteHTML(f, r); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return nil
}
