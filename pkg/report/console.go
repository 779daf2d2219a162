// Package report renders scan and fuzz results: console matrix, JSON
// export/load, HTML page.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/NAMEAMITSONI/authopsy/pkg/authz"
	"github.com/NAMEAMITSONI/authopsy/pkg/types"
)

var (
	headerColor   = color.New(color.FgCyan, color.Bold)
	okColor       = color.New(color.FgGreen)
	deniedColor   = color.New(color.FgYellow)
	errColor      = color.New(color.FgRed)
	criticalColor = color.New(color.FgRed, color.Bold)
	highColor     = color.New(color.FgRed)
	mediumColor   = color.New(color.FgYellow)
	lowColor      = color.New(color.FgBlue)
	infoColor     = color.New(color.FgWhite)
)

func statusCell(info authz.ResponseInfo) string {
	if info.Error != "" {
		return errColor.Sprintf("%-8s", "ERR")
	}
	cell := fmt.Sprintf("%-8d", info.Status)
	switch {
	case info.Status >= 200 && info.Status < 300:
		return okColor.Sprint(cell)
	case info.Status == 401 || info.Status == 403:
		return deniedColor.Sprint(cell)
	default:
		return infoColor.Sprint(cell)
	}
}

func severityLabel(s types.Severity) string {
	label := strings.ToUpper(string(s))
	switch s {
	case types.SeverityCritical:
		return criticalColor.Sprint(label)
	case types.SeverityHigh:
		return highColor.Sprint(label)
	case types.SeverityMedium:
		return mediumColor.Sprint(label)
	case types.SeverityLow:
		return lowColor.Sprint(label)
	case types.SeverityOK:
		return okColor.Sprint(label)
	default:
		return infoColor.Sprint(label)
	}
}

// PrintReport renders the access matrix and all findings to w.
func PrintReport(w io.Writer, r *authz.Report) {
	fmt.Fprintf(w, "\nTarget:   %s\n", r.Target)
	fmt.Fprintf(w, "Scan:     %s\n", r.ScanID)
	fmt.Fprintf(w, "Started:  %s\n\n", r.ScanTime.Format("2006-01-02 15:04:05 MST"))

	headerColor.Fprintf(w, "%-40s %-8s %-8s %-8s\n", "ENDPOINT", "ADMIN", "USER", "ANON")
	fmt.Fprintln(w, strings.Repeat("-", 66))
	for _, res := range r.Results {
		fmt.Fprintf(w, "%-40s %s %s %s\n",
			truncate(fmt.Sprintf("%-6s %s", res.Method, res.Path), 40),
			statusCell(res.Responses[authz.RoleAdmin]),
			statusCell(res.Responses[authz.RoleUser]),
			statusCell(res.Responses[authz.RoleAnon]))
	}

	findings := r.Findings()
	printFindings(w, findings)
	printSummary(w, r.Summary)
}

// PrintFuzzReport renders fuzz baselines and bypass findings to w.
func PrintFuzzReport(w io.Writer, r *authz.FuzzReport) {
	fmt.Fprintf(w, "\nTarget:   %s\n", r.Target)
	fmt.Fprintf(w, "Scan:     %s\n\n", r.ScanID)

	headerColor.Fprintf(w, "%-40s %-10s %-10s %s\n", "ENDPOINT", "BASELINE", "SIZE", "FINDINGS")
	fmt.Fprintln(w, strings.Repeat("-", 72))

	var findings []types.Finding
	for _, res := range r.Results {
		status := fmt.Sprintf("%d", res.BaselineStatus)
		if res.Skipped {
			status = "skipped"
		}
		fmt.Fprintf(w, "%-40s %-10s %-10d %d\n",
			truncate(fmt.Sprintf("%-6s %s", res.Method, res.Path), 40),
			status, res.BaselineSize, len(res.Findings))
		findings = append(findings, res.Findings...)
	}

	types.SortFindings(findings)
	printFindings(w, findings)
	printSummary(w, r.Summary)
}

func printFindings(w io.Writer, findings []types.Finding) {
	var reportable []types.Finding
	for _, f := range findings {
		if f.Rule != types.RuleOK {
			reportable = append(reportable, f)
		}
	}
	if len(reportable) == 0 {
		fmt.Fprintln(w)
		okColor.Fprintln(w, "No findings.")
		return
	}

	fmt.Fprintln(w)
	headerColor.Fprintf(w, "FINDINGS (%d)\n", len(reportable))
	fmt.Fprintln(w, strings.Repeat("-", 66))
	for _, f := range reportable {
		fmt.Fprintf(w, "[%s] %s  %s\n", severityLabel(f.Severity), f.Rule, f.Endpoint)
		fmt.Fprintf(w, "    %s\n", f.Description)
		if f.Evidence != "" {
			fmt.Fprintf(w, "    evidence: %s\n", f.Evidence)
		}
		if f.Remediation != "" {
			fmt.Fprintf(w, "    fix: %s\n", f.Remediation)
		}
	}
}

func printSummary(w io.Writer, sum types.Summary) {
	fmt.Fprintln(w)
	headerColor.Fprintln(w, "SUMMARY")
	fmt.Fprintf(w, "  endpoints: %d  requests: %d  duration: %dms\n",
		sum.TotalEndpoints, sum.TotalRequests, sum.DurationMS)
	for _, sev := range []types.Severity{
		types.SeverityCritical, types.SeverityHigh, types.SeverityMedium,
		types.SeverityLow, types.SeverityInfo,
	} {
		if n := sum.BySeverity[sev]; n > 0 {
			fmt.Fprintf(w, "  %s: %d\n", severityLabel(sev), n)
		}
	}
	if sum.OKCount > 0 {
		fmt.Fprintf(w, "  %s: %d\n", okColor.Sprint("OK"), sum.OKCount)
	}
	if sum.ErrorCount > 0 {
		fmt.Fprintf(w, "  %s: %d\n", errColor.Sprint("errors"), sum.ErrorCount)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return fmt.Sprintf("%-*s", max, s)
	}
	return s[:max-3] + "..."
}
