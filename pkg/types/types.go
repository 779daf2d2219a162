package types

import (
	"sort"
	"time"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
	SeverityOK       Severity = "ok"
)

// Rank maps a severity onto the total order used for sorting and rollups:
// critical > high > medium > low > info > ok.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Rule identifiers emitted by the classifier and the fuzz evaluator.
const (
	RuleVerticalEscalation = "vertical-escalation"
	RuleMissingAuth        = "missing-auth"
	RuleRoleConfusion      = "role-confusion"
	RuleSensitiveField     = "sensitive-field"
	RuleSizeAnomaly        = "size-anomaly"
	RulePaginationBypass   = "pagination-bypass"
	RuleTimingAnomaly      = "timing-anomaly"
	RuleOK                 = "ok"
	RuleUnclassified       = "unclassified"
	RuleError              = "error"
	RuleInconclusive       = "inconclusive"
	RuleHeaderBypass       = "header-bypass"
	RuleQueryBypass        = "query-bypass"
	RuleSizeBypass         = "size-bypass"
)

// Finding is one reported authorization defect. Findings are append-only:
// once created they are never mutated.
type Finding struct {
	ID          string    `json:"id"`
	ScanID      string    `json:"scan_id,omitempty"`
	Rule        string    `json:"rule"`
	Severity    Severity  `json:"severity"`
	Endpoint    string    `json:"endpoint"`
	Description string    `json:"description"`
	Evidence    string    `json:"evidence,omitempty"`
	Remediation string    `json:"remediation,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsDiagnostic reports whether the finding is an error/inconclusive marker
// rather than a classified defect; diagnostics are excluded from severity
// rollups.
func (f Finding) IsDiagnostic() bool {
	return f.Rule == RuleError || f.Rule == RuleInconclusive
}

// SortFindings orders findings by descending severity, then endpoint, then
// rule, so report output is deterministic.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity.Rank() != findings[j].Severity.Rank() {
			return findings[i].Severity.Rank() > findings[j].Severity.Rank()
		}
		if findings[i].Endpoint != findings[j].Endpoint {
			return findings[i].Endpoint < findings[j].Endpoint
		}
		return findings[i].Rule < findings[j].Rule
	})
}

// Summary counts every non-diagnostic finding by severity for report
// headers; diagnostics and clean endpoints get their own counters.
type Summary struct {
	TotalEndpoints int              `json:"total_endpoints"`
	TotalRequests  int              `json:"total_requests"`
	DurationMS     int64            `json:"duration_ms"`
	BySeverity     map[Severity]int `json:"by_severity"`
	ErrorCount     int              `json:"error_count"`
	OKCount        int              `json:"ok_count"`
}
