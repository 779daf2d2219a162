package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityRankOrdering(t *testing.T) {
	ordered := []Severity{
		SeverityCritical,
		SeverityHigh,
		SeverityMedium,
		SeverityLow,
		SeverityInfo,
		SeverityOK,
	}

	for i := 0; i < len(ordered)-1; i++ {
		assert.Greater(t, ordered[i].Rank(), ordered[i+1].Rank(),
			"%s must rank above %s", ordered[i], ordered[i+1])
	}
}

func TestSortFindingsSeverityFirst(t *testing.T) {
	findings := []Finding{
		{Rule: RuleOK, Severity: SeverityOK, Endpoint: "GET /a"},
		{Rule: RuleSensitiveField, Severity: SeverityMedium, Endpoint: "GET /b"},
		{Rule: RuleVerticalEscalation, Severity: SeverityCritical, Endpoint: "GET /z"},
		{Rule: RuleMissingAuth, Severity: SeverityHigh, Endpoint: "GET /a"},
		{Rule: RuleSizeAnomaly, Severity: SeverityLow, Endpoint: "GET /a"},
	}

	SortFindings(findings)

	got := make([]Severity, 0, len(findings))
	for _, f := range findings {
		got = append(got, f.Severity)
	}
	assert.Equal(t, []Severity{
		SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityOK,
	}, got)
}

func TestSortFindingsStableWithinSeverity(t *testing.T) {
	findings := []Finding{
		{Rule: RuleQueryBypass, Severity: SeverityCritical, Endpoint: "GET /b"},
		{Rule: RuleHeaderBypass, Severity: SeverityCritical, Endpoint: "GET /a"},
	}

	SortFindings(findings)

	assert.Equal(t, "GET /a", findings[0].Endpoint)
	assert.Equal(t, "GET /b", findings[1].Endpoint)
}

func TestIsDiagnostic(t *testing.T) {
	assert.True(t, Finding{Rule: RuleError}.IsDiagnostic())
	assert.True(t, Finding{Rule: RuleInconclusive}.IsDiagnostic())
	assert.False(t, Finding{Rule: RuleOK}.IsDiagnostic())
	assert.False(t, Finding{Rule: RuleVerticalEscalation}.IsDiagnostic())
}
