package authz

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NAMEAMITSONI/authopsy/pkg/types"
)

func roleSnap(role Role, status int, body string) Snapshot {
	s := snapshotFor(status, body)
	s.Role = role
	return s
}

func rulesOf(findings []types.Finding) []string {
	var rules []string
	for _, f := range findings {
		rules = append(rules, f.Rule)
	}
	return rules
}

func findRule(t *testing.T, findings []types.Finding, rule string) types.Finding {
	t.Helper()
	for _, f := range findings {
		if f.Rule == rule {
			return f
		}
	}
	t.Fatalf("finding %q not present in %v", rule, rulesOf(findings))
	return types.Finding{}
}

func TestClassifyVerticalEscalation(t *testing.T) {
	c := &Classifier{}
	ep := NewEndpoint("GET", "/api/admin/users")

	findings := c.Classify(ep,
		roleSnap(RoleAdmin, 200, `{"users":[]}`),
		roleSnap(RoleUser, 200, `{"users":[]}`),
		roleSnap(RoleAnon, 401, `{}`))

	f := findRule(t, findings, types.RuleVerticalEscalation)
	assert.Equal(t, types.SeverityCritical, f.Severity)
	assert.Equal(t, "GET /api/admin/users", f.Endpoint)
	assert.NotContains(t, rulesOf(findings), types.RuleOK)
}

func TestClassifyExpectedDenials(t *testing.T) {
	c := &Classifier{}
	ep := NewEndpoint("GET", "/api/admin/users")

	findings := c.Classify(ep,
		roleSnap(RoleAdmin, 200, `{"users":[]}`),
		roleSnap(RoleUser, 403, `{}`),
		roleSnap(RoleAnon, 401, `{}`))

	require.Len(t, findings, 1)
	assert.Equal(t, types.RuleOK, findings[0].Rule)
	assert.Equal(t, types.SeverityOK, findings[0].Severity)
}

func TestClassifyMissingAuth(t *testing.T) {
	c := &Classifier{}
	ep := NewEndpoint("GET", "/api/users")

	findings := c.Classify(ep,
		roleSnap(RoleAdmin, 200, `{}`),
		roleSnap(RoleUser, 403, `{}`),
		roleSnap(RoleAnon, 200, `{}`))

	f := findRule(t, findings, types.RuleMissingAuth)
	assert.Equal(t, types.SeverityHigh, f.Severity)
}

func TestClassifyMissingAuthEscalatesWithVertical(t *testing.T) {
	c := &Classifier{}
	ep := NewEndpoint("GET", "/api/users")

	findings := c.Classify(ep,
		roleSnap(RoleAdmin, 200, `{}`),
		roleSnap(RoleUser, 200, `{}`),
		roleSnap(RoleAnon, 200, `{}`))

	assert.Equal(t, types.SeverityCritical, findRule(t, findings, types.RuleMissingAuth).Severity)
	findRule(t, findings, types.RuleVerticalEscalation)
}

func TestClassifyPublicPathSuppressesAccessRules(t *testing.T) {
	c := &Classifier{PublicPaths: []string{"/health"}}
	ep := NewEndpoint("GET", "/health")

	findings := c.Classify(ep,
		roleSnap(RoleAdmin, 200, `{"status":"ok"}`),
		roleSnap(RoleUser, 200, `{"status":"ok"}`),
		roleSnap(RoleAnon, 200, `{"status":"ok"}`))

	assert.NotContains(t, rulesOf(findings), types.RuleMissingAuth)
	assert.NotContains(t, rulesOf(findings), types.RuleVerticalEscalation)
}

func TestClassifySkipPath(t *testing.T) {
	c := &Classifier{SkipPaths: []string{"/internal"}}
	findings := c.Classify(NewEndpoint("GET", "/internal/metrics"),
		roleSnap(RoleAdmin, 200, `{}`),
		roleSnap(RoleUser, 200, `{}`),
		roleSnap(RoleAnon, 200, `{}`))
	assert.Empty(t, findings)
}

func TestClassifyRoleConfusion(t *testing.T) {
	c := &Classifier{}
	findings := c.Classify(NewEndpoint("GET", "/api/orders"),
		roleSnap(RoleAdmin, 403, `{}`),
		roleSnap(RoleUser, 200, `{"orders":[]}`),
		roleSnap(RoleAnon, 401, `{}`))

	f := findRule(t, findings, types.RuleRoleConfusion)
	assert.Equal(t, types.SeverityCritical, f.Severity)
}

func TestClassifySensitiveField(t *testing.T) {
	c := &Classifier{}
	findings := c.Classify(NewEndpoint("GET", "/api/me"),
		roleSnap(RoleAdmin, 200, `{"id":1,"password_hash":"x"}`),
		roleSnap(RoleUser, 200, `{"id":1,"password_hash":"x"}`),
		roleSnap(RoleAnon, 401, `{}`))

	f := findRule(t, findings, types.RuleSensitiveField)
	assert.Equal(t, types.SeverityMedium, f.Severity)
	assert.Contains(t, f.Description, "password_hash")
	assert.Contains(t, f.Evidence, "user:")
}

func TestClassifySensitiveFieldDedupedByLeaf(t *testing.T) {
	c := &Classifier{}
	findings := c.Classify(NewEndpoint("GET", "/api/me"),
		roleSnap(RoleAdmin, 403, `{}`),
		roleSnap(RoleUser, 200, `{"token":"a"}`),
		roleSnap(RoleAnon, 200, `{"token":"b"}`))

	var sensitive int
	for _, f := range findings {
		if f.Rule == types.RuleSensitiveField {
			sensitive++
		}
	}
	assert.Equal(t, 1, sensitive, "one finding per distinct leaf name")
}

func TestClassifySizeAnomaly(t *testing.T) {
	c := &Classifier{}
	findings := c.Classify(NewEndpoint("GET", "/api/items"),
		roleSnap(RoleAdmin, 200, `{"items":[],"audit":{"by":"root"},"note":"only admins see this"}`),
		roleSnap(RoleUser, 200, `{"items":[]}`),
		roleSnap(RoleAnon, 401, `{}`))

	f := findRule(t, findings, types.RuleSizeAnomaly)
	assert.Equal(t, types.SeverityLow, f.Severity)
}

func TestClassifySizeAnomalyUserOnlyKeys(t *testing.T) {
	c := &Classifier{PublicPaths: []string{"/api/catalog"}}

	// Equal sizes, equal statuses; the only signal is a key the user body
	// carries and the admin body does not.
	adminBody := `{"a":"` + strings.Repeat("A", 100) + `"}`
	userBody := `{"a":"` + strings.Repeat("A", 94) + `","z":1}`
	require.Equal(t, len(adminBody), len(userBody))

	findings := c.Classify(NewEndpoint("GET", "/api/catalog"),
		roleSnap(RoleAdmin, 200, adminBody),
		roleSnap(RoleUser, 200, userBody),
		roleSnap(RoleAnon, 401, `{}`))

	f := findRule(t, findings, types.RuleSizeAnomaly)
	assert.Equal(t, types.SeverityLow, f.Severity)
	assert.Contains(t, f.Evidence, "user_only_paths=1")
}

func TestClassifySizeAnomalyRespectsIgnore(t *testing.T) {
	c := &Classifier{SizeThreshold: 0.99, IgnorePaths: []string{"audit", "note"}}
	findings := c.Classify(NewEndpoint("GET", "/api/items"),
		roleSnap(RoleAdmin, 200, `{"items":[],"audit":{"by":"root"},"note":"x"}`),
		roleSnap(RoleUser, 200, `{"items":[]}`),
		roleSnap(RoleAnon, 401, `{}`))

	assert.NotContains(t, rulesOf(findings), types.RuleSizeAnomaly)
}

func TestClassifyPaginationBypass(t *testing.T) {
	c := &Classifier{}
	findings := c.Classify(NewEndpoint("GET", "/api/users"),
		roleSnap(RoleAdmin, 200, `{"users":[{"id":1}]}`),
		roleSnap(RoleUser, 200, `{"users":[{"id":1},{"id":2},{"id":3}]}`),
		roleSnap(RoleAnon, 401, `{}`))

	f := findRule(t, findings, types.RulePaginationBypass)
	assert.Equal(t, types.SeverityHigh, f.Severity)
	assert.Contains(t, f.Evidence, "users")
}

func TestClassifyTimingAnomaly(t *testing.T) {
	c := &Classifier{}
	admin := roleSnap(RoleAdmin, 200, `{}`)
	admin.Elapsed = 900 * time.Millisecond
	user := roleSnap(RoleUser, 200, `{}`)
	user.Elapsed = 150 * time.Millisecond

	findings := c.Classify(NewEndpoint("GET", "/api/slow"), admin, user,
		roleSnap(RoleAnon, 401, `{}`))

	findRule(t, findings, types.RuleTimingAnomaly)
}

func TestClassifyInconclusiveOnPartialErrors(t *testing.T) {
	c := &Classifier{}
	timedOut := Snapshot{Role: RoleAdmin, Err: "timeout"}

	findings := c.Classify(NewEndpoint("GET", "/api/users"), timedOut,
		roleSnap(RoleUser, 200, `{}`),
		roleSnap(RoleAnon, 401, `{}`))

	f := findRule(t, findings, types.RuleInconclusive)
	assert.Contains(t, f.Evidence, "admin")
	assert.Contains(t, f.Evidence, "timeout")
	// Rules that reference the errored role must not fire.
	assert.NotContains(t, rulesOf(findings), types.RuleVerticalEscalation)
	assert.NotContains(t, rulesOf(findings), types.RuleRoleConfusion)
	assert.NotContains(t, rulesOf(findings), types.RuleOK)
}

func TestClassifyErrorWhenAllRolesFail(t *testing.T) {
	c := &Classifier{}
	fail := func(role Role) Snapshot { return Snapshot{Role: role, Err: "timeout"} }

	findings := c.Classify(NewEndpoint("GET", "/api/users"),
		fail(RoleAdmin), fail(RoleUser), fail(RoleAnon))

	require.Len(t, findings, 1)
	assert.Equal(t, types.RuleError, findings[0].Rule)
}

func TestClassifyUnclassified(t *testing.T) {
	c := &Classifier{}
	findings := c.Classify(NewEndpoint("GET", "/api/users"),
		roleSnap(RoleAdmin, 500, `{}`),
		roleSnap(RoleUser, 500, `{}`),
		roleSnap(RoleAnon, 500, `{}`))

	require.Len(t, findings, 1)
	assert.Equal(t, types.RuleUnclassified, findings[0].Rule)
	assert.Equal(t, types.SeverityInfo, findings[0].Severity)
}

func TestClassifyDeterministic(t *testing.T) {
	c := &Classifier{}
	ep := NewEndpoint("GET", "/api/me")
	admin := roleSnap(RoleAdmin, 200, `{"id":1,"ssn":"1","token":"t"}`)
	user := roleSnap(RoleUser, 200, `{"id":1,"ssn":"1","token":"t"}`)
	anon := roleSnap(RoleAnon, 401, `{}`)

	first := c.Classify(ep, admin, user, anon)
	for i := 0; i < 5; i++ {
		assert.Equal(t, rulesOf(first), rulesOf(c.Classify(ep, admin, user, anon)))
	}
}
