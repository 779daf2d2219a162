package authz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/NAMEAMITSONI/authopsy/pkg/types"
)

// Timing thresholds for the timing-anomaly rule. Both roles must be slow
// enough that the gap is unlikely to be jitter.
const (
	timingGap   = 500 * time.Millisecond
	timingFloor = 100 * time.Millisecond
)

// Classifier turns per-role snapshots for one endpoint into findings. It
// is pure: same snapshots in, same findings out.
type Classifier struct {
	// SizeThreshold is the relative body-size delta above which two
	// equal-status responses count as anomalous.
	SizeThreshold float64
	// SkipPaths are excluded from classification entirely.
	SkipPaths []string
	// PublicPaths are expected to answer everyone; access rules do not
	// fire on them.
	PublicPaths []string
	// IgnorePaths are dropped from structural diffs.
	IgnorePaths []string
}

// DefaultSizeThreshold is the relative size delta cutoff when none is
// configured.
const DefaultSizeThreshold = 0.05

func (c *Classifier) threshold() float64 {
	if c.SizeThreshold > 0 {
		return c.SizeThreshold
	}
	return DefaultSizeThreshold
}

func matchesAny(path string, patterns []string) bool {
	for _, pat := range patterns {
		if pat != "" && strings.Contains(path, pat) {
			return true
		}
	}
	return false
}

func is2xx(status int) bool { return status >= 200 && status < 300 }

func isDenied(status int) bool { return status == 401 || status == 403 }

// Classify evaluates every rule slot against the three role snapshots.
// Rules that reference an errored role do not fire; a finding is never
// built from partial data.
func (c *Classifier) Classify(ep Endpoint, admin, user, anon Snapshot) []types.Finding {
	if matchesAny(ep.Path, c.SkipPaths) {
		return nil
	}

	var findings []types.Finding
	add := func(rule string, sev types.Severity, desc, evidence, remediation string) {
		findings = append(findings, types.Finding{
			Rule:        rule,
			Severity:    sev,
			Endpoint:    ep.Key(),
			Description: desc,
			Evidence:    evidence,
			Remediation: remediation,
			CreatedAt:   time.Now().UTC(),
		})
	}

	var failed []string
	for _, s := range []Snapshot{admin, user, anon} {
		if !s.OK() {
			failed = append(failed, fmt.Sprintf("%s (%s)", s.Role, s.Err))
		}
	}
	if len(failed) == 3 {
		add(types.RuleError, types.SeverityInfo,
			"all roles failed to get a response",
			strings.Join(failed, "; "), "")
		return findings
	}
	if len(failed) > 0 {
		add(types.RuleInconclusive, types.SeverityInfo,
			"some roles failed; rules needing them were not evaluated",
			strings.Join(failed, "; "), "")
	}

	public := matchesAny(ep.Path, c.PublicPaths)

	adminFacts := ExtractFacts(admin)
	userFacts := ExtractFacts(user)
	anonFacts := ExtractFacts(anon)

	matched := false

	// vertical-escalation: a regular user reaches what only admin should.
	escalated := false
	if admin.OK() && user.OK() && !public && is2xx(admin.Status) && is2xx(user.Status) {
		escalated = true
		matched = true
		add(types.RuleVerticalEscalation, types.SeverityCritical,
			"endpoint accessible to both admin and regular user",
			fmt.Sprintf("admin=%d user=%d", admin.Status, user.Status),
			"enforce role checks server-side for this endpoint")
	}

	// missing-auth: anonymous requests succeed on a protected path.
	if anon.OK() && !public && is2xx(anon.Status) {
		matched = true
		sev := types.SeverityHigh
		if escalated {
			sev = types.SeverityCritical
		}
		add(types.RuleMissingAuth, sev,
			"endpoint accessible without any credentials",
			fmt.Sprintf("anon=%d", anon.Status),
			"require authentication for this endpoint")
	}

	// role-confusion: admin is denied where a lower role succeeds.
	if admin.OK() && user.OK() && isDenied(admin.Status) && is2xx(user.Status) {
		matched = true
		add(types.RuleRoleConfusion, types.SeverityCritical,
			"admin denied while regular user succeeds",
			fmt.Sprintf("admin=%d user=%d", admin.Status, user.Status),
			"review role-to-permission mapping; admin should not be below user")
	}

	// sensitive-field: one finding per distinct leaf name a non-admin sees.
	leafRoles := map[string][]string{}
	for _, rf := range []struct {
		snap  Snapshot
		facts Facts
	}{{user, userFacts}, {anon, anonFacts}} {
		if !rf.snap.OK() || !is2xx(rf.snap.Status) {
			continue
		}
		for path := range rf.facts.Sensitive {
			if ignored(path, c.IgnorePaths) {
				continue
			}
			leaf := path
			if i := strings.LastIndexAny(path, ".]"); i >= 0 {
				leaf = path[i+1:]
			}
			leafRoles[leaf] = append(leafRoles[leaf], string(rf.snap.Role)+":"+path)
		}
	}
	leaves := make([]string, 0, len(leafRoles))
	for leaf := range leafRoles {
		leaves = append(leaves, leaf)
	}
	sort.Strings(leaves)
	for _, leaf := range leaves {
		matched = true
		sort.Strings(leafRoles[leaf])
		add(types.RuleSensitiveField, types.SeverityMedium,
			fmt.Sprintf("sensitive field %q returned to a non-admin role", leaf),
			strings.Join(leafRoles[leaf], ", "),
			"strip privileged fields from responses based on the caller's role")
	}

	// size-anomaly: same status but materially different payloads.
	if admin.OK() && user.OK() && admin.Status == user.Status {
		diff := Compare(adminFacts, userFacts, c.IgnorePaths)
		delta := diff.SizeDelta
		if delta < 0 {
			delta = -delta
		}
		max := adminFacts.Size
		if userFacts.Size > max {
			max = userFacts.Size
		}
		rel := 0.0
		if max > 0 {
			rel = float64(delta) / float64(max)
		}
		if rel > c.threshold() || len(diff.ExtraPaths) > 0 || len(diff.MissingPaths) > 0 {
			matched = true
			add(types.RuleSizeAnomaly, types.SeverityLow,
				"equal statuses but response payloads differ between roles",
				fmt.Sprintf("admin=%dB user=%dB admin_only_paths=%d user_only_paths=%d",
					adminFacts.Size, userFacts.Size, len(diff.ExtraPaths), len(diff.MissingPaths)),
				"confirm role-based response filtering is intentional")
		}
	}

	// pagination-bypass: user sees more array items than admin.
	if admin.OK() && user.OK() {
		for path, lenUser := range userFacts.ArrayLengths {
			if ignored(path, c.IgnorePaths) {
				continue
			}
			if lenAdmin, ok := adminFacts.ArrayLengths[path]; ok && lenUser > lenAdmin {
				matched = true
				add(types.RulePaginationBypass, types.SeverityHigh,
					"user response contains more items than admin at the same path",
					fmt.Sprintf("path=%s admin=%d user=%d", displayArrayPath(path), lenAdmin, lenUser),
					"apply consistent result scoping regardless of pagination parameters")
				break
			}
		}
	}

	// timing-anomaly: a large latency gap can betray divergent code paths.
	if admin.OK() && user.OK() {
		gap := admin.Elapsed - user.Elapsed
		if gap < 0 {
			gap = -gap
		}
		if gap > timingGap && admin.Elapsed > timingFloor && user.Elapsed > timingFloor {
			matched = true
			add(types.RuleTimingAnomaly, types.SeverityLow,
				"large response-time gap between roles",
				fmt.Sprintf("admin=%s user=%s", admin.Elapsed.Round(time.Millisecond), user.Elapsed.Round(time.Millisecond)),
				"")
		}
	}

	if !matched && len(failed) == 0 {
		expected := admin.OK() && is2xx(admin.Status) &&
			user.OK() && isDenied(user.Status) &&
			(!anon.OK() || isDenied(anon.Status) || anon.Status == 0)
		if expected {
			add(types.RuleOK, types.SeverityOK,
				"access control behaves as expected",
				fmt.Sprintf("admin=%d user=%d anon=%d", admin.Status, user.Status, anon.Status),
				"")
		} else {
			add(types.RuleUnclassified, types.SeverityInfo,
				"status pattern does not match any known rule",
				fmt.Sprintf("admin=%d user=%d anon=%d", admin.Status, user.Status, anon.Status),
				"")
		}
	}

	return findings
}

func displayArrayPath(path string) string {
	if path == "" {
		return "$"
	}
	return path
}
