package authz

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/NAMEAMITSONI/authopsy/internal/logger"
	"github.com/NAMEAMITSONI/authopsy/pkg/types"
)

type ProbeKind string

const (
	ProbeQuery  ProbeKind = "query"
	ProbeHeader ProbeKind = "header"
)

// Probe is one parameter or header mutation applied on top of the user
// baseline request.
type Probe struct {
	Kind     ProbeKind
	Name     string
	Value    string
	Category string
}

// Trigger renders the probe for evidence strings ("?admin=true",
// "X-Debug: true").
func (p Probe) Trigger() string {
	if p.Kind == ProbeQuery {
		return "?" + p.Name + "=" + p.Value
	}
	return p.Name + ": " + p.Value
}

var bypassParams = []string{
	"include_details", "show_all", "all", "admin", "debug", "test",
	"internal", "full", "verbose", "expand", "include_private",
	"include_sensitive", "include_deleted", "show_hidden", "bypass",
	"override", "force", "raw", "detailed", "extended",
}

var searchParams = []string{"q", "query", "search", "filter", "keyword", "term"}

var paginationParams = []struct{ name, value string }{
	{"limit", "10000"}, {"page_size", "10000"}, {"per_page", "10000"},
	{"count", "10000"}, {"size", "10000"},
	{"offset", "0"}, {"skip", "0"},
}

var probeHeaders = []struct {
	category string
	name     string
	value    string
}{
	{"debug", "X-Debug", "true"},
	{"debug", "X-Debug-Mode", "true"},
	{"debug", "Debug", "true"},
	{"debug", "X-Test", "true"},
	{"debug", "X-Internal", "true"},
	{"admin", "X-Admin", "true"},
	{"admin", "X-Is-Admin", "true"},
	{"admin", "X-Role", "admin"},
	{"admin", "X-User-Role", "admin"},
	{"admin", "X-Privilege", "admin"},
	{"admin", "X-Access-Level", "admin"},
	{"ip-spoof", "X-Forwarded-For", "127.0.0.1"},
	{"ip-spoof", "X-Real-IP", "127.0.0.1"},
	{"ip-spoof", "X-Client-IP", "127.0.0.1"},
	{"ip-spoof", "X-Originating-IP", "127.0.0.1"},
	{"ip-spoof", "CF-Connecting-IP", "127.0.0.1"},
	{"ip-spoof", "True-Client-IP", "127.0.0.1"},
	{"ip-spoof", "X-Forwarded-Host", "localhost"},
	{"url-override", "X-Original-URL", "/admin"},
	{"url-override", "X-Rewrite-URL", "/admin"},
	{"url-override", "X-Override-URL", "/admin"},
	{"custom", "X-Custom-IP-Authorization", "127.0.0.1"},
	{"custom", "X-Bypass-Cache", "true"},
	{"custom", "X-HTTP-Method-Override", "GET"},
}

// ProbeCatalog returns the full, fixed probe set. The catalog is data, not
// configuration: evaluation semantics depend on these exact names and
// values.
func ProbeCatalog() []Probe {
	var probes []Probe
	for _, name := range bypassParams {
		probes = append(probes, Probe{ProbeQuery, name, "true", "bypass"})
	}
	for _, name := range searchParams {
		probes = append(probes, Probe{ProbeQuery, name, "", "search"})
	}
	for _, p := range paginationParams {
		probes = append(probes, Probe{ProbeQuery, p.name, p.value, "pagination"})
	}
	for _, h := range probeHeaders {
		probes = append(probes, Probe{ProbeHeader, h.name, h.value, h.category})
	}
	return probes
}

// Apply returns a copy of the baseline request with the probe mutation.
func (p Probe) Apply(base ResolvedRequest) ResolvedRequest {
	req := base.Clone()
	switch p.Kind {
	case ProbeQuery:
		sep := "?"
		if strings.Contains(req.URL, "?") {
			sep = "&"
		}
		req.URL += sep + url.QueryEscape(p.Name) + "=" + url.QueryEscape(p.Value)
	case ProbeHeader:
		req.Headers[p.Name] = p.Value
	}
	return req
}

// FuzzResult holds one endpoint's baseline and any bypass findings.
type FuzzResult struct {
	Method         string          `json:"method"`
	Path           string          `json:"path"`
	BaselineStatus int             `json:"baseline_status"`
	BaselineSize   int             `json:"baseline_size"`
	Skipped        bool            `json:"skipped,omitempty"`
	Findings       []types.Finding `json:"findings"`
}

// FuzzReport is the fuzz-mode export shape.
type FuzzReport struct {
	ScanID   string        `json:"scan_id"`
	Target   string        `json:"target"`
	ScanTime time.Time     `json:"scan_time"`
	Results  []FuzzResult  `json:"results"`
	Summary  types.Summary `json:"summary"`
}

// Fuzzer probes endpoints under the user identity, looking for parameters
// or headers that flip a denial into access or inflate the response.
type Fuzzer struct {
	Resolver   *Resolver
	Dispatcher *Dispatcher
	Creds      CredentialSet
	Log        *logger.Logger

	// Probes defaults to the full catalog.
	Probes []Probe
}

// Run fuzzes every endpoint: one baseline request, then one request per
// probe. Baselines outside {401, 403, 2xx} or that errored skip the
// endpoint.
func (f *Fuzzer) Run(ctx context.Context, endpoints []Endpoint) (*FuzzReport, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints to fuzz")
	}
	if err := f.Creds.Validate(false); err != nil {
		return nil, err
	}

	probes := f.Probes
	if probes == nil {
		probes = ProbeCatalog()
	}

	scanID := uuid.NewString()
	log := f.Log
	if log == nil {
		log = logger.FromContext(ctx)
	}
	log = log.WithScanID(scanID)
	log.Infow("Starting fuzz run",
		"endpoints", len(endpoints),
		"probes", len(probes))

	start := time.Now()
	report := &FuzzReport{
		ScanID:   scanID,
		Target:   f.Resolver.BaseURL,
		ScanTime: start.UTC(),
	}

	cred := f.Creds.For(RoleUser)
	requests := 0
	var all []types.Finding

	for _, ep := range endpoints {
		result := FuzzResult{Method: ep.Method, Path: ep.Path}

		base, err := f.Resolver.Resolve(ep, RoleUser, cred)
		if err != nil {
			result.Skipped = true
			result.Findings = append(result.Findings, types.Finding{
				ID:          uuid.NewString(),
				ScanID:      scanID,
				Rule:        types.RuleError,
				Severity:    types.SeverityInfo,
				Endpoint:    ep.Key(),
				Description: "endpoint could not be resolved into a request",
				Evidence:    err.Error(),
				CreatedAt:   time.Now().UTC(),
			})
			report.Results = append(report.Results, result)
			continue
		}

		baseline := f.Dispatcher.Execute(ctx, base)
		requests++
		result.BaselineStatus = baseline.Status
		result.BaselineSize = baseline.Size

		if !baseline.OK() || !fuzzableBaseline(baseline.Status) {
			result.Skipped = true
			report.Results = append(report.Results, result)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		probeReqs := make([]ResolvedRequest, len(probes))
		for i, p := range probes {
			probeReqs[i] = p.Apply(base)
		}
		snaps, dispatchErr := f.Dispatcher.Dispatch(ctx, probeReqs)
		requests += len(probeReqs)

		baseFacts := ExtractFacts(baseline)
		for i, snap := range snaps {
			if fd, ok := evaluateProbe(ep, probes[i], baseline, baseFacts, snap); ok {
				fd.ID = uuid.NewString()
				fd.ScanID = scanID
				result.Findings = append(result.Findings, fd)
				log.LogFinding(fd)
			}
		}

		report.Results = append(report.Results, result)
		all = append(all, result.Findings...)

		if dispatchErr != nil {
			break
		}
	}

	report.Summary = buildSummary(len(endpoints), requests, time.Since(start), all)

	log.Infow("Fuzz run complete",
		"duration", time.Since(start).Round(time.Millisecond).String(),
		"requests", requests,
		"findings", len(all))

	return report, ctx.Err()
}

func fuzzableBaseline(status int) bool {
	return isDenied(status) || is2xx(status)
}

// Thresholds for the 2xx data-leak check: the probe response must grow
// materially before it counts.
const (
	leakSizeRatio = 1.5
	leakSizeFloor = 100
	leakKeyDelta  = 3
)

func evaluateProbe(ep Endpoint, probe Probe, baseline Snapshot, baseFacts Facts, snap Snapshot) (types.Finding, bool) {
	if !snap.OK() {
		return types.Finding{}, false
	}

	evidence := fmt.Sprintf("trigger=%s baseline=%d (%dB) probe=%d (%dB)",
		probe.Trigger(), baseline.Status, baseline.Size, snap.Status, snap.Size)

	// A denial that turns into success is the headline bypass.
	if isDenied(baseline.Status) && is2xx(snap.Status) {
		rule := types.RuleQueryBypass
		if probe.Kind == ProbeHeader {
			rule = types.RuleHeaderBypass
		}
		return types.Finding{
			Rule:     rule,
			Severity: types.SeverityCritical,
			Endpoint: ep.Key(),
			Description: fmt.Sprintf("%s probe %q turned a %d into a %d",
				probe.Kind, probe.Name, baseline.Status, snap.Status),
			Evidence:    evidence,
			Remediation: "authorization must not depend on client-supplied parameters or headers",
			CreatedAt:   time.Now().UTC(),
		}, true
	}

	if baseline.Status != snap.Status || !is2xx(baseline.Status) {
		return types.Finding{}, false
	}

	// Equal 2xx statuses: look for a response that grew past the leak
	// thresholds or sprouted new structure.
	probeFacts := ExtractFacts(snap)
	grew := snap.Size > int(float64(baseline.Size)*leakSizeRatio) &&
		snap.Size-baseline.Size > leakSizeFloor
	newKeys := len(probeFacts.KeyPaths) > len(baseFacts.KeyPaths)+leakKeyDelta
	if !grew {
		for path := range probeFacts.Sensitive {
			if !baseFacts.KeyPaths[path] {
				newKeys = true
				break
			}
		}
	}
	if grew || newKeys {
		return types.Finding{
			Rule:     types.RuleSizeBypass,
			Severity: types.SeverityHigh,
			Endpoint: ep.Key(),
			Description: fmt.Sprintf("%s probe %q materially changed the response content",
				probe.Kind, probe.Name),
			Evidence:    evidence,
			Remediation: "verify the parameter does not widen result scoping for non-admin callers",
			CreatedAt:   time.Now().UTC(),
		}, true
	}

	return types.Finding{}, false
}
