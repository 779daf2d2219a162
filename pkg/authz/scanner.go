package authz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/NAMEAMITSONI/authopsy/internal/logger"
	"github.com/NAMEAMITSONI/authopsy/pkg/types"
)

// ResponseInfo is the per-role response slice of the report wire shape.
type ResponseInfo struct {
	Status    int    `json:"status"`
	Size      int    `json:"size"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
}

func responseInfo(s Snapshot) ResponseInfo {
	return ResponseInfo{
		Status:    s.Status,
		Size:      s.Size,
		ElapsedMS: s.Elapsed.Milliseconds(),
		Error:     s.Err,
	}
}

// EndpointResult groups everything the scan learned about one endpoint.
type EndpointResult struct {
	Method    string                `json:"method"`
	Path      string                `json:"path"`
	Responses map[Role]ResponseInfo `json:"responses"`
	Findings  []types.Finding       `json:"findings"`
}

// Report is the stable export shape consumed by the report renderers.
type Report struct {
	ScanID   string           `json:"scan_id"`
	Target   string           `json:"target"`
	ScanTime time.Time        `json:"scan_time"`
	Results  []EndpointResult `json:"results"`
	Summary  types.Summary    `json:"summary"`
}

// Findings flattens all findings across results, sorted by severity.
func (r *Report) Findings() []types.Finding {
	var all []types.Finding
	for _, res := range r.Results {
		all = append(all, res.Findings...)
	}
	types.SortFindings(all)
	return all
}

// Scanner runs a full differential scan: every endpoint replayed under
// admin, user and anonymous identities, compared, classified.
type Scanner struct {
	Resolver   *Resolver
	Dispatcher *Dispatcher
	Classifier *Classifier
	Creds      CredentialSet
	Log        *logger.Logger

	// SkipAnon drops the anonymous identity from the replay set.
	SkipAnon bool
}

// Run executes the scan. Input problems (no endpoints, missing tokens)
// fail before any request is sent. Per-endpoint failures become findings,
// never session errors; cancellation classifies everything gathered so far.
func (s *Scanner) Run(ctx context.Context, endpoints []Endpoint) (*Report, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no endpoints to scan")
	}
	if err := s.Creds.Validate(true); err != nil {
		return nil, err
	}

	roles := ScanRoles
	if s.SkipAnon {
		roles = []Role{RoleAdmin, RoleUser}
	}

	scanID := uuid.NewString()
	log := s.Log
	if log == nil {
		log = logger.FromContext(ctx)
	}
	log = log.WithScanID(scanID)
	log.Infow("Starting differential scan",
		"endpoints", len(endpoints),
		"roles", len(roles))

	start := time.Now()
	report := &Report{
		ScanID:   scanID,
		Target:   s.Resolver.BaseURL,
		ScanTime: start.UTC(),
		Results:  make([]EndpointResult, len(endpoints)),
	}

	// Resolve every (endpoint, role) pair up front. An endpoint that fails
	// to resolve gets an error finding and is excluded from dispatch.
	var reqs []ResolvedRequest
	resolved := make(map[int]map[Role]int, len(endpoints))

	for i, ep := range endpoints {
		report.Results[i] = EndpointResult{
			Method:    ep.Method,
			Path:      ep.Path,
			Responses: make(map[Role]ResponseInfo, len(roles)),
		}

		failed := false
		var pending []ResolvedRequest
		for _, role := range roles {
			req, err := s.Resolver.Resolve(ep, role, s.Creds.For(role))
			if err != nil {
				report.Results[i].Findings = append(report.Results[i].Findings, types.Finding{
					ID:          uuid.NewString(),
					ScanID:      scanID,
					Rule:        types.RuleError,
					Severity:    types.SeverityInfo,
					Endpoint:    ep.Key(),
					Description: "endpoint could not be resolved into a request",
					Evidence:    err.Error(),
					CreatedAt:   time.Now().UTC(),
				})
				failed = true
				break
			}
			pending = append(pending, req)
		}
		if failed {
			continue
		}

		resolved[i] = make(map[Role]int, len(pending))
		for _, req := range pending {
			resolved[i][req.Role] = len(reqs)
			reqs = append(reqs, req)
		}
	}

	snaps, dispatchErr := s.Dispatcher.Dispatch(ctx, reqs)

	// Compare and classify per endpoint. The findings list is shared, so
	// appends are mutex-guarded; per-endpoint results have their own slot.
	var (
		mu  sync.Mutex
		all []types.Finding
	)
	var g errgroup.Group
	g.SetLimit(8)

	for i := range endpoints {
		idx, ok := resolved[i]
		if !ok {
			mu.Lock()
			all = append(all, report.Results[i].Findings...)
			mu.Unlock()
			continue
		}
		i := i
		g.Go(func() error {
			admin := snaps[idx[RoleAdmin]]
			user := snaps[idx[RoleUser]]
			var anon Snapshot
			if j, ok := idx[RoleAnon]; ok {
				anon = snaps[j]
			}

			report.Results[i].Responses[RoleAdmin] = responseInfo(admin)
			report.Results[i].Responses[RoleUser] = responseInfo(user)
			if _, ok := idx[RoleAnon]; ok {
				report.Results[i].Responses[RoleAnon] = responseInfo(anon)
			}

			findings := s.Classifier.Classify(endpoints[i], admin, user, anon)
			for j := range findings {
				findings[j].ID = uuid.NewString()
				findings[j].ScanID = scanID
			}
			report.Results[i].Findings = append(report.Results[i].Findings, findings...)

			for _, f := range findings {
				log.LogFinding(f)
			}

			mu.Lock()
			all = append(all, findings...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.Summary = buildSummary(len(endpoints), len(reqs), time.Since(start), all)

	log.Infow("Scan complete",
		"duration", time.Since(start).Round(time.Millisecond).String(),
		"requests", len(reqs),
		"findings", len(all))

	if dispatchErr != nil {
		return report, dispatchErr
	}
	return report, nil
}

func buildSummary(endpoints, requests int, elapsed time.Duration, findings []types.Finding) types.Summary {
	sum := types.Summary{
		TotalEndpoints: endpoints,
		TotalRequests:  requests,
		DurationMS:     elapsed.Milliseconds(),
		BySeverity:     make(map[types.Severity]int),
	}
	for _, f := range findings {
		switch {
		case f.IsDiagnostic():
			sum.ErrorCount++
		case f.Rule == types.RuleOK:
			sum.OKCount++
		default:
			sum.BySeverity[f.Severity]++
		}
	}
	return sum
}
