package authz

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// ResolutionError means an endpoint template could not be turned into a
// concrete request. It is attributed to the endpoint, not the session: the
// scan records it and moves on.
type ResolutionError struct {
	Endpoint string
	Reason   string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %s: %s", e.Endpoint, e.Reason)
}

// ResolvedRequest is a fully concrete request ready for dispatch. Probes
// mutate copies of it, never the endpoint template it came from.
type ResolvedRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte

	Endpoint Endpoint
	Role     Role
}

// Clone deep-copies the request so probe mutations stay isolated.
func (r ResolvedRequest) Clone() ResolvedRequest {
	out := r
	out.Headers = make(map[string]string, len(r.Headers)+1)
	for k, v := range r.Headers {
		out.Headers[k] = v
	}
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return out
}

// Resolver turns endpoint templates into concrete requests for a role.
// ParamOverrides is keyed by parameter name and applies across all
// endpoints; per-endpoint values from the source spec win over type
// defaults but lose to overrides. BodyOverrides is keyed by endpoint key
// ("POST /api/users") and replaces the spec's body example.
type Resolver struct {
	BaseURL        string
	ParamOverrides map[string]string
	BodyOverrides  map[string]json.RawMessage
	UserAgent      string
}

// NewResolver validates and normalizes the target base URL.
func NewResolver(baseURL string, overrides map[string]string) (*Resolver, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must use http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", baseURL)
	}
	return &Resolver{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		ParamOverrides: overrides,
	}, nil
}

// Resolve substitutes path parameters, appends query parameters, and
// attaches headers and the role credential. The endpoint template is not
// modified.
func (r *Resolver) Resolve(ep Endpoint, role Role, cred Credential) (ResolvedRequest, error) {
	path := ep.Path
	for _, p := range ep.PathParams {
		value := p.DefaultValue()
		if v, ok := r.ParamOverrides[p.Name]; ok {
			value = v
		}
		path = strings.ReplaceAll(path, "{"+p.Name+"}", value)
	}

	// A placeholder that survived substitution means the source spec and
	// the extracted parameter list disagree.
	if i := strings.Index(path, "{"); i >= 0 && strings.Contains(path[i:], "}") {
		return ResolvedRequest{}, &ResolutionError{
			Endpoint: ep.Key(),
			Reason:   fmt.Sprintf("unresolved path parameter in %q", path),
		}
	}

	full := r.BaseURL + path
	if len(ep.QueryParams) > 0 {
		q := url.Values{}
		for k, v := range ep.QueryParams {
			if v != "" {
				q.Set(k, v)
			}
		}
		if encoded := q.Encode(); encoded != "" {
			full += "?" + encoded
		}
	}

	headers := map[string]string{
		"Accept": "application/json",
	}
	if r.UserAgent != "" {
		headers["User-Agent"] = r.UserAgent
	}
	for k, v := range ep.Headers {
		if v != "" {
			headers[k] = v
		}
	}

	var body []byte
	if MethodRequiresBody(ep.Method) {
		tmpl := ep.BodyExample
		if override, ok := r.BodyOverrides[ep.Key()]; ok {
			tmpl = override
		}
		if len(tmpl) > 0 {
			if !json.Valid(tmpl) {
				return ResolvedRequest{}, &ResolutionError{
					Endpoint: ep.Key(),
					Reason:   "request body template is not valid JSON",
				}
			}
			body = append([]byte(nil), tmpl...)
		}
		headers["Content-Type"] = "application/json"
	}

	if cred.Value != "" {
		header := cred.Header
		if header == "" {
			header = DefaultAuthHeader
		}
		headers[header] = cred.Value
	}

	return ResolvedRequest{
		Method:   ep.Method,
		URL:      full,
		Headers:  headers,
		Body:     body,
		Endpoint: ep,
		Role:     role,
	}, nil
}
