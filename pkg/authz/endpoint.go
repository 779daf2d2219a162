// Package authz implements the differential authorization scanning engine:
// multi-role request dispatch, response comparison, rule-based
// classification, and bypass-probe fuzzing.
package authz

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Methods accepted by the endpoint model.
var supportedMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true,
}

// ParseMethod normalizes and validates an HTTP method name.
func ParseMethod(s string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(s))
	if !supportedMethods[m] {
		return "", fmt.Errorf("invalid HTTP method %q (supported: GET, POST, PUT, PATCH, DELETE, HEAD, OPTIONS)", s)
	}
	return m, nil
}

// MethodRequiresBody reports whether the method conventionally carries a
// request body.
func MethodRequiresBody(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH":
		return true
	}
	return false
}

type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamUUID    ParamType = "uuid"
	ParamBoolean ParamType = "boolean"
)

// PathParam is a {name} placeholder in an endpoint path template.
type PathParam struct {
	Name     string    `json:"name"`
	Type     ParamType `json:"type"`
	Required bool      `json:"required"`
}

// DefaultValue returns the fixed substitution literal for the parameter
// type. These defaults decide which concrete resource a test hits, so they
// are stable by contract.
func (p PathParam) DefaultValue() string {
	switch p.Type {
	case ParamInteger:
		return "1"
	case ParamUUID:
		return "00000000-0000-0000-0000-000000000001"
	case ParamBoolean:
		return "true"
	default:
		return "test"
	}
}

// Endpoint is an immutable request template. It is constructed once per
// session by an endpoint source and shared read-only across all roles and
// probes.
type Endpoint struct {
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	PathParams  []PathParam       `json:"path_params,omitempty"`
	QueryParams map[string]string `json:"query_params,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	BodyExample json.RawMessage   `json:"body_example,omitempty"`
}

// NewEndpoint builds an endpoint from a method and a path template,
// extracting {name} placeholders and inferring their types from the name.
func NewEndpoint(method, path string) Endpoint {
	return Endpoint{
		Method:     method,
		Path:       path,
		PathParams: extractPathParams(path),
	}
}

// Key identifies the endpoint in override maps and reports ("GET /api/users").
func (e Endpoint) Key() string {
	return e.Method + " " + e.Path
}

// DisplayPath renders the endpoint for matrix output with a padded method.
func (e Endpoint) DisplayPath() string {
	return fmt.Sprintf("%-6s %s", e.Method, e.Path)
}

func extractPathParams(path string) []PathParam {
	var params []PathParam
	for _, segment := range strings.Split(path, "/") {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") && len(segment) > 2 {
			name := segment[1 : len(segment)-1]
			params = append(params, PathParam{
				Name:     name,
				Type:     InferParamType(name),
				Required: true,
			})
		}
	}
	return params
}

// InferParamType guesses a placeholder's type from its name. The heuristic
// is part of the resolver contract: it fixes which default literal gets
// substituted when no override is supplied.
func InferParamType(name string) ParamType {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "uuid"),
		strings.HasSuffix(lower, "_id") && len(lower) > 10:
		return ParamUUID
	case strings.Contains(lower, "id"),
		strings.Contains(lower, "count"),
		strings.Contains(lower, "num"):
		return ParamInteger
	case strings.Contains(lower, "enabled"),
		strings.Contains(lower, "active"),
		strings.Contains(lower, "flag"):
		return ParamBoolean
	default:
		return ParamString
	}
}

// ParseEndpointList parses a manual endpoint list of the form
// "GET /api/users, POST /api/users/{id}". Malformed input is session-fatal.
func ParseEndpointList(input string) ([]Endpoint, error) {
	var endpoints []Endpoint

	for _, part := range strings.Split(input, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}

		fields := strings.Fields(trimmed)
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid endpoint %q: expected 'METHOD /path'", trimmed)
		}

		method, err := ParseMethod(fields[0])
		if err != nil {
			return nil, err
		}

		path := fields[1]
		if !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("path must start with '/': %q", path)
		}

		endpoints = append(endpoints, NewEndpoint(method, path))
	}

	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no valid endpoints found in input")
	}

	return endpoints, nil
}
