package openapi

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/NAMEAMITSONI/authopsy/pkg/authz"
)

// Parse decodes an OpenAPI 3.x or Swagger 2.0 document. JSON is tried
// first, then YAML. A document with neither version marker nor paths is
// rejected: scans need endpoints, not just a well-formed file.
func Parse(data []byte) (*Spec, error) {
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		if yerr := yaml.Unmarshal(data, &spec); yerr != nil {
			return nil, fmt.Errorf("document is neither valid JSON nor valid YAML: %w", yerr)
		}
	}
	if spec.OpenAPI == "" && spec.Swagger == "" {
		return nil, fmt.Errorf("document has no openapi or swagger version field")
	}
	if len(spec.Paths) == 0 {
		return nil, fmt.Errorf("document declares no paths")
	}
	return &spec, nil
}

// ParseFile reads and parses a spec document from disk.
func ParseFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec file: %w", err)
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return spec, nil
}

// Endpoints flattens the spec into scan endpoints, sorted by path then
// method so runs are reproducible. Path-level parameters apply to every
// operation under the path; operation-level declarations win on conflict.
func (s *Spec) Endpoints() []authz.Endpoint {
	var endpoints []authz.Endpoint

	for path, entry := range s.Paths {
		fullPath := path
		if s.IsSwagger2() && s.BasePath != "" && s.BasePath != "/" {
			fullPath = strings.TrimRight(s.BasePath, "/") + path
		}

		for rawMethod, item := range entry.Operations {
			method, err := authz.ParseMethod(rawMethod)
			if err != nil {
				continue
			}

			ep := authz.NewEndpoint(method, fullPath)
			applyParameters(&ep, entry.Parameters)
			applyParameters(&ep, item.Parameters)
			if body := exampleBody(item.RequestBody); body != nil {
				ep.BodyExample = body
			}
			endpoints = append(endpoints, ep)
		}
	}

	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].Path != endpoints[j].Path {
			return endpoints[i].Path < endpoints[j].Path
		}
		return endpoints[i].Method < endpoints[j].Method
	})
	return endpoints
}

// applyParameters refines name-inferred path param types with the schema's
// declared types and records query parameter defaults.
func applyParameters(ep *authz.Endpoint, params []Parameter) {
	for _, p := range params {
		switch p.In {
		case "path":
			declared := schemaParamType(p)
			if declared == "" {
				continue
			}
			for i := range ep.PathParams {
				if ep.PathParams[i].Name == p.Name {
					ep.PathParams[i].Type = declared
				}
			}
		case "query":
			if v := parameterExample(p); v != "" {
				if ep.QueryParams == nil {
					ep.QueryParams = map[string]string{}
				}
				ep.QueryParams[p.Name] = v
			}
		case "header":
			// Auth headers are owned by the credential set; other spec
			// headers rarely matter for authorization and add noise.
		}
	}
}

func schemaParamType(p Parameter) authz.ParamType {
	typ, format := p.Type, ""
	if p.Schema != nil {
		typ, format = p.Schema.Type, p.Schema.Format
	}
	switch typ {
	case "integer", "number":
		return authz.ParamInteger
	case "boolean":
		return authz.ParamBoolean
	case "string":
		if format == "uuid" {
			return authz.ParamUUID
		}
		return authz.ParamString
	}
	return ""
}

func parameterExample(p Parameter) string {
	if p.Schema == nil {
		return ""
	}
	for _, v := range []interface{}{p.Schema.Example, p.Schema.Default} {
		if v != nil {
			return fmt.Sprintf("%v", v)
		}
	}
	if len(p.Schema.Enum) > 0 {
		return fmt.Sprintf("%v", p.Schema.Enum[0])
	}
	return ""
}

// exampleBody synthesizes a JSON request body from the operation's
// application/json schema: declared examples win, otherwise each property
// gets a type-appropriate placeholder.
func exampleBody(rb *RequestBody) json.RawMessage {
	if rb == nil {
		return nil
	}
	media, ok := rb.Content["application/json"]
	if !ok {
		return nil
	}
	if media.Example != nil {
		if data, err := json.Marshal(media.Example); err == nil {
			return data
		}
	}
	if media.Schema == nil {
		return nil
	}
	value := exampleFromSchema(media.Schema, 0)
	if value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return data
}

// exampleFromSchema generates a placeholder value. Recursion is depth
// capped so self-referential schemas terminate.
func exampleFromSchema(s *Schema, depth int) interface{} {
	if s == nil || depth > 4 {
		return nil
	}
	if s.Example != nil {
		return s.Example
	}
	if s.Default != nil {
		return s.Default
	}
	if len(s.Enum) > 0 {
		return s.Enum[0]
	}

	switch s.Type {
	case "object", "":
		if len(s.Properties) == 0 {
			return map[string]interface{}{}
		}
		obj := make(map[string]interface{}, len(s.Properties))
		for name, prop := range s.Properties {
			if v := exampleFromSchema(prop, depth+1); v != nil {
				obj[name] = v
			}
		}
		return obj
	case "array":
		if v := exampleFromSchema(s.Items, depth+1); v != nil {
			return []interface{}{v}
		}
		return []interface{}{}
	case "integer", "number":
		return 1
	case "boolean":
		return true
	case "string":
		switch s.Format {
		case "uuid":
			return "00000000-0000-0000-0000-000000000001"
		case "date-time":
			return "2024-01-01T00:00:00Z"
		case "email":
			return "test@example.com"
		default:
			return "test"
		}
	}
	return nil
}
