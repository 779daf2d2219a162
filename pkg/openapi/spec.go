// Package openapi turns OpenAPI 3.x and Swagger 2.0 documents into scan
// endpoints.
package openapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Spec is the subset of an OpenAPI/Swagger document the scanner needs.
// Both format generations unmarshal into it; Version/SwaggerVersion tell
// them apart.
type Spec struct {
	OpenAPI  string               `json:"openapi" yaml:"openapi"`
	Swagger  string               `json:"swagger" yaml:"swagger"`
	Info     Info                 `json:"info" yaml:"info"`
	Servers  []Server             `json:"servers" yaml:"servers"`
	BasePath string               `json:"basePath" yaml:"basePath"`
	Paths    map[string]PathEntry `json:"paths" yaml:"paths"`
}

type Info struct {
	Title   string `json:"title" yaml:"title"`
	Version string `json:"version" yaml:"version"`
}

type Server struct {
	URL string `json:"url" yaml:"url"`
}

// PathEntry is one path's operations plus its path-level parameters. It
// decodes field by field from the raw path-item map so documentation keys
// a document may carry there (summary, description, servers, $ref) do not
// break parsing.
type PathEntry struct {
	Operations map[string]PathItem
	// Parameters declared at the path level apply to every operation.
	Parameters []Parameter
}

var operationMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true, "trace": true,
}

func (p *PathEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Operations = make(map[string]PathItem)
	for key, val := range raw {
		switch {
		case operationMethods[strings.ToLower(key)]:
			var item PathItem
			if err := json.Unmarshal(val, &item); err != nil {
				return fmt.Errorf("operation %s: %w", key, err)
			}
			p.Operations[strings.ToLower(key)] = item
		case key == "parameters":
			if err := json.Unmarshal(val, &p.Parameters); err != nil {
				return fmt.Errorf("path-level parameters: %w", err)
			}
		}
	}
	return nil
}

func (p *PathEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("path item must be a mapping")
	}
	p.Operations = make(map[string]PathItem)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		switch {
		case operationMethods[strings.ToLower(key)]:
			var item PathItem
			if err := val.Decode(&item); err != nil {
				return fmt.Errorf("operation %s: %w", key, err)
			}
			p.Operations[strings.ToLower(key)] = item
		case key == "parameters":
			if err := val.Decode(&p.Parameters); err != nil {
				return fmt.Errorf("path-level parameters: %w", err)
			}
		}
	}
	return nil
}

// PathItem is one operation under a path ("get", "post", ...).
type PathItem struct {
	Summary     string       `json:"summary" yaml:"summary"`
	OperationID string       `json:"operationId" yaml:"operationId"`
	Parameters  []Parameter  `json:"parameters" yaml:"parameters"`
	RequestBody *RequestBody `json:"requestBody" yaml:"requestBody"`
	Deprecated  bool         `json:"deprecated" yaml:"deprecated"`
}

type Parameter struct {
	Name     string  `json:"name" yaml:"name"`
	In       string  `json:"in" yaml:"in"` // path, query, header, cookie
	Required bool    `json:"required" yaml:"required"`
	Schema   *Schema `json:"schema" yaml:"schema"`
	// Swagger 2.0 puts the type on the parameter itself.
	Type string `json:"type" yaml:"type"`
}

type RequestBody struct {
	Required bool                 `json:"required" yaml:"required"`
	Content  map[string]MediaType `json:"content" yaml:"content"`
}

type MediaType struct {
	Schema  *Schema     `json:"schema" yaml:"schema"`
	Example interface{} `json:"example" yaml:"example"`
}

type Schema struct {
	Type       string             `json:"type" yaml:"type"`
	Format     string             `json:"format" yaml:"format"`
	Properties map[string]*Schema `json:"properties" yaml:"properties"`
	Required   []string           `json:"required" yaml:"required"`
	Items      *Schema            `json:"items" yaml:"items"`
	Example    interface{}        `json:"example" yaml:"example"`
	Default    interface{}        `json:"default" yaml:"default"`
	Enum       []interface{}      `json:"enum" yaml:"enum"`
}

// IsSwagger2 reports whether the document declared itself as Swagger 2.x.
func (s *Spec) IsSwagger2() bool {
	return s.Swagger != ""
}
