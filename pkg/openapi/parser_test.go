package openapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NAMEAMITSONI/authopsy/pkg/authz"
)

const v3JSON = `{
  "openapi": "3.0.3",
  "info": {"title": "Petstore", "version": "1.0"},
  "paths": {
    "/pets": {
      "get": {
        "parameters": [
          {"name": "limit", "in": "query", "schema": {"type": "integer", "default": 20}}
        ]
      },
      "post": {
        "requestBody": {
          "required": true,
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {
                  "name": {"type": "string"},
                  "age": {"type": "integer"},
                  "vaccinated": {"type": "boolean"}
                }
              }
            }
          }
        }
      }
    },
    "/pets/{petId}": {
      "summary": "single pet operations",
      "parameters": [
        {"name": "petId", "in": "path", "required": true, "schema": {"type": "string", "format": "uuid"}}
      ],
      "get": {},
      "delete": {}
    }
  }
}`

const swagger2YAML = `
swagger: "2.0"
info:
  title: Legacy
  version: "1.0"
basePath: /v1
paths:
  /users/{id}:
    parameters:
      - name: id
        in: path
        required: true
        type: integer
    get: {}
  /users:
    get: {}
`

func TestParseOpenAPI3(t *testing.T) {
	spec, err := Parse([]byte(v3JSON))
	require.NoError(t, err)
	assert.False(t, spec.IsSwagger2())
	assert.Equal(t, "Petstore", spec.Info.Title)
}

func TestParseSwagger2YAML(t *testing.T) {
	spec, err := Parse([]byte(swagger2YAML))
	require.NoError(t, err)
	assert.True(t, spec.IsSwagger2())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"garbage", "{{{{"},
		{"no version marker", `{"info":{"title":"x"},"paths":{"/a":{"get":{}}}}`},
		{"no paths", `{"openapi":"3.0.0","info":{"title":"x"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestEndpointsFromOpenAPI3(t *testing.T) {
	spec, err := Parse([]byte(v3JSON))
	require.NoError(t, err)

	eps := spec.Endpoints()
	require.Len(t, eps, 4)

	// Sorted by path then method.
	assert.Equal(t, "GET /pets", eps[0].Key())
	assert.Equal(t, "POST /pets", eps[1].Key())
	assert.Equal(t, "DELETE /pets/{petId}", eps[2].Key())
	assert.Equal(t, "GET /pets/{petId}", eps[3].Key())

	// Query default carried over.
	assert.Equal(t, "20", eps[0].QueryParams["limit"])

	// Body example synthesized from the schema.
	assert.JSONEq(t, `{"name":"test","age":1,"vaccinated":true}`, string(eps[1].BodyExample))

	// Schema type wins over name inference: petId would be an integer by
	// name, the declared uuid format upgrades it. The parameter sits at
	// the path level, so every operation under the path inherits it.
	require.Len(t, eps[3].PathParams, 1)
	assert.Equal(t, authz.ParamUUID, eps[3].PathParams[0].Type)
	require.Len(t, eps[2].PathParams, 1)
	assert.Equal(t, authz.ParamUUID, eps[2].PathParams[0].Type)
}

func TestParseToleratesPathLevelKeys(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"json", `{
  "openapi": "3.0.0",
  "info": {"title": "x", "version": "1"},
  "paths": {
    "/widgets": {
      "summary": "widget ops",
      "description": "documentation only",
      "servers": [{"url": "https://example.com"}],
      "get": {}
    }
  }
}`},
		{"yaml", `
openapi: 3.0.0
info:
  title: x
  version: "1"
paths:
  /widgets:
    summary: widget ops
    description: documentation only
    servers:
      - url: https://example.com
    get: {}
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := Parse([]byte(tt.doc))
			require.NoError(t, err)

			eps := spec.Endpoints()
			require.Len(t, eps, 1)
			assert.Equal(t, "GET /widgets", eps[0].Key())
		})
	}
}

func TestEndpointsFromSwagger2(t *testing.T) {
	spec, err := Parse([]byte(swagger2YAML))
	require.NoError(t, err)

	eps := spec.Endpoints()
	require.Len(t, eps, 2)
	assert.Equal(t, "GET /v1/users", eps[0].Key())
	assert.Equal(t, "GET /v1/users/{id}", eps[1].Key())

	require.Len(t, eps[1].PathParams, 1)
	assert.Equal(t, authz.ParamInteger, eps[1].PathParams[0].Type)
}

func TestExampleFromSchemaFormats(t *testing.T) {
	assert.Equal(t, "00000000-0000-0000-0000-000000000001",
		exampleFromSchema(&Schema{Type: "string", Format: "uuid"}, 0))
	assert.Equal(t, "test@example.com",
		exampleFromSchema(&Schema{Type: "string", Format: "email"}, 0))
	assert.Equal(t, 1, exampleFromSchema(&Schema{Type: "integer"}, 0))

	// Self-referential schemas terminate.
	recursive := &Schema{Type: "object"}
	recursive.Properties = map[string]*Schema{"child": recursive}
	assert.NotNil(t, exampleFromSchema(recursive, 0))
}
