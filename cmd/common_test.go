package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSourceCmd() *cobra.Command {
	c := &cobra.Command{}
	addEndpointSourceFlags(c)
	return c
}

func TestLoadEndpointsSourceSelection(t *testing.T) {
	c := newSourceCmd()
	_, err := loadEndpoints(c)
	assert.ErrorContains(t, err, "required")

	c = newSourceCmd()
	c.Flags().Set("spec", "a.json")
	c.Flags().Set("endpoints", "GET /x")
	_, err = loadEndpoints(c)
	assert.ErrorContains(t, err, "mutually exclusive")

	c = newSourceCmd()
	c.Flags().Set("endpoints", "GET /api/users, POST /api/users")
	eps, err := loadEndpoints(c)
	require.NoError(t, err)
	assert.Len(t, eps, 2)
}

func TestParseOverrides(t *testing.T) {
	overrides, err := parseOverrides([]string{"id=42", "org_uuid=abc-def"})
	require.NoError(t, err)
	assert.Equal(t, "42", overrides["id"])
	assert.Equal(t, "abc-def", overrides["org_uuid"])

	_, err = parseOverrides([]string{"noequals"})
	assert.Error(t, err)

	_, err = parseOverrides([]string{"=value"})
	assert.Error(t, err)

	overrides, err = parseOverrides(nil)
	require.NoError(t, err)
	assert.Nil(t, overrides)
}
