package solveconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverridesOnlyPresentFields(t *testing.T) {
	c := Default()
	require.NoError(t, c.Parse([]byte("UseInverseDiagonals: false\n")))
	assert.False(t, c.UseInverseDiagonals)
	assert.Equal(t, "two-sided", c.Transport)
}

func TestValidateRejectsUnknownTransport(t *testing.T) {
	c := Default()
	c.Transport = "carrier-pigeon"
	assert.Error(t, c.Validate())
}

func TestValidateRejectsNegativeWorkers(t *testing.T) {
	c := Default()
	c.Workers = -1
	assert.Error(t, c.Validate())
}
