package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	cmd := Apply()

	require.NotNil(t, cmd)
	assert.Equal(t, "Create or update the node deployment", cmd.Short)
	assert.Contains(t, cmd.Long, "dependency graph")
	assert.Contains(t, cmd.Long, "Examples:")
}

func TestApply_MetricsTextfileFlag(t *testing.T) {
	cmd := Apply()

	flag := cmd.Flags().Lookup("metrics-textfile")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)

	require.NoError(t, cmd.Flags().Set("metrics-textfile", "/tmp/nodeforge.prom"))
	assert.Equal(t, "/tmp/nodeforge.prom", flag.Value.String())
}
