package commands

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDestroy(t *testing.T) {
	cmd := Destroy()

	require.NotNil(t, cmd)
	assert.Equal(t, "destroy", cmd.Use)
	assert.Equal(t, "Destroy the node deployment and all associated resources", cmd.Short)
	assert.Contains(t, cmd.Long, "Destroy removes every resource recorded for the stack")
}

func TestDestroy_ConfigFlagRequired(t *testing.T) {
	cmd := Destroy()

	flag := cmd.Flags().Lookup("config")
	require.NotNil(t, flag)

	_, hasRequired := flag.Annotations[cobra.BashCompOneRequiredFlag]
	assert.True(t, hasRequired, "config flag should be required")
}

func TestDestroy_LongDescription(t *testing.T) {
	cmd := Destroy()

	assert.Contains(t, cmd.Long, "DNS records")
	assert.Contains(t, cmd.Long, "load balancer")
	assert.Contains(t, cmd.Long, "network")
	assert.Contains(t, cmd.Long, "WARNING")
}
