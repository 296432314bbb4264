package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_Subcommands(t *testing.T) {
	cmd := Auth()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.Equal(t, map[string]bool{"set": true, "delete": true, "status": true}, names)
	assert.Contains(t, cmd.Long, "hcloud")
	assert.Contains(t, cmd.Long, "s3-secret-key")
}

func TestAuth_SetRequiresCredentialName(t *testing.T) {
	cmd := Auth()
	cmd.SetArgs([]string{"set"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestInit_OutputFlag(t *testing.T) {
	cmd := Init()

	flag := cmd.Flags().Lookup("output")
	require.NotNil(t, flag)
	assert.Equal(t, "o", flag.Shorthand)
	assert.Equal(t, "nodeforge.yaml", flag.DefValue)
}
