package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnlock(t *testing.T) {
	cmd := Unlock()

	require.NotNil(t, cmd)
	assert.Equal(t, "unlock", cmd.Use)
	assert.Contains(t, cmd.Long, "nodeforge unlock --force")

	force := cmd.Flags().Lookup("force")
	require.NotNil(t, force)
	assert.Equal(t, "false", force.DefValue)
	assert.NotNil(t, cmd.Flags().Lookup("config"))
}

func TestUnlock_RefusesWithoutForce(t *testing.T) {
	cmd := Unlock()
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass --force")
}
