package handlers

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodeforge/internal/config"
)

func TestAuthSet(t *testing.T) {
	tests := []struct {
		name      string
		terminal  bool
		input     string
		prompted  string
		wantValue string
	}{
		{name: "from stdin", input: "secret-token\n", wantValue: "secret-token"},
		{name: "stdin without newline", input: "  padded  ", wantValue: "padded"},
		{name: "from prompt", terminal: true, prompted: "typed-token", wantValue: "typed-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)
			stdinIsTerminal = func() bool { return tt.terminal }
			stdin = strings.NewReader(tt.input)
			promptSecret = func(context.Context, string) (string, error) { return tt.prompted, nil }

			stored := map[config.Credential]string{}
			storeCredential = func(c config.Credential, v string) error {
				stored[c] = v
				return nil
			}

			require.NoError(t, AuthSet(context.Background(), "HCloud"))
			assert.Equal(t, tt.wantValue, stored[config.CredentialHCloud])
			assert.Contains(t, env.out.String(), "HCLOUD_TOKEN still takes precedence")
		})
	}
}

func TestAuthSet_UnknownCredential(t *testing.T) {
	setupTestEnv(t)
	err := AuthSet(context.Background(), "aws")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown credential")
}

func TestAuthDelete(t *testing.T) {
	env := setupTestEnv(t)
	var deleted config.Credential
	deleteCredential = func(c config.Credential) error {
		deleted = c
		return nil
	}

	require.NoError(t, AuthDelete(context.Background(), "cloudflare"))
	assert.Equal(t, config.CredentialCloudflare, deleted)
	assert.Contains(t, env.out.String(), "Removed cloudflare")
}

func TestAuthDelete_NotStored(t *testing.T) {
	setupTestEnv(t)
	deleteCredential = func(c config.Credential) error {
		return fmt.Errorf("%w: %s", config.ErrCredentialNotFound, c)
	}

	err := AuthDelete(context.Background(), "s3-secret-key")
	assert.ErrorIs(t, err, config.ErrCredentialNotFound)
}

func TestAuthStatus(t *testing.T) {
	env := setupTestEnv(t)
	lookupCredential = func(c config.Credential) (string, error) {
		if c == config.CredentialCloudflare {
			return "", config.ErrCredentialNotFound
		}
		return "value", nil
	}

	require.NoError(t, AuthStatus(context.Background()))

	lines := strings.Split(strings.TrimSpace(env.out.String()), "\n")
	require.Len(t, lines, len(config.AllCredentials))
	for _, line := range lines {
		if strings.Contains(line, "cloudflare") {
			assert.Contains(t, line, "missing")
		} else {
			assert.Contains(t, line, "ok")
		}
		assert.NotContains(t, line, "value")
	}
}
