package handlers

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	"github.com/imamik/nodeforge/internal/config"
	"github.com/imamik/nodeforge/internal/provisioning"
	"github.com/imamik/nodeforge/internal/provisioning/fakes"
	"github.com/imamik/nodeforge/internal/stack"
	"github.com/imamik/nodeforge/internal/state"
	"github.com/imamik/nodeforge/internal/util/keygen"
)

// saveAndRestoreFactories saves every swappable factory and restores it
// when the test ends.
func saveAndRestoreFactories(t *testing.T) {
	origFindConfigFile := findConfigFile
	origLoadConfigFile := loadConfigFile
	origLoadTimeouts := loadTimeouts
	origOpenBackends := openBackends
	origStdout := stdout
	origNewLogger := newLogger
	origFileExists := fileExists
	origStdinIsTerminal := stdinIsTerminal
	origRunWizard := runWizard
	origWriteConfig := writeConfig
	origStoreCredential := storeCredential
	origDeleteCredential := deleteCredential
	origLookupCredential := lookupCredential
	origPromptSecret := promptSecret
	origStdin := stdin

	t.Cleanup(func() {
		findConfigFile = origFindConfigFile
		loadConfigFile = origLoadConfigFile
		loadTimeouts = origLoadTimeouts
		openBackends = origOpenBackends
		stdout = origStdout
		newLogger = origNewLogger
		fileExists = origFileExists
		stdinIsTerminal = origStdinIsTerminal
		runWizard = origRunWizard
		writeConfig = origWriteConfig
		storeCredential = origStoreCredential
		deleteCredential = origDeleteCredential
		lookupCredential = origLookupCredential
		promptSecret = origPromptSecret
		stdin = origStdin
	})
}

const testNodeKey = "NODEKEY"

// testEnv wires the handlers to a fake provider and an in-memory store.
type testEnv struct {
	cfg      *config.Config
	provider *fakes.Provider
	store    *state.MemoryStore
	out      *bytes.Buffer
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	saveAndRestoreFactories(t)

	dir := t.TempDir()
	kp, err := keygen.GenerateEd25519KeyPair("test")
	require.NoError(t, err)
	keyPath := filepath.Join(dir, "id_ed25519.pub")
	require.NoError(t, os.WriteFile(keyPath, kp.PublicKey, 0o600))

	cfg := &config.Config{
		Stack:  "eth",
		Region: "fsn1",
		Domain: config.NewSubdomain("node", "example.com"),
		Access: config.AccessConfig{SSHPublicKeyPath: keyPath},
	}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	env := &testEnv{
		cfg:      cfg,
		provider: fakes.NewProvider(),
		store:    state.NewMemoryStore(),
		out:      &bytes.Buffer{},
	}
	env.provider.SetOutputs(stack.NodeBalancer, provisioning.Outputs{
		"id": "42", "ipv4": "192.0.2.10", "ipv6": "2001:db8::10",
	})

	findConfigFile = func(path string) (string, error) { return path, nil }
	loadConfigFile = func(string) (*config.Config, error) { return env.cfg, nil }
	loadTimeouts = func() *config.Timeouts {
		tm := config.LoadTimeouts()
		tm.RetryInitialDelay = 0
		return tm
	}
	openBackends = func(context.Context, *config.Config, *config.Timeouts) (*backends, error) {
		return &backends{provider: env.provider, store: env.store}, nil
	}
	newLogger = func() (logr.Logger, func()) { return logr.Discard(), func() {} }
	lookupCredential = func(c config.Credential) (string, error) {
		if c == config.CredentialNodeAccess {
			return testNodeKey, nil
		}
		return "value", nil
	}
	stdout = env.out

	return env
}

