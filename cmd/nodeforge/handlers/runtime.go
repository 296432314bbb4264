// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/imamik/nodeforge/internal/bootstrap"
	"github.com/imamik/nodeforge/internal/config"
	"github.com/imamik/nodeforge/internal/graph"
	"github.com/imamik/nodeforge/internal/platform/acme"
	"github.com/imamik/nodeforge/internal/platform/cloudflare"
	"github.com/imamik/nodeforge/internal/platform/hcloud"
	"github.com/imamik/nodeforge/internal/platform/s3"
	"github.com/imamik/nodeforge/internal/provisioning"
	"github.com/imamik/nodeforge/internal/stack"
	"github.com/imamik/nodeforge/internal/state"
	"github.com/imamik/nodeforge/internal/util/keygen"
)

// keyDir holds generated SSH key pairs, next to the default state file and
// the ACME account key.
const keyDir = ".nodeforge"

// backends bundles the provider and state store one run talks to.
type backends struct {
	provider provisioning.Provider
	store    state.Store
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// findConfigFile resolves the config path, falling back to nodeforge.yaml.
	findConfigFile = config.FindConfigFile

	// loadConfigFile loads config from file (for testing injection).
	loadConfigFile = config.LoadFile

	// loadTimeouts reads the NODEFORGE_* timeout overrides.
	loadTimeouts = config.LoadTimeouts

	// openBackends builds the provider registry and opens the state store.
	openBackends = defaultBackends

	// stdout receives reports and rendered output.
	stdout io.Writer = os.Stdout
)

// loadConfig finds, loads and validates the configuration.
func loadConfig(configPath string) (*config.Config, error) {
	path, err := findConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// stateKey is the key records and the lease of cfg's deployment live
// under. Two regions of the same stack name never share it.
func stateKey(cfg *config.Config) string {
	return stack.IdentityFrom(cfg).String()
}

// unsetAccessKey stands in for the node access key when rendering without
// credentials.
var unsetAccessKey = "@@" + bootstrap.AccessKeyEnv + "@@"

// buildInput assembles everything the stack builder needs from cfg. With
// withKey unset no credential is required and the node access key is
// rendered as a placeholder.
func buildInput(cfg *config.Config, timeouts *config.Timeouts, withKey bool) (stack.Input, error) {
	id := stack.IdentityFrom(cfg)
	artifacts, err := stack.Artifacts(id, cfg)
	if err != nil {
		return stack.Input{}, fmt.Errorf("failed to prepare bootstrap artifacts: %w", err)
	}
	in := stack.Input{Identity: id, Config: cfg, Artifacts: artifacts, Timeouts: timeouts}
	in.NodeAccessKey, err = lookupCredential(config.CredentialNodeAccess)
	if err != nil {
		if withKey {
			return stack.Input{}, err
		}
		in.NodeAccessKey = unsetAccessKey
	}
	if withKey {
		if in.SSHPublicKey, err = publicKey(cfg); err != nil {
			return stack.Input{}, err
		}
	}
	return in, nil
}

// publicKey returns the remote-session key, generating a pair under keyDir
// when the config does not name one.
func publicKey(cfg *config.Config) ([]byte, error) {
	if cfg.Access.SSHPublicKeyPath != "" {
		return keygen.ReadPublicKey(cfg.Access.SSHPublicKeyPath)
	}
	return keygen.EnsureKeyPair(filepath.Join(keyDir, cfg.Stack+"_ed25519"), "nodeforge@"+cfg.Stack)
}

// defaultBackends wires the Hetzner, Cloudflare and object storage realizers
// into one registry and opens the configured state store.
func defaultBackends(ctx context.Context, cfg *config.Config, timeouts *config.Timeouts) (*backends, error) {
	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, err
	}

	objects, err := s3.NewClient(cfg.ContentStore.Endpoint, cfg.ContentStore.Region, creds.S3AccessKey, creds.S3SecretKey)
	if err != nil {
		return nil, err
	}

	dns := cloudflare.NewClient(creds.CloudflareToken,
		cloudflare.WithRetry(timeouts.RetryMaxAttempts, timeouts.RetryInitialDelay))
	accountKey, err := acme.EnsureAccountKey(config.DefaultACMEAccountKey)
	if err != nil {
		return nil, err
	}
	issuer := acme.NewIssuer(acme.NewClient(accountKey, cfg.Edge.CertificateAuthority), dns,
		acme.WithEmail(cfg.Edge.CertificateEmail),
		acme.WithPropagation(timeouts.CertificatePoll, timeouts.CertificateIssuance/2),
	)

	reg := provisioning.NewRegistry()
	hcloud.Register(reg, hcloud.NewRealClient(creds.HCloudToken,
		hcloud.WithTimeouts(timeouts),
		hcloud.WithUserDataSecrets(bootstrap.Substitutions(creds.NodeSecretKey)),
		hcloud.WithCertificateSource(issuer),
	))
	cloudflare.Register(reg, dns)
	s3.Register(reg, objects)

	store, err := openStore(ctx, cfg, objects)
	if err != nil {
		return nil, err
	}
	return &backends{provider: reg, store: store}, nil
}

func openStore(ctx context.Context, cfg *config.Config, objects *s3.Client) (state.Store, error) {
	switch cfg.State.Backend {
	case config.StateBackendS3:
		// The state bucket has to exist before the first lease is taken.
		if err := objects.EnsureBucket(ctx, cfg.State.Bucket); err != nil {
			return nil, fmt.Errorf("failed to prepare state bucket: %w", err)
		}
		return state.NewS3Store(objects, cfg.State.Bucket, cfg.State.Prefix), nil
	default:
		store, err := state.OpenSQLite(cfg.State.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// checkProvider fails early when the provider cannot realize every kind g
// declares.
func checkProvider(p provisioning.Provider, g *graph.Graph) error {
	reg, ok := p.(*provisioning.Registry)
	if !ok {
		return nil
	}
	if missing := reg.Missing(g); len(missing) > 0 {
		return fmt.Errorf("no realizer for kinds %v", missing)
	}
	return nil
}
