package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service credentials are stored under.
const KeyringService = "nodeforge"

// Credential names a secret nodeforge needs to talk to a provider.
type Credential string

const (
	CredentialHCloud     Credential = "hcloud"
	CredentialCloudflare Credential = "cloudflare"
	CredentialS3Access   Credential = "s3-access-key"
	CredentialS3Secret   Credential = "s3-secret-key"
	// The node pair is the object-storage key the instance itself uses to
	// fetch its assets and ship logs.
	CredentialNodeAccess Credential = "node-access-key"
	CredentialNodeSecret Credential = "node-secret-key"
)

// ErrCredentialNotFound is returned when a credential is neither in the
// environment nor in the keyring.
var ErrCredentialNotFound = errors.New("credential not found")

var credentialEnv = map[Credential]string{
	CredentialHCloud:     "HCLOUD_TOKEN",
	CredentialCloudflare: "CLOUDFLARE_API_TOKEN",
	CredentialS3Access:   "NODEFORGE_S3_ACCESS_KEY",
	CredentialS3Secret:   "NODEFORGE_S3_SECRET_KEY",
	CredentialNodeAccess: "NODEFORGE_NODE_ACCESS_KEY",
	CredentialNodeSecret: "NODEFORGE_NODE_SECRET_KEY",
}

// AllCredentials lists every credential in a stable order.
var AllCredentials = []Credential{
	CredentialHCloud, CredentialCloudflare,
	CredentialS3Access, CredentialS3Secret,
	CredentialNodeAccess, CredentialNodeSecret,
}

// EnvVar returns the environment variable that overrides the keyring.
func (c Credential) EnvVar() string {
	return credentialEnv[c]
}

// ParseCredential maps a user-supplied name to a Credential.
func ParseCredential(name string) (Credential, error) {
	c := Credential(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := credentialEnv[c]; !ok {
		return "", fmt.Errorf("unknown credential %q (one of %v)", name, AllCredentials)
	}
	return c, nil
}

// Credentials holds the provider secrets for one run.
type Credentials struct {
	HCloudToken     string
	CloudflareToken string
	S3AccessKey     string
	S3SecretKey     string
	NodeAccessKey   string
	NodeSecretKey   string
}

// LookupCredential returns the credential from the environment, falling
// back to the OS keyring.
func LookupCredential(c Credential) (string, error) {
	if v := os.Getenv(c.EnvVar()); v != "" {
		return v, nil
	}
	v, err := keyring.Get(KeyringService, string(c))
	if err == nil {
		return v, nil
	}
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: %s (set %s or run 'nodeforge auth set %s')", ErrCredentialNotFound, c, c.EnvVar(), c)
	}
	return "", fmt.Errorf("failed to read %s from keyring: %w", c, err)
}

// StoreCredential saves a credential in the OS keyring.
func StoreCredential(c Credential, value string) error {
	if value == "" {
		return fmt.Errorf("refusing to store empty %s", c)
	}
	if err := keyring.Set(KeyringService, string(c), value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", c, err)
	}
	return nil
}

// DeleteCredential removes a credential from the OS keyring.
func DeleteCredential(c Credential) error {
	err := keyring.Delete(KeyringService, string(c))
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrCredentialNotFound, c)
	}
	return err
}

// LoadCredentials resolves every credential and reports all missing ones
// at once.
func LoadCredentials() (*Credentials, error) {
	values := make(map[Credential]string, len(AllCredentials))
	var errs []error
	for _, c := range AllCredentials {
		v, err := LookupCredential(c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		values[c] = v
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Credentials{
		HCloudToken:     values[CredentialHCloud],
		CloudflareToken: values[CredentialCloudflare],
		S3AccessKey:     values[CredentialS3Access],
		S3SecretKey:     values[CredentialS3Secret],
		NodeAccessKey:   values[CredentialNodeAccess],
		NodeSecretKey:   values[CredentialNodeSecret],
	}, nil
}
