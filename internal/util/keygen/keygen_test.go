package keygen

import (
	"bytes"
	"crypto/ed25519"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
)

func TestGenerateEd25519KeyPair_Formats(t *testing.T) {
	t.Parallel()
	keyPair, err := GenerateEd25519KeyPair("eth")
	if err != nil {
		t.Fatalf("GenerateEd25519KeyPair failed: %v", err)
	}

	block, _ := pem.Decode(keyPair.PrivateKey)
	if block == nil {
		t.Fatal("failed to decode PEM block")
	}
	if block.Type != "OPENSSH PRIVATE KEY" { //nolint:staticcheck // t.Fatal above ensures block is not nil
		t.Errorf("expected PEM type 'OPENSSH PRIVATE KEY', got %q", block.Type)
	}

	pubKeyStr := string(keyPair.PublicKey)
	if !strings.HasPrefix(pubKeyStr, "ssh-ed25519 ") {
		t.Errorf("public key should start with 'ssh-ed25519 ', got %q", pubKeyStr)
	}
	if !strings.HasSuffix(pubKeyStr, "\n") {
		t.Error("public key should end with newline")
	}
}

func TestGenerateEd25519KeyPair_KeyPairCorrespondence(t *testing.T) {
	t.Parallel()
	keyPair, err := GenerateEd25519KeyPair("eth")
	if err != nil {
		t.Fatalf("GenerateEd25519KeyPair failed: %v", err)
	}

	raw, err := ssh.ParseRawPrivateKey(keyPair.PrivateKey)
	if err != nil {
		t.Fatalf("failed to parse private key: %v", err)
	}
	priv, ok := raw.(*ed25519.PrivateKey)
	if !ok {
		t.Fatalf("expected *ed25519.PrivateKey, got %T", raw)
	}

	expected, err := ssh.NewPublicKey(priv.Public())
	if err != nil {
		t.Fatalf("failed to derive public key: %v", err)
	}
	parsed, _, _, _, err := ssh.ParseAuthorizedKey(keyPair.PublicKey)
	if err != nil {
		t.Fatalf("failed to parse public key: %v", err)
	}
	if !bytes.Equal(parsed.Marshal(), expected.Marshal()) {
		t.Error("public key does not correspond to private key")
	}
}

func TestEnsureKeyPair_GeneratesOnceThenReuses(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "keys", "id_ed25519")

	first, err := EnsureKeyPair(path, "eth")
	if err != nil {
		t.Fatalf("EnsureKeyPair failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("private key not written: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected private key mode 0600, got %v", info.Mode().Perm())
	}

	second, err := EnsureKeyPair(path, "eth")
	if err != nil {
		t.Fatalf("second EnsureKeyPair failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("existing key pair should be reused")
	}
}

func TestEnsureKeyPair_PrivateWithoutPublic(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, []byte("secret"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := EnsureKeyPair(path, "eth"); err == nil {
		t.Error("expected an error when only the private key exists")
	}
}

func TestReadPublicKey_Invalid(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.pub")
	if err := os.WriteFile(path, []byte("not a key"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadPublicKey(path); err == nil {
		t.Error("expected an error for an invalid key")
	}
}
