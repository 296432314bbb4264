package keygen

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// KeyPair holds an SSH key pair in ready-to-use formats.
type KeyPair struct {
	// PrivateKey is the private key in OpenSSH PEM format.
	PrivateKey []byte
	// PublicKey is the public key in OpenSSH authorized_keys format.
	PublicKey []byte
}

// GenerateEd25519KeyPair generates a new key pair. comment ends up in the
// private key and is usually the stack name.
func GenerateEd25519KeyPair(comment string) (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return nil, fmt.Errorf("failed to encode private key: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH public key: %w", err)
	}

	return &KeyPair{
		PrivateKey: pem.EncodeToMemory(block),
		PublicKey:  ssh.MarshalAuthorizedKey(sshPub),
	}, nil
}

// ReadPublicKey reads and validates an authorized_keys formatted key.
func ReadPublicKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	if _, _, _, _, err := ssh.ParseAuthorizedKey(data); err != nil {
		return nil, fmt.Errorf("invalid public key %s: %w", path, err)
	}
	return data, nil
}

// EnsureKeyPair returns the public key stored at privatePath+".pub",
// generating and writing a new pair when neither file exists.
func EnsureKeyPair(privatePath, comment string) ([]byte, error) {
	pubPath := privatePath + ".pub"
	pub, err := ReadPublicKey(pubPath)
	if err == nil {
		return pub, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if _, err := os.Stat(privatePath); err == nil {
		return nil, fmt.Errorf("private key %s exists without %s", privatePath, pubPath)
	}

	pair, err := GenerateEd25519KeyPair(comment)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(privatePath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(privatePath, pair.PrivateKey, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(pubPath, pair.PublicKey, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write public key: %w", err)
	}
	return pair.PublicKey, nil
}
