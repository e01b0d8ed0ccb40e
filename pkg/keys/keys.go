// Package keys owns per-device Ed25519 identity and the library symmetric
// key, exposing signing, verification, and a key fingerprint.
package keys

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/bandvault/core/pkg/bverr"
)

const (
	// SignPublicKeyBytes is the Ed25519 public key length.
	SignPublicKeyBytes = ed25519.PublicKeySize
	// SignBytes is the Ed25519 signature length.
	SignBytes = ed25519.SignatureSize
	// LibraryKeyBytes is the symmetric library key length.
	LibraryKeyBytes = 32
)

// Identity is a device's Ed25519 keypair.
type Identity struct {
	DeviceID   string
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// SecretStore persists device identity and the library key. The concrete
// backend (OS keyring, encrypted file, ...) is an external collaborator;
// bandvault only depends on this narrow interface, the same way the
// teacher keeps side-effecting I/O behind a small interface
// (pkg/objstore.ObjectStore).
type SecretStore interface {
	LoadIdentity(ctx context.Context) (*Identity, error)
	SaveIdentity(ctx context.Context, id *Identity) error
	LoadLibraryKey(ctx context.Context) ([]byte, error)
	SaveLibraryKey(ctx context.Context, key []byte) error
}

// Service implements C1: device identity, signing, and library key access.
type Service struct {
	store SecretStore
}

// NewService returns a Service backed by store.
func NewService(store SecretStore) *Service {
	return &Service{store: store}
}

// LoadOrGenerateIdentity returns the device's persisted identity, generating
// and persisting a fresh Ed25519 keypair on first use.
func (s *Service) LoadOrGenerateIdentity(ctx context.Context, deviceID string) (*Identity, error) {
	id, err := s.store.LoadIdentity(ctx)
	if err == nil && id != nil {
		return id, nil
	}
	if err != nil && !bverr.Is(err, bverr.NotFound) {
		return nil, bverr.Wrap(bverr.KeyManagement, "load identity", err)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, bverr.Wrap(bverr.KeyManagement, "generate identity", err)
	}
	fresh := &Identity{DeviceID: deviceID, PublicKey: pub, PrivateKey: priv}
	if err := s.store.SaveIdentity(ctx, fresh); err != nil {
		return nil, bverr.Wrap(bverr.KeyManagement, "persist identity", err)
	}
	return fresh, nil
}

// LoadLibraryKey returns the library's symmetric key.
func (s *Service) LoadLibraryKey(ctx context.Context) ([]byte, error) {
	key, err := s.store.LoadLibraryKey(ctx)
	if err != nil {
		return nil, bverr.Wrap(bverr.KeyManagement, "load library key", err)
	}
	if len(key) != LibraryKeyBytes {
		return nil, bverr.New(bverr.KeyManagement, fmt.Sprintf("library key has %d bytes, want %d", len(key), LibraryKeyBytes))
	}
	return key, nil
}

// Sign signs msg with id's private key.
func Sign(id *Identity, msg []byte) []byte {
	return ed25519.Sign(id.PrivateKey, msg)
}

// Verify reports whether sig is a valid Ed25519 signature over msg under pubkey.
func Verify(pubkey ed25519.PublicKey, msg, sig []byte) bool {
	if len(pubkey) != SignPublicKeyBytes || len(sig) != SignBytes {
		return false
	}
	return ed25519.Verify(pubkey, msg, sig)
}

// ComputeKeyFingerprint returns the first 16 hex characters of SHA-256(key),
// used by the unlock flow to assert a pasted recovery key matches the
// library's configured key before writing it to the secret store.
func ComputeKeyFingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:])[:16]
}
