package keys

import (
	"context"
	"testing"

	"github.com/bandvault/core/pkg/bverr"
)

type memStore struct {
	id  *Identity
	key []byte
}

func (m *memStore) LoadIdentity(ctx context.Context) (*Identity, error) {
	if m.id == nil {
		return nil, bverr.New(bverr.NotFound, "identity")
	}
	return m.id, nil
}

func (m *memStore) SaveIdentity(ctx context.Context, id *Identity) error {
	m.id = id
	return nil
}

func (m *memStore) LoadLibraryKey(ctx context.Context) ([]byte, error) {
	if m.key == nil {
		return nil, bverr.New(bverr.NotFound, "library key")
	}
	return m.key, nil
}

func (m *memStore) SaveLibraryKey(ctx context.Context, key []byte) error {
	m.key = key
	return nil
}

func TestLoadOrGenerateIdentityPersists(t *testing.T) {
	store := &memStore{}
	svc := NewService(store)

	first, err := svc.LoadOrGenerateIdentity(context.Background(), "device-a")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(first.PublicKey) != SignPublicKeyBytes {
		t.Fatalf("public key len = %d, want %d", len(first.PublicKey), SignPublicKeyBytes)
	}

	second, err := svc.LoadOrGenerateIdentity(context.Background(), "device-a")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if string(second.PublicKey) != string(first.PublicKey) {
		t.Fatal("reload generated a different identity instead of reusing the persisted one")
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	store := &memStore{}
	svc := NewService(store)
	id, err := svc.LoadOrGenerateIdentity(context.Background(), "device-a")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	msg := []byte("hello bandvault")
	sig := Sign(id, msg)
	if !Verify(id.PublicKey, msg, sig) {
		t.Fatal("valid signature failed to verify")
	}
	if Verify(id.PublicKey, []byte("tampered"), sig) {
		t.Fatal("signature verified over the wrong message")
	}
}

func TestComputeKeyFingerprintIsStableAndShort(t *testing.T) {
	key := make([]byte, LibraryKeyBytes)
	for i := range key {
		key[i] = byte(i)
	}
	fp1 := ComputeKeyFingerprint(key)
	fp2 := ComputeKeyFingerprint(key)
	if fp1 != fp2 {
		t.Fatal("fingerprint is not deterministic")
	}
	if len(fp1) != 16 {
		t.Fatalf("fingerprint length = %d, want 16", len(fp1))
	}

	key[0] ^= 0xFF
	if ComputeKeyFingerprint(key) == fp1 {
		t.Fatal("fingerprint did not change for a different key")
	}
}
