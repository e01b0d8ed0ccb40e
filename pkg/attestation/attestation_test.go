package attestation

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/bandvault/core/pkg/bverr"
	"github.com/bandvault/core/pkg/keys"
)

var errNotFound = bverr.New(bverr.NotFound, "not found")

type memStore struct {
	identity *keys.Identity
}

func (m *memStore) LoadIdentity(ctx context.Context) (*keys.Identity, error) {
	if m.identity == nil {
		return nil, errNotFound
	}
	return m.identity, nil
}
func (m *memStore) SaveIdentity(ctx context.Context, id *keys.Identity) error {
	m.identity = id
	return nil
}
func (m *memStore) LoadLibraryKey(ctx context.Context) ([]byte, error)    { return nil, errNotFound }
func (m *memStore) SaveLibraryKey(ctx context.Context, key []byte) error { return nil }

func genIdentity(t *testing.T, deviceID string) *keys.Identity {
	t.Helper()
	svc := keys.NewService(&memStore{})
	id, err := svc.LoadOrGenerateIdentity(context.Background(), deviceID)
	if err != nil {
		t.Fatalf("LoadOrGenerateIdentity: %v", err)
	}
	return id
}

func TestCreateAndVerifyRoundTrip(t *testing.T) {
	id := genIdentity(t, "dev-a")
	a := Create("12345678-1234-1234-1234-123456789012", "aabbccdd", "content_hash_hex", "FLAC", id, "2026-02-10T14:30:00Z")
	if err := Verify(a); err != nil {
		t.Fatalf("expected valid attestation to verify, got %v", err)
	}
}

func TestTamperedAttestationFailsVerification(t *testing.T) {
	id := genIdentity(t, "dev-a")
	a := Create("12345678-1234-1234-1234-123456789012", "aabbccdd", "content_hash_hex", "FLAC", id, "2026-02-10T14:30:00Z")
	a.Format = "MP3 320"
	if err := Verify(a); err == nil {
		t.Fatal("expected tampered attestation to fail verification")
	}
}

func TestWrongKeyFailsVerification(t *testing.T) {
	id1 := genIdentity(t, "dev-a")
	id2 := genIdentity(t, "dev-b")
	a := Create("mbid", "infohash", "content_hash", "FLAC", id1, "2026-02-10T14:30:00Z")
	a.AuthorPubkey = hex.EncodeToString(id2.PublicKey)
	if err := Verify(a); err == nil {
		t.Fatal("expected wrong-key attestation to fail verification")
	}
}

func TestCanonicalBytesIsDeterministicAndExcludesSignature(t *testing.T) {
	a := Attestation{
		MBID:         "mbid-1",
		Infohash:     "infohash-1",
		ContentHash:  "ch-1",
		Format:       "FLAC",
		AuthorPubkey: "aabb",
		Timestamp:    "2026-01-01T00:00:00Z",
		Signature:    "does-not-matter",
	}
	b1 := CanonicalBytes(a)
	b2 := CanonicalBytes(a)
	if string(b1) != string(b2) {
		t.Fatal("expected canonical bytes to be deterministic")
	}

	a2 := a
	a2.Signature = "something-else"
	if string(CanonicalBytes(a2)) != string(b1) {
		t.Fatal("expected signature field to be excluded from canonical bytes")
	}
}

func TestContentHashDeterminismAndOrderSensitivity(t *testing.T) {
	hashes := []string{
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"d7a8fbb307d7809469ca9abcb0082e4f8d5651e46d3cdb762d02d0bf37c9e592",
	}
	h1, err := ComputeContentHash(hashes)
	if err != nil {
		t.Fatalf("ComputeContentHash: %v", err)
	}
	h2, err := ComputeContentHash(hashes)
	if err != nil {
		t.Fatalf("ComputeContentHash: %v", err)
	}
	if h1 != h2 {
		t.Fatal("expected content hash to be deterministic")
	}

	reversed := []string{hashes[1], hashes[0]}
	h3, err := ComputeContentHash(reversed)
	if err != nil {
		t.Fatalf("ComputeContentHash: %v", err)
	}
	if h1 == h3 {
		t.Fatal("expected content hash to change with file order")
	}
}
