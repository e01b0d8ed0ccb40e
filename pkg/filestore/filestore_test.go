package filestore

import (
	"context"
	"testing"

	"github.com/bandvault/core/pkg/cloudhome"
	"github.com/bandvault/core/pkg/cryptocodec"
	"github.com/bandvault/core/pkg/store"
)

type fakeInserter struct {
	inserted []store.File
}

func (f *fakeInserter) InsertFile(_ context.Context, file store.File) error {
	f.inserted = append(f.inserted, file)
	return nil
}

func testLibraryKey() []byte {
	key := make([]byte, cryptocodec.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func readBlob(t *testing.T, backend cloudhome.Backend, key string) []byte {
	t.Helper()
	r, err := backend.Read(context.Background(), key)
	if err != nil {
		t.Fatalf("read %q: %v", key, err)
	}
	defer r.Close()
	buf := make([]byte, 0, 1024)
	tmp := make([]byte, 256)
	for {
		n, err := r.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if err != nil {
			break
		}
	}
	return buf
}

func TestStoreUnencryptedRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend, err := cloudhome.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}
	ins := &fakeInserter{}
	data := []byte("plain audio bytes")

	id, err := ins.store(ctx, t, backend, data, StorageProfile{}, nil)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	got := readBlob(t, backend, StoragePath(id))
	if string(got) != string(data) {
		t.Fatalf("stored blob mismatch: got %q want %q", got, data)
	}
	if len(ins.inserted) != 1 {
		t.Fatalf("expected 1 inserted file row, got %d", len(ins.inserted))
	}
	row := ins.inserted[0]
	if row.EncryptionScheme != store.EncryptionMaster {
		t.Fatalf("expected default scheme %q, got %q", store.EncryptionMaster, row.EncryptionScheme)
	}
	if row.EncryptionNonce != nil {
		t.Fatalf("expected no nonce for unencrypted file, got %v", *row.EncryptionNonce)
	}
}

func TestStoreMasterEncryptedRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend, err := cloudhome.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}
	ins := &fakeInserter{}
	libKey := testLibraryKey()
	data := []byte("master-encrypted audio bytes")

	id, err := ins.store(ctx, t, backend, data, StorageProfile{Encrypted: true}, libKey)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	row := ins.inserted[0]
	if row.EncryptionScheme != store.EncryptionMaster {
		t.Fatalf("expected scheme %q, got %q", store.EncryptionMaster, row.EncryptionScheme)
	}
	if row.EncryptionNonce == nil {
		t.Fatalf("expected a nonce to be recorded")
	}

	ciphertext := readBlob(t, backend, StoragePath(id))
	plaintext, err := cryptocodec.Decrypt(libKey, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt with library key: %v", err)
	}
	if string(plaintext) != string(data) {
		t.Fatalf("decrypted mismatch: got %q want %q", plaintext, data)
	}

	if _, err := cryptocodec.Decrypt(append([]byte{}, libKey[1:]...), ciphertext); err == nil {
		t.Fatalf("expected decrypt failure with a wrong key")
	}
}

func TestStoreDerivedEncryptedRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend, err := cloudhome.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}
	ins := &fakeInserter{}
	libKey := testLibraryKey()
	releaseID := "release-1234"
	data := []byte("derived-key-encrypted audio bytes")

	id, err := Store(ctx, backend, ins, libKey, releaseID, "track.flac", data,
		StorageProfile{Encrypted: true, UseDerivedKey: true}, "t1", "t1", nil)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	row := ins.inserted[0]
	if row.EncryptionScheme != store.EncryptionDerived {
		t.Fatalf("expected scheme %q, got %q", store.EncryptionDerived, row.EncryptionScheme)
	}

	ciphertext := readBlob(t, backend, StoragePath(id))

	// The library master key alone must not decrypt a derived-scheme blob.
	if _, err := cryptocodec.Decrypt(libKey, ciphertext); err == nil {
		t.Fatalf("expected decrypt with bare library key to fail for derived scheme")
	}

	subkey, err := cryptocodec.DeriveReleaseSubkey(libKey, releaseID)
	if err != nil {
		t.Fatalf("DeriveReleaseSubkey: %v", err)
	}
	plaintext, err := cryptocodec.Decrypt(subkey, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt with derived subkey: %v", err)
	}
	if string(plaintext) != string(data) {
		t.Fatalf("decrypted mismatch: got %q want %q", plaintext, data)
	}
}

func TestStoreProgressReachesTotal(t *testing.T) {
	ctx := context.Background()
	backend, err := cloudhome.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}
	ins := &fakeInserter{}
	data := make([]byte, batchSize*2+17)
	for i := range data {
		data[i] = byte(i)
	}

	var lastWritten, lastTotal int
	calls := 0
	_, err = Store(ctx, backend, ins, nil, "release-1", "big.wav", data, StorageProfile{}, "t1", "t1",
		func(written, total int) {
			calls++
			lastWritten, lastTotal = written, total
		})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if calls == 0 {
		t.Fatalf("expected onProgress to be called at least once")
	}
	if lastTotal != len(data) {
		t.Fatalf("expected final total %d, got %d", len(data), lastTotal)
	}
	if lastWritten != lastTotal {
		t.Fatalf("expected final progress to reach total: got %d want %d", lastWritten, lastTotal)
	}
}

// store is a small test helper that threads testLibraryKey's caller-provided
// key (or none) through Store with fixed release/filename/timestamp args.
func (f *fakeInserter) store(ctx context.Context, t *testing.T, backend cloudhome.Backend, data []byte, profile StorageProfile, libKey []byte) (string, error) {
	t.Helper()
	return Store(ctx, backend, f, libKey, "release-1", "track.flac", data, profile, "t1", "t1", nil)
}
