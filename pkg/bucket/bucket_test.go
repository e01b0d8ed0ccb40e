package bucket

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/bandvault/core/pkg/cloudhome"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestPutHeadListHeadsRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend, err := cloudhome.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}
	c := New(backend, testKey(t))

	if err := c.PutHead(ctx, Head{DeviceID: "dev-a", Seq: 3, Timestamp: "t1"}); err != nil {
		t.Fatalf("PutHead: %v", err)
	}
	if err := c.PutHead(ctx, Head{DeviceID: "dev-b", Seq: 7, Timestamp: "t2"}); err != nil {
		t.Fatalf("PutHead: %v", err)
	}

	heads, err := c.ListHeads(ctx)
	if err != nil {
		t.Fatalf("ListHeads: %v", err)
	}
	if len(heads) != 2 {
		t.Fatalf("expected 2 heads, got %d", len(heads))
	}
}

func TestChangesetRoundTripIsEncryptedAtRest(t *testing.T) {
	ctx := context.Background()
	backend, err := cloudhome.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}
	c := New(backend, testKey(t))

	plaintext := []byte("packed envelope bytes")
	if err := c.PutChangeset(ctx, "dev-a", 1, plaintext); err != nil {
		t.Fatalf("PutChangeset: %v", err)
	}

	r, err := backend.Read(ctx, changesetKey("dev-a", 1))
	if err != nil {
		t.Fatalf("backend.Read: %v", err)
	}
	raw, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		t.Fatalf("read stored changeset: %v", err)
	}
	if bytes.Contains(raw, plaintext) {
		t.Fatal("stored changeset blob contains the plaintext")
	}

	got, err := c.GetChangeset(ctx, "dev-a", 1)
	if err != nil {
		t.Fatalf("GetChangeset: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestImageRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend, err := cloudhome.NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}
	c := New(backend, testKey(t))

	data := []byte("fake jpeg bytes")
	if err := c.UploadImage(ctx, "img-1", data); err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	got, err := c.DownloadImage(ctx, "img-1")
	if err != nil {
		t.Fatalf("DownloadImage: %v", err)
	}
	if string(got) != string(data) {
		t.Fatalf("round trip mismatch: got %q want %q", got, data)
	}
}
