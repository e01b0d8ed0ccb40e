package cloudhome

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/bandvault/core/pkg/bverr"
)

func TestLocalFSWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	data := []byte("hello cloud-home")
	if err := fs.Write(ctx, "changes/device-a/0001.env", bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("write: %v", err)
	}

	rc, err := fs.Read(ctx, "changes/device-a/0001.env")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("readall: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}

func TestLocalFSReadMissingIsNotFound(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = fs.Read(context.Background(), "nope")
	if !bverr.Is(err, bverr.NotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestLocalFSDeleteMissingIsNotAnError(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := fs.Delete(context.Background(), "nope"); err != nil {
		t.Fatalf("delete missing key: %v", err)
	}
}

func TestLocalFSListNonexistentPrefixIsEmpty(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	keys, err := fs.List(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("keys = %v, want empty", keys)
	}
}

func TestLocalFSListIsSortedAndSlashSeparated(t *testing.T) {
	ctx := context.Background()
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"storage/ab/cd/z", "storage/ab/cd/a", "storage/ab/ef/b"} {
		if err := fs.Write(ctx, key, bytes.NewReader([]byte("x")), 1); err != nil {
			t.Fatalf("write %q: %v", key, err)
		}
	}
	keys, err := fs.List(ctx, "storage")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"storage/ab/cd/a", "storage/ab/cd/z", "storage/ab/ef/b"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("keys[%d] = %q, want %q", i, keys[i], k)
		}
	}
}

func TestLocalFSReadRange(t *testing.T) {
	ctx := context.Background()
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	data := []byte("0123456789")
	if err := fs.Write(ctx, "k", bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("write: %v", err)
	}
	rc, err := fs.ReadRange(ctx, "k", 2, 5)
	if err != nil {
		t.Fatalf("read range: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("readall: %v", err)
	}
	if string(got) != "234" {
		t.Fatalf("got %q, want %q", got, "234")
	}
}

func TestLocalFSExistsDistinguishesDirectories(t *testing.T) {
	ctx := context.Background()
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := fs.Write(ctx, "storage/ab/cd/file1", bytes.NewReader([]byte("x")), 1); err != nil {
		t.Fatalf("write: %v", err)
	}
	ok, err := fs.Exists(ctx, "storage/ab/cd/file1")
	if err != nil || !ok {
		t.Fatalf("exists(file) = %v, %v, want true, nil", ok, err)
	}
	ok, err = fs.Exists(ctx, "storage/ab")
	if err != nil || ok {
		t.Fatalf("exists(dir) = %v, %v, want false, nil", ok, err)
	}
}
