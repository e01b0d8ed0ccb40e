package cloudhome

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bandvault/core/pkg/bverr"
)

// LocalFS is a cloud-home backend over a local filesystem directory.
type LocalFS struct {
	root string
}

// NewLocalFS returns a LocalFS backed by root. The directory is created if needed.
func NewLocalFS(root string) (*LocalFS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, bverr.Wrap(bverr.Storage, fmt.Sprintf("create cloud-home root %q", root), err)
	}
	return &LocalFS{root: root}, nil
}

func (l *LocalFS) path(key string) string {
	clean, err := normalizeKey(key)
	if err != nil {
		// Callers only ever pass keys this package itself derives (file IDs,
		// device IDs, sequence numbers); a traversal attempt here means a
		// caller bug, not untrusted input, so fall back to the raw join
		// rather than silently swallowing a key.
		return filepath.Join(l.root, filepath.FromSlash(key))
	}
	return filepath.Join(l.root, filepath.FromSlash(clean))
}

func (l *LocalFS) Write(_ context.Context, key string, r io.Reader, _ int64) error {
	dest := l.path(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return bverr.Wrap(bverr.Storage, "mkdir", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return bverr.Wrap(bverr.Storage, fmt.Sprintf("create %q", dest), err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return bverr.Wrap(bverr.Storage, fmt.Sprintf("write %q", dest), err)
	}
	return nil
}

func (l *LocalFS) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(l.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, bverr.New(bverr.NotFound, key)
		}
		return nil, bverr.Wrap(bverr.Storage, fmt.Sprintf("open %q", key), err)
	}
	return f, nil
}

func (l *LocalFS) ReadRange(_ context.Context, key string, start, endExclusive int64) (io.ReadCloser, error) {
	f, err := os.Open(l.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, bverr.New(bverr.NotFound, key)
		}
		return nil, bverr.Wrap(bverr.Storage, fmt.Sprintf("open %q", key), err)
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return nil, bverr.Wrap(bverr.Storage, fmt.Sprintf("seek %q", key), err)
	}
	return &limitedReadCloser{r: io.LimitReader(f, endExclusive-start), c: f}, nil
}

func (l *LocalFS) List(_ context.Context, prefix string) ([]string, error) {
	dir := ""
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		dir = prefix[:i]
	}
	root := l.path(dir)
	var keys []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		if key := filepath.ToSlash(rel); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, bverr.Wrap(bverr.Storage, fmt.Sprintf("list %q", prefix), err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (l *LocalFS) Delete(_ context.Context, key string) error {
	err := os.Remove(l.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return bverr.Wrap(bverr.Storage, fmt.Sprintf("delete %q", key), err)
	}
	return nil
}

func (l *LocalFS) Exists(_ context.Context, key string) (bool, error) {
	fi, err := os.Stat(l.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, bverr.Wrap(bverr.Storage, fmt.Sprintf("stat %q", key), err)
	}
	return !fi.IsDir(), nil
}

// GrantAccess is not supported for a bare local directory; callers manage
// filesystem permissions out of band.
func (l *LocalFS) GrantAccess(context.Context, string) (JoinInfo, error) {
	return JoinInfo{}, bverr.New(bverr.Storage, "managed externally")
}

// RevokeAccess is not supported for a bare local directory.
func (l *LocalFS) RevokeAccess(context.Context, string) error {
	return bverr.New(bverr.Storage, "managed externally")
}

type limitedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedReadCloser) Close() error               { return l.c.Close() }

var _ Backend = (*LocalFS)(nil)

// normalizeKey guards against path traversal escaping the root; path()
// uses it for every key before touching the filesystem.
func normalizeKey(key string) (string, error) {
	clean := filepath.ToSlash(filepath.Clean(key))
	if strings.HasPrefix(clean, "..") || strings.HasPrefix(clean, "/") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return clean, nil
}
