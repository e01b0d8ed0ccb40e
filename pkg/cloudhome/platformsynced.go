package cloudhome

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/bandvault/core/pkg/bverr"
)

// PlatformSynced is a cloud-home backend over a directory maintained by an
// external platform sync daemon (iCloud Drive, Dropbox, OneDrive, ...). Its
// read/write/list/delete semantics are identical to a plain local
// directory; the distinguishing behaviour is that files can appear or
// change without any write happening through this process, so callers
// can use NewWatcher and Watcher.Run to notice arrivals instead of polling.
type PlatformSynced struct {
	*LocalFS
}

// NewPlatformSynced returns a PlatformSynced backend rooted at root, the
// directory the external sync daemon manages.
func NewPlatformSynced(root string) (*PlatformSynced, error) {
	fs, err := NewLocalFS(root)
	if err != nil {
		return nil, err
	}
	return &PlatformSynced{LocalFS: fs}, nil
}

// GrantAccess is managed by the external sync daemon (e.g. sharing an
// iCloud Drive folder); this process has no API to drive it.
func (p *PlatformSynced) GrantAccess(context.Context, string) (JoinInfo, error) {
	return JoinInfo{}, bverr.New(bverr.Storage, "managed externally")
}

func (p *PlatformSynced) RevokeAccess(context.Context, string) error {
	return bverr.New(bverr.Storage, "managed externally")
}

// Watcher notifies a callback whenever the external sync daemon drops or
// changes a file under the platform-synced root, so the sync orchestrator
// can react instead of polling on a timer.
type Watcher struct {
	fsw *fsnotify.Watcher
	root string
}

// NewWatcher starts watching root (and the subdirectories that exist
// directly under it when the watch starts, such as heads/, changes/ and
// images/) for filesystem events raised by the external sync daemon.
// Deeper directories, and directories created after the watch starts,
// are not watched.
func NewWatcher(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, bverr.Wrap(bverr.Storage, "create fsnotify watcher", err)
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, bverr.Wrap(bverr.Storage, "watch root", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		fsw.Close()
		return nil, bverr.Wrap(bverr.Storage, "read root", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if err := fsw.Add(filepath.Join(root, e.Name())); err != nil {
			fsw.Close()
			return nil, bverr.Wrap(bverr.Storage, "watch subdirectory", err)
		}
	}
	return &Watcher{fsw: fsw, root: root}, nil
}

// Run delivers relative keys for created or written files to onArrival
// until ctx is cancelled. Directory events and removals are ignored: the
// orchestrator only cares about new or updated blobs to pull.
func (w *Watcher) Run(ctx context.Context, onArrival func(key string)) {
	for {
		select {
		case <-ctx.Done():
			w.fsw.Close()
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
				continue
			}
			key := ev.Name
			if rel, err := filepath.Rel(w.root, ev.Name); err == nil {
				key = filepath.ToSlash(rel)
			}
			onArrival(key)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("platform-synced watch error", "root", w.root, "error", err)
		}
	}
}

var _ Backend = (*PlatformSynced)(nil)
