package membership

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/bandvault/core/pkg/bverr"
)

// LoadChain reads a Chain from a local JSON file. A missing file is not an
// error: it returns an empty Chain, the natural starting point before the
// founder's first self-Add.
//
// The chain is not part of the bucket key schema (§4.8 lists heads,
// changes, images, and shares only): it is read-mostly, copy-on-write
// state transferred out of band (typically alongside a devicelink payload
// when inviting a new device), so persistence here is a plain local file
// rather than a synced bucket key.
func LoadChain(path string) (*Chain, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Chain{}, nil
	}
	if err != nil {
		return nil, bverr.Wrap(bverr.Storage, "read membership chain file", err)
	}
	var c Chain
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, bverr.Wrap(bverr.Storage, "parse membership chain file", err)
	}
	return &c, nil
}

// SaveChain writes c to path atomically via a temp file plus rename.
func SaveChain(path string, c *Chain) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return bverr.Wrap(bverr.Storage, "create membership chain directory", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return bverr.Wrap(bverr.Storage, "marshal membership chain", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return bverr.Wrap(bverr.Storage, "write membership chain file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return bverr.Wrap(bverr.Storage, "rename membership chain file", err)
	}
	return nil
}
