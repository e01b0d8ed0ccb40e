package keys

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bandvault/core/pkg/bverr"
)

// FileStore is a SecretStore backed by a single JSON file, written with
// 0600 permissions. LoadIdentity and LoadLibraryKey refuse to read a file
// whose mode has grown looser than that, the same defensive check the
// rest of the ecosystem's CLI state stores apply to on-disk secrets.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore reading and writing path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type secretFile struct {
	DeviceID   string `json:"device_id,omitempty"`
	PublicKey  string `json:"public_key,omitempty"`  // hex
	PrivateKey string `json:"private_key,omitempty"` // hex
	LibraryKey string `json:"library_key,omitempty"` // hex
}

func (f *FileStore) load() (secretFile, error) {
	var sf secretFile
	info, err := os.Stat(f.path)
	if os.IsNotExist(err) {
		return sf, bverr.New(bverr.NotFound, "secret file does not exist")
	}
	if err != nil {
		return sf, bverr.Wrap(bverr.KeyManagement, "stat secret file", err)
	}
	if mode := info.Mode().Perm(); mode&0077 != 0 {
		return sf, bverr.New(bverr.KeyManagement, fmt.Sprintf("secret file %s has mode %o, expected 0600", f.path, mode))
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return sf, bverr.Wrap(bverr.KeyManagement, "read secret file", err)
	}
	if err := json.Unmarshal(data, &sf); err != nil {
		return sf, bverr.Wrap(bverr.KeyManagement, "parse secret file", err)
	}
	return sf, nil
}

func (f *FileStore) save(sf secretFile) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return bverr.Wrap(bverr.KeyManagement, "create secret directory", err)
	}
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return bverr.Wrap(bverr.KeyManagement, "marshal secret file", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return bverr.Wrap(bverr.KeyManagement, "write secret file", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return bverr.Wrap(bverr.KeyManagement, "rename secret file", err)
	}
	return nil
}

// LoadIdentity reads the device's persisted Ed25519 identity.
func (f *FileStore) LoadIdentity(ctx context.Context) (*Identity, error) {
	sf, err := f.load()
	if err != nil {
		return nil, err
	}
	if sf.PublicKey == "" || sf.PrivateKey == "" {
		return nil, bverr.New(bverr.NotFound, "no identity in secret file")
	}
	pub, err := hex.DecodeString(sf.PublicKey)
	if err != nil || len(pub) != SignPublicKeyBytes {
		return nil, bverr.New(bverr.KeyManagement, "malformed public key in secret file")
	}
	priv, err := hex.DecodeString(sf.PrivateKey)
	if err != nil || len(priv) != ed25519.PrivateKeySize {
		return nil, bverr.New(bverr.KeyManagement, "malformed private key in secret file")
	}
	return &Identity{DeviceID: sf.DeviceID, PublicKey: ed25519.PublicKey(pub), PrivateKey: ed25519.PrivateKey(priv)}, nil
}

// SaveIdentity persists id, preserving any library key already on disk.
func (f *FileStore) SaveIdentity(ctx context.Context, id *Identity) error {
	sf, err := f.load()
	if err != nil && !bverr.Is(err, bverr.NotFound) {
		return err
	}
	sf.DeviceID = id.DeviceID
	sf.PublicKey = hex.EncodeToString(id.PublicKey)
	sf.PrivateKey = hex.EncodeToString(id.PrivateKey)
	return f.save(sf)
}

// LoadLibraryKey reads the persisted library symmetric key.
func (f *FileStore) LoadLibraryKey(ctx context.Context) ([]byte, error) {
	sf, err := f.load()
	if err != nil {
		return nil, err
	}
	if sf.LibraryKey == "" {
		return nil, bverr.New(bverr.NotFound, "no library key in secret file")
	}
	key, err := hex.DecodeString(sf.LibraryKey)
	if err != nil || len(key) != LibraryKeyBytes {
		return nil, bverr.New(bverr.KeyManagement, "malformed library key in secret file")
	}
	return key, nil
}

// SaveLibraryKey persists the library symmetric key, preserving any
// identity already on disk.
func (f *FileStore) SaveLibraryKey(ctx context.Context, key []byte) error {
	if len(key) != LibraryKeyBytes {
		return bverr.New(bverr.KeyManagement, fmt.Sprintf("library key must be %d bytes, got %d", LibraryKeyBytes, len(key)))
	}
	sf, err := f.load()
	if err != nil && !bverr.Is(err, bverr.NotFound) {
		return err
	}
	sf.LibraryKey = hex.EncodeToString(key)
	return f.save(sf)
}
