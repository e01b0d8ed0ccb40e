// Package attribution maps Ed25519 public keys to display names. The
// mapping is local-only and never synced: each device assigns its own
// names, typically during invitation, falling back to a truncated pubkey
// for anyone it hasn't named yet.
package attribution

import (
	"sync"

	"github.com/bandvault/core/pkg/membership"
)

// Map is a pubkey-hex to display-name lookup, guarded by its own lock since
// it is shared process-local state that is never part of the synced
// metadata database (see spec's concurrency model).
type Map struct {
	mu    sync.RWMutex
	names map[string]string
}

// New returns an empty Map.
func New() *Map {
	return &Map{names: map[string]string{}}
}

// truncatedPubkey renders a pubkey hex string as "aabb...1122". Short
// inputs (<=12 chars) are returned unchanged rather than truncated into
// something shorter than the input.
func truncatedPubkey(pubkeyHex string) string {
	if len(pubkeyHex) <= 12 {
		return pubkeyHex
	}
	return pubkeyHex[:4] + "..." + pubkeyHex[len(pubkeyHex)-4:]
}

// SetName assigns a display name to a public key.
func (m *Map) SetName(pubkeyHex, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names[pubkeyHex] = name
}

// GetName returns the assigned display name, if any.
func (m *Map) GetName(pubkeyHex string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.names[pubkeyHex]
	return name, ok
}

// DisplayName returns the assigned name if set, otherwise a truncated pubkey.
func (m *Map) DisplayName(pubkeyHex string) string {
	m.mu.RLock()
	name, ok := m.names[pubkeyHex]
	m.mu.RUnlock()
	if ok {
		return name
	}
	return truncatedPubkey(pubkeyHex)
}

// FromMembershipChain seeds a Map with truncated-pubkey names for every
// pubkey currently a member of chain, so a fresh device has something
// sensible to display before the user assigns real names.
func FromMembershipChain(chain *membership.Chain) *Map {
	m := New()
	for pubkey := range chain.AllMembers() {
		m.names[pubkey] = truncatedPubkey(pubkey)
	}
	return m
}
