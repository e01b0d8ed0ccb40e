// Package membership is C9: the append-only signed membership chain that
// authorises which devices may publish changeset envelopes. There is no
// membership.rs in the reference sources this was grounded on; the chain
// invariants and current_members() fold below follow the architecture
// description directly, using the same canonical-JSON signing convention
// as pkg/attestation.
package membership

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bandvault/core/pkg/bverr"
	"github.com/bandvault/core/pkg/keys"
)

// Action names what a MembershipEntry does to the subject's membership.
type Action string

const (
	ActionAdd        Action = "add"
	ActionRemove     Action = "remove"
	ActionRoleChange Action = "role_change"
)

// Role is a member's authority level.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Entry is one signed record in the membership chain.
type Entry struct {
	Action        Action `json:"action"`
	SubjectPubkey string `json:"subject_pubkey"`
	Role          Role   `json:"role"`
	Timestamp     string `json:"timestamp"` // HLC string
	AuthorPubkey  string `json:"author_pubkey"`
	Signature     string `json:"signature"`
}

type canonicalFields struct {
	Action        Action `json:"action"`
	AuthorPubkey  string `json:"author_pubkey"`
	Role          Role   `json:"role"`
	SubjectPubkey string `json:"subject_pubkey"`
	Timestamp     string `json:"timestamp"`
}

// CanonicalBytes returns the deterministic serialization of every signed
// field except Signature, alphabetically sorted by key, matching the
// convention used by pkg/attestation and spec.md's envelope signing rule.
func CanonicalBytes(e Entry) []byte {
	c := canonicalFields{
		Action:        e.Action,
		AuthorPubkey:  e.AuthorPubkey,
		Role:          e.Role,
		SubjectPubkey: e.SubjectPubkey,
		Timestamp:     e.Timestamp,
	}
	b, err := json.Marshal(c)
	if err != nil {
		panic(fmt.Sprintf("membership: canonical serialization cannot fail: %v", err))
	}
	return b
}

// Sign builds and signs a new entry.
func Sign(action Action, subjectPubkey string, role Role, timestamp string, id *keys.Identity) Entry {
	e := Entry{
		Action:        action,
		SubjectPubkey: subjectPubkey,
		Role:          role,
		Timestamp:     timestamp,
		AuthorPubkey:  hex.EncodeToString(id.PublicKey),
	}
	sig := keys.Sign(id, CanonicalBytes(e))
	e.Signature = hex.EncodeToString(sig)
	return e
}

// VerifySignature checks e's signature over its canonical bytes.
func VerifySignature(e Entry) bool {
	pkBytes, err := hex.DecodeString(e.AuthorPubkey)
	if err != nil || len(pkBytes) != keys.SignPublicKeyBytes {
		return false
	}
	sigBytes, err := hex.DecodeString(e.Signature)
	if err != nil || len(sigBytes) != keys.SignBytes {
		return false
	}
	return keys.Verify(ed25519.PublicKey(pkBytes), CanonicalBytes(e), sigBytes)
}

// Chain is an append-only sequence of membership entries.
type Chain struct {
	Entries []Entry
}

// CurrentMembers folds the chain up to and including upToTimestamp
// (inclusive), returning the resulting {pubkey -> role} map. Entries are
// applied in (timestamp, author_pubkey) order, the tie-break named by
// invariant 4, so two devices that appended at an identical HLC timestamp
// fold deterministically regardless of arrival order.
func (c *Chain) CurrentMembers(upToTimestamp string) map[string]Role {
	ordered := make([]Entry, len(c.Entries))
	copy(ordered, c.Entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Timestamp != ordered[j].Timestamp {
			return ordered[i].Timestamp < ordered[j].Timestamp
		}
		return ordered[i].AuthorPubkey < ordered[j].AuthorPubkey
	})

	members := map[string]Role{}
	for _, e := range ordered {
		if e.Timestamp > upToTimestamp {
			break
		}
		switch e.Action {
		case ActionAdd:
			if _, present := members[e.SubjectPubkey]; !present {
				members[e.SubjectPubkey] = e.Role
			}
		case ActionRemove:
			delete(members, e.SubjectPubkey)
		case ActionRoleChange:
			if _, present := members[e.SubjectPubkey]; present {
				members[e.SubjectPubkey] = e.Role
			}
		}
	}
	return members
}

// sufficientRole reports whether actorRole may perform action on a
// membership entry: Owner may do anything; Admin may Add/Remove Members
// (not other Admins or the Owner); Member may not mutate membership at all.
func sufficientRole(actorRole Role, action Action, targetRole Role) bool {
	switch actorRole {
	case RoleOwner:
		return true
	case RoleAdmin:
		if action == ActionRoleChange {
			return false
		}
		return targetRole == RoleMember
	default:
		return false
	}
}

// Append validates e against the chain invariants and, if valid, returns a
// new Chain with e appended. It does not mutate c.
func Append(c *Chain, e Entry) (*Chain, error) {
	if len(c.Entries) == 0 {
		if e.Action != ActionAdd || e.SubjectPubkey != e.AuthorPubkey || e.Role != RoleOwner {
			return nil, bverr.New(bverr.MembershipViolation, "first entry must be a self-authorised Owner Add")
		}
		if !VerifySignature(e) {
			return nil, bverr.New(bverr.SignatureVerificationFailed, "membership entry signature invalid")
		}
		return &Chain{Entries: append(append([]Entry{}, c.Entries...), e)}, nil
	}

	if !VerifySignature(e) {
		return nil, bverr.New(bverr.SignatureVerificationFailed, "membership entry signature invalid")
	}

	if last := lastTimestampForAuthor(c.Entries, e.AuthorPubkey); last != "" && e.Timestamp < last {
		return nil, bverr.New(bverr.MembershipViolation, "timestamps must be non-decreasing within one author")
	}

	members := c.CurrentMembers(e.Timestamp)
	authorRole, isMember := members[e.AuthorPubkey]
	if !isMember {
		return nil, bverr.New(bverr.MembershipViolation, "author is not a current member at entry timestamp")
	}

	switch e.Action {
	case ActionAdd:
		if _, present := members[e.SubjectPubkey]; present {
			return nil, bverr.New(bverr.MembershipViolation, "subject is already a member; use RoleChange")
		}
		if !sufficientRole(authorRole, ActionAdd, e.Role) {
			return nil, bverr.New(bverr.MembershipViolation, "author's role is insufficient to add this role")
		}
	case ActionRemove:
		if _, present := members[e.SubjectPubkey]; !present {
			return &Chain{Entries: append(append([]Entry{}, c.Entries...), e)}, nil // no-op remove, still recorded
		}
		if !sufficientRole(authorRole, ActionRemove, members[e.SubjectPubkey]) {
			return nil, bverr.New(bverr.MembershipViolation, "author's role is insufficient to remove this member")
		}
	case ActionRoleChange:
		if !sufficientRole(authorRole, ActionRoleChange, e.Role) {
			return nil, bverr.New(bverr.MembershipViolation, "author's role is insufficient for this role change")
		}
	default:
		return nil, bverr.New(bverr.MembershipViolation, "unknown membership action")
	}

	return &Chain{Entries: append(append([]Entry{}, c.Entries...), e)}, nil
}

func lastTimestampForAuthor(entries []Entry, author string) string {
	last := ""
	for _, e := range entries {
		if e.AuthorPubkey == author && e.Timestamp > last {
			last = e.Timestamp
		}
	}
	return last
}

// AllMembers folds the entire chain, ignoring timestamp, returning the
// {pubkey -> role} map as of the chain's latest entry. Used by callers
// that want "who is in the library right now" rather than membership as
// of a specific point in sync history.
func (c *Chain) AllMembers() map[string]Role {
	if len(c.Entries) == 0 {
		return map[string]Role{}
	}
	max := c.Entries[0].Timestamp
	for _, e := range c.Entries[1:] {
		if e.Timestamp > max {
			max = e.Timestamp
		}
	}
	return c.CurrentMembers(max)
}

// IsAuthorized reports whether pubkey is a current member with at least
// Member role at upToTimestamp — the check envelope verification (C6)
// uses before applying a changeset.
func (c *Chain) IsAuthorized(pubkey, upToTimestamp string) bool {
	_, ok := c.CurrentMembers(upToTimestamp)[pubkey]
	return ok
}
