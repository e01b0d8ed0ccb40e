package membership

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/bandvault/core/pkg/bverr"
	"github.com/bandvault/core/pkg/keys"
)

var errNotFound = bverr.New(bverr.NotFound, "not found")

type memStore struct{ identity *keys.Identity }

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

func pubHex(id *keys.Identity) string {
	return hex.EncodeToString(id.PublicKey)
}

func TestFounderSelfAuthorisation(t *testing.T) {
	owner := genIdentity(t, "dev-owner")
	ownerPub := pubHex(owner)

	founder := Sign(ActionAdd, ownerPub, RoleOwner, "0000000000001-00000-dev-owner", owner)
	chain := &Chain{}
	chain, err := Append(chain, founder)
	if err != nil {
		t.Fatalf("Append founder entry: %v", err)
	}
	if len(chain.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(chain.Entries))
	}
	members := chain.CurrentMembers(founder.Timestamp)
	if members[ownerPub] != RoleOwner {
		t.Fatalf("expected founder to be Owner, got %v", members[ownerPub])
	}
}

func TestFirstEntryMustBeSelfAuthorisedOwnerAdd(t *testing.T) {
	owner := genIdentity(t, "dev-owner")
	other := genIdentity(t, "dev-other")
	otherPub := pubHex(other)

	bad := Sign(ActionAdd, otherPub, RoleOwner, "0000000000001-00000-dev-owner", owner)
	chain := &Chain{}
	if _, err := Append(chain, bad); err == nil {
		t.Fatal("expected error for non-self-authorised first entry")
	}
}

func TestOwnerCanAddAdminWhoCanAddMember(t *testing.T) {
	owner := genIdentity(t, "dev-owner")
	ownerPub := pubHex(owner)
	admin := genIdentity(t, "dev-admin")
	adminPub := pubHex(admin)
	member := genIdentity(t, "dev-member")
	memberPub := pubHex(member)

	chain := &Chain{}
	chain, err := Append(chain, Sign(ActionAdd, ownerPub, RoleOwner, "0000000000001-00000-dev-owner", owner))
	if err != nil {
		t.Fatalf("founder: %v", err)
	}
	chain, err = Append(chain, Sign(ActionAdd, adminPub, RoleAdmin, "0000000000002-00000-dev-owner", owner))
	if err != nil {
		t.Fatalf("owner adds admin: %v", err)
	}
	chain, err = Append(chain, Sign(ActionAdd, memberPub, RoleMember, "0000000000003-00000-dev-admin", admin))
	if err != nil {
		t.Fatalf("admin adds member: %v", err)
	}

	members := chain.CurrentMembers("0000000000003-00000-dev-admin")
	if members[memberPub] != RoleMember {
		t.Fatalf("expected member role, got %v", members[memberPub])
	}
}

func TestMemberCannotMutateMembership(t *testing.T) {
	owner := genIdentity(t, "dev-owner")
	ownerPub := pubHex(owner)
	member := genIdentity(t, "dev-member")
	memberPub := pubHex(member)
	other := genIdentity(t, "dev-other")
	otherPub := pubHex(other)

	chain := &Chain{}
	chain, _ = Append(chain, Sign(ActionAdd, ownerPub, RoleOwner, "0000000000001-00000-dev-owner", owner))
	chain, _ = Append(chain, Sign(ActionAdd, memberPub, RoleMember, "0000000000002-00000-dev-owner", owner))

	attempt := Sign(ActionAdd, otherPub, RoleMember, "0000000000003-00000-dev-member", member)
	if _, err := Append(chain, attempt); err == nil {
		t.Fatal("expected error: Member may not mutate membership")
	}
}

func TestTamperedSignatureRejected(t *testing.T) {
	owner := genIdentity(t, "dev-owner")
	ownerPub := pubHex(owner)

	founder := Sign(ActionAdd, ownerPub, RoleOwner, "0000000000001-00000-dev-owner", owner)
	founder.Role = RoleAdmin // tamper after signing

	chain := &Chain{}
	if _, err := Append(chain, founder); err == nil {
		t.Fatal("expected tampered entry to fail signature verification")
	}
}

func TestRemoveOfAbsentSubjectIsNoOp(t *testing.T) {
	owner := genIdentity(t, "dev-owner")
	ownerPub := pubHex(owner)
	ghost := genIdentity(t, "dev-ghost")
	ghostPub := pubHex(ghost)

	chain := &Chain{}
	chain, _ = Append(chain, Sign(ActionAdd, ownerPub, RoleOwner, "0000000000001-00000-dev-owner", owner))
	chain, err := Append(chain, Sign(ActionRemove, ghostPub, "", "0000000000002-00000-dev-owner", owner))
	if err != nil {
		t.Fatalf("expected no-op remove to succeed, got %v", err)
	}
	if _, present := chain.CurrentMembers("0000000000002-00000-dev-owner")[ghostPub]; present {
		t.Fatal("ghost should never have been a member")
	}
}

func TestAddOfPresentSubjectRejected(t *testing.T) {
	owner := genIdentity(t, "dev-owner")
	ownerPub := pubHex(owner)
	member := genIdentity(t, "dev-member")
	memberPub := pubHex(member)

	chain := &Chain{}
	chain, _ = Append(chain, Sign(ActionAdd, ownerPub, RoleOwner, "0000000000001-00000-dev-owner", owner))
	chain, _ = Append(chain, Sign(ActionAdd, memberPub, RoleMember, "0000000000002-00000-dev-owner", owner))

	dup := Sign(ActionAdd, memberPub, RoleMember, "0000000000003-00000-dev-owner", owner)
	if _, err := Append(chain, dup); err == nil {
		t.Fatal("expected error adding an already-present subject")
	}
}

func TestSameTimestampEntriesFromOneAuthorBothFold(t *testing.T) {
	owner := genIdentity(t, "dev-owner")
	ownerPub := pubHex(owner)
	a := genIdentity(t, "dev-a")
	aPub := pubHex(a)
	b := genIdentity(t, "dev-b")
	bPub := pubHex(b)

	chain := &Chain{}
	chain, _ = Append(chain, Sign(ActionAdd, ownerPub, RoleOwner, "0000000000001-00000-dev-owner", owner))
	chain, _ = Append(chain, Sign(ActionAdd, aPub, RoleAdmin, "0000000000002-00000-dev-owner", owner))
	chain, _ = Append(chain, Sign(ActionAdd, bPub, RoleAdmin, "0000000000002-00000-dev-owner", owner))

	members := chain.CurrentMembers("0000000000002-00000-dev-owner")
	if members[aPub] != RoleAdmin || members[bPub] != RoleAdmin {
		t.Fatal("expected both same-timestamp entries to fold deterministically")
	}
}
