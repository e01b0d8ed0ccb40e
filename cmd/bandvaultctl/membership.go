package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bandvault/core/pkg/devicelink"
	"github.com/bandvault/core/pkg/hlc"
	"github.com/bandvault/core/pkg/membership"
)

var membershipCmd = &cobra.Command{
	Use:   "membership",
	Short: "Administer the library's membership chain",
}

var membershipInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Found the membership chain with this device as Owner",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		chain, err := membership.LoadChain(flagMembershipFile)
		if err != nil {
			return err
		}
		if len(chain.Entries) != 0 {
			return fmt.Errorf("membership chain already has %d entries; init only founds a new one", len(chain.Entries))
		}
		id, err := loadIdentity(ctx)
		if err != nil {
			return err
		}
		pub := hex.EncodeToString(id.PublicKey)
		entry := membership.Sign(membership.ActionAdd, pub, membership.RoleOwner, hlc.New(id.DeviceID).Now(), id)
		chain, err = membership.Append(chain, entry)
		if err != nil {
			return err
		}
		if err := membership.SaveChain(flagMembershipFile, chain); err != nil {
			return err
		}
		fmt.Printf("founded membership chain; owner %s\n", pub)
		return nil
	},
}

var flagMembershipRole string

var membershipAddCmd = &cobra.Command{
	Use:   "add <pubkey-hex>",
	Short: "Add a device to the membership chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return appendMembershipEntry(cmd, membership.ActionAdd, args[0], membership.Role(flagMembershipRole))
	},
}

var membershipRemoveCmd = &cobra.Command{
	Use:   "remove <pubkey-hex>",
	Short: "Remove a device from the membership chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return appendMembershipEntry(cmd, membership.ActionRemove, args[0], "")
	},
}

var membershipRoleChangeCmd = &cobra.Command{
	Use:   "role-change <pubkey-hex>",
	Short: "Change a member's role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return appendMembershipEntry(cmd, membership.ActionRoleChange, args[0], membership.Role(flagMembershipRole))
	},
}

func appendMembershipEntry(cmd *cobra.Command, action membership.Action, subjectPubkey string, role membership.Role) error {
	ctx := cmd.Context()
	chain, err := membership.LoadChain(flagMembershipFile)
	if err != nil {
		return err
	}
	id, err := loadIdentity(ctx)
	if err != nil {
		return err
	}
	entry := membership.Sign(action, subjectPubkey, role, hlc.New(id.DeviceID).Now(), id)
	chain, err = membership.Append(chain, entry)
	if err != nil {
		return fmt.Errorf("append membership entry: %w", err)
	}
	if err := membership.SaveChain(flagMembershipFile, chain); err != nil {
		return err
	}
	fmt.Printf("%s %s applied\n", action, subjectPubkey)
	return nil
}

var membershipListCmd = &cobra.Command{
	Use:   "list",
	Short: "List current members and their roles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		chain, err := membership.LoadChain(flagMembershipFile)
		if err != nil {
			return err
		}
		for pubkey, role := range chain.AllMembers() {
			fmt.Printf("%s\t%s\n", pubkey, role)
		}
		return nil
	},
}

var flagDeviceLinkProxyURL string

// membershipLinkCmd emits a devicelink payload a new device can scan (or be
// given out of band) to bootstrap its copy of the library key and this
// device's signing key, without the membership chain itself ever passing
// through the synced bucket (the membership chain is deliberately not part
// of the bucket key schema).
var membershipLinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Print a device-link payload inviting a new device into this library",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		id, err := loadIdentity(ctx)
		if err != nil {
			return err
		}
		libKey, err := loadLibraryKey(ctx)
		if err != nil {
			return err
		}
		payload, err := devicelink.Encode(flagDeviceLinkProxyURL, libKey, id.PrivateKey, id.DeviceID)
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
		return nil
	},
}

var membershipImportLinkCmd = &cobra.Command{
	Use:   "import-link <payload-file>",
	Short: "Bootstrap this device's library key from a device-link payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read device link payload: %w", err)
		}
		decoded, err := devicelink.Decode(data)
		if err != nil {
			return err
		}
		if err := saveLibraryKey(cmd.Context(), decoded.EncryptionKey); err != nil {
			return err
		}
		fmt.Printf("imported library key for library %s\n", decoded.LibraryID)
		return nil
	},
}

func init() {
	membershipAddCmd.Flags().StringVar(&flagMembershipRole, "role", string(membership.RoleMember), "Role to grant: owner | admin | member")
	membershipRoleChangeCmd.Flags().StringVar(&flagMembershipRole, "role", string(membership.RoleMember), "New role: owner | admin | member")
	membershipLinkCmd.Flags().StringVar(&flagDeviceLinkProxyURL, "proxy-url", "", "Relay URL the new device should use, if any")

	membershipCmd.AddCommand(membershipInitCmd, membershipAddCmd, membershipRemoveCmd, membershipRoleChangeCmd,
		membershipListCmd, membershipLinkCmd, membershipImportLinkCmd)
}
