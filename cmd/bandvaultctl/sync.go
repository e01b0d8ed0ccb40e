package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bandvault/core/pkg/store"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle: push any locally-captured changes, then pull every peer's new ones",
	RunE: func(cmd *cobra.Command, _ []string) error {
		result, err := runWithSync(cmd.Context(), "sync", func(context.Context, *store.Store) error { return nil })
		if err != nil {
			return err
		}
		fmt.Printf("pushed: %v\n", result.Pushed)
		fmt.Printf("changesets_applied: %d\n", result.Pull.ChangesetsApplied)
		fmt.Printf("devices_pulled: %d\n", result.Pull.DevicesPulled)
		fmt.Printf("skipped_schema: %d\n", result.Pull.SkippedSchema)
		return nil
	},
}
