package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pario-ai/inserter/pkg/cache"
)

func newCacheCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the prompt cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			stats, err := a.session.Orchestrator().Cache().Stats()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Entries: %d\n", stats.Entries)
			return nil
		},
	}

	var fraction float64
	evictCmd := &cobra.Command{
		Use:   "evict",
		Short: "Evict the oldest cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			removed, err := a.session.Orchestrator().Cache().EvictOldest(fraction)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Evicted %d cache entries.\n", removed)
			return nil
		},
	}
	evictCmd.Flags().Float64Var(&fraction, "fraction", cache.DefaultEvictFraction, "share of entries to evict, oldest first")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear all cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			removed, err := a.session.Orchestrator().Cache().ClearAll()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cache entries.\n", removed)
			return nil
		},
	}

	cmd.AddCommand(statsCmd, evictCmd, clearCmd)
	return cmd
}
