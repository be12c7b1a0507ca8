package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newKeyCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the upstream API key",
	}

	setCmd := &cobra.Command{
		Use:   "set <api-key>",
		Short: "Save the API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.session.SaveCredential(strings.TrimSpace(args[0])); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key saved.")
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the saved API key, masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			fmt.Fprintln(cmd.OutOrStdout(), maskKey(a.session.Credential()))
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the saved API key against the upstream",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			cred := a.session.Credential()
			if cred == "" {
				return fmt.Errorf("no API key set")
			}
			ok, err := a.client.ValidateCredential(cmd.Context(), cred)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("API key rejected by upstream")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key is valid.")
			return nil
		},
	}

	cmd.AddCommand(setCmd, showCmd, validateCmd)
	return cmd
}

// maskKey keeps the last four characters of key visible.
func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}
