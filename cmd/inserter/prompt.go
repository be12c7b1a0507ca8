package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pario-ai/inserter/pkg/orchestrator"
)

// writerSink inserts text by writing it to w.
func writerSink(w io.Writer) orchestrator.Sink {
	return orchestrator.SinkFunc(func(_ context.Context, text string) error {
		_, err := fmt.Fprintln(w, text)
		return err
	})
}

func newPromptCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt <text...>",
		Short: "Generate text for a prompt and print it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out, err := a.session.Submit(cmd.Context(), strings.Join(args, " "), writerSink(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			if out.Kind != orchestrator.Resolved {
				return errors.New(out.Message())
			}
			return nil
		},
	}
}
