package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var cmdInit = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new repository",
	Long: `
The "init" command initializes a new repository.

EXIT STATUS
===========

Exit status is 0 if the command was successful, and non-zero if there was any error.
`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd.Context(), globalOptions)
	},
}

func init() {
	cmdRoot.AddCommand(cmdInit)
}

func runInit(ctx context.Context, gopts GlobalOptions) error {
	repo, err := openRepository(ctx, gopts, true)
	if err != nil {
		return err
	}

	fmt.Fprintf(gopts.stdout, "created repository at %s\n", repo.Backend().Location())
	return nil
}
