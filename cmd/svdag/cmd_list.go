package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/skyline93/svdag/internal/backend"
	"github.com/skyline93/svdag/internal/svdag"
	"github.com/spf13/cobra"
)

var cmdList = &cobra.Command{
	Use:   "list [graphs|scenes]",
	Short: "List objects in the repository",
	Long: `
The "list" command prints the IDs and stored sizes of the graphs (default) or
scenes in the repository.

EXIT STATUS
===========

Exit status is 0 if the command was successful, and non-zero if there was any error.
`,
	Args:              cobra.MaximumNArgs(1),
	ValidArgs:         []string{"graphs", "scenes"},
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		t := "graphs"
		if len(args) > 0 {
			t = args[0]
		}
		return runList(cmd.Context(), globalOptions, t)
	},
}

func init() {
	cmdRoot.AddCommand(cmdList)
}

func runList(ctx context.Context, gopts GlobalOptions, kind string) error {
	var t backend.FileType
	switch kind {
	case "graphs":
		t = backend.GraphFile
	case "scenes":
		t = backend.SceneFile
	default:
		return errors.Errorf("invalid type %q, must be graphs or scenes", kind)
	}

	repo, err := openRepository(ctx, gopts, false)
	if err != nil {
		return err
	}

	return repo.List(ctx, t, func(id svdag.ID, size int64) error {
		compressed, err := repo.IsCompressed(ctx, t, id)
		if err != nil {
			return err
		}

		encoding := "raw"
		if compressed {
			encoding = "zstd"
		}
		fmt.Fprintf(gopts.stdout, "%s  %8s  %s\n", id, humanize.Bytes(uint64(size)), encoding)
		return nil
	})
}
