package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/skyline93/svdag/internal/volume"
	"github.com/spf13/cobra"
)

var cmdQuery = &cobra.Command{
	Use:   "query [flags] x y z",
	Short: "Print whether a voxel is occupied",
	Long: `
The "query" command looks up a single voxel in a graph read from a raw file
(--in) or from the repository (--id, any unique prefix of the graph ID).

EXIT STATUS
===========

Exit status is 0 if the command was successful, and non-zero if there was any
error, including a position outside the graph.
`,
	Args:              cobra.ExactArgs(3),
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd.Context(), queryOptions, globalOptions, args)
	},
}

var queryOptions GraphOptions

func init() {
	cmdRoot.AddCommand(cmdQuery)

	f := cmdQuery.Flags()
	f.StringVar(&queryOptions.In, "in", "", "read the raw graph from `file`")
	f.StringVar(&queryOptions.ID, "id", "", "load the graph with `ID` from the repository")
}

func parsePosition(args []string) (volume.Position, error) {
	var c [3]int
	for i, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return volume.Position{}, errors.Errorf("invalid coordinate %q", arg)
		}
		c[i] = n
	}
	return volume.Position{X: c[0], Y: c[1], Z: c[2]}, nil
}

func runQuery(ctx context.Context, opts GraphOptions, gopts GlobalOptions, args []string) error {
	p, err := parsePosition(args)
	if err != nil {
		return err
	}

	g, err := loadGraph(ctx, gopts, opts)
	if err != nil {
		return err
	}

	occupied, err := g.Lookup(p)
	if err != nil {
		return err
	}

	fmt.Fprintln(gopts.stdout, occupied)
	return nil
}
