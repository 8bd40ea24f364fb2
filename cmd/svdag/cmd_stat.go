package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var cmdStat = &cobra.Command{
	Use:   "stat [flags]",
	Short: "Print the size and layout of a graph",
	Long: `
The "stat" command prints depth, slot counts and sizes of a graph read from a
raw file (--in) or from the repository (--id).

EXIT STATUS
===========

Exit status is 0 if the command was successful, and non-zero if there was any error.
`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStat(cmd.Context(), statOptions, globalOptions)
	},
}

var statOptions GraphOptions

func init() {
	cmdRoot.AddCommand(cmdStat)

	f := cmdStat.Flags()
	f.StringVar(&statOptions.In, "in", "", "read the raw graph from `file`")
	f.StringVar(&statOptions.ID, "id", "", "load the graph with `ID` from the repository")
}

func runStat(ctx context.Context, opts GraphOptions, gopts GlobalOptions) error {
	g, err := loadGraph(ctx, gopts, opts)
	if err != nil {
		return err
	}

	sum := g.Summary()
	counts, err := g.LevelCounts()
	if err != nil {
		return err
	}
	levels := make([]string, len(counts))
	for i, n := range counts {
		levels[i] = humanize.Comma(int64(n))
	}

	w := gopts.stdout
	fmt.Fprintf(w, "id:       %s\n", g.ID())
	fmt.Fprintf(w, "depth:    %d (%d^3 voxels)\n", sum.Depth, g.Side())
	fmt.Fprintf(w, "slots:    %s (%s nodes, %s pointers)\n", humanize.Comma(int64(sum.Slots)),
		humanize.Comma(int64(sum.Nodes)), humanize.Comma(int64(sum.Pointers)))
	fmt.Fprintf(w, "levels:   %s\n", strings.Join(levels, " "))
	fmt.Fprintf(w, "size:     %s\n", humanize.Bytes(uint64(sum.Size)))
	fmt.Fprintf(w, "array:    %s\n", humanize.Bytes(uint64(sum.DenseSize)))
	fmt.Fprintf(w, "ratio:    %.2f\n", sum.Ratio())
	return nil
}
