package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/skyline93/svdag/internal/archiver"
	"github.com/skyline93/svdag/internal/svdag"
	"github.com/spf13/cobra"
)

var cmdArchive = &cobra.Command{
	Use:   "archive [flags] SCENE...",
	Short: "Build and store graphs for many scene files",
	Long: `
The "archive" command builds a graph for every scene file given as argument
and stores graph and scene in the repository. Graphs are saved while the next
scene is being built.

EXIT STATUS
===========

Exit status is 0 if the command was successful.
Exit status is 1 if there was a fatal error or, without --keep-going, any
scene failed to build.
`,
	Args:              cobra.MinimumNArgs(1),
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runArchive(cmd.Context(), archiveOptions, globalOptions, args)
	},
}

// ArchiveOptions bundles all options for the archive command.
type ArchiveOptions struct {
	Workers         int
	Strict          bool
	Verify          bool
	KeepGoing       bool
	SaveConcurrency uint
}

var archiveOptions ArchiveOptions

func init() {
	cmdRoot.AddCommand(cmdArchive)

	f := cmdArchive.Flags()
	f.IntVar(&archiveOptions.Workers, "workers", 0, "summarize levels with `n` workers (default: number of CPUs)")
	f.BoolVar(&archiveOptions.Strict, "strict", false, "compare sub-trees on hash matches instead of trusting the hash")
	f.BoolVar(&archiveOptions.Verify, "verify", false, "check every graph against its volume before saving")
	f.BoolVar(&archiveOptions.KeepGoing, "keep-going", false, "skip scenes that fail to build instead of aborting")
	f.UintVar(&archiveOptions.SaveConcurrency, "save-concurrency", 0, "save `n` graphs concurrently (default: backend connections)")
}

func runArchive(ctx context.Context, opts ArchiveOptions, gopts GlobalOptions, files []string) error {
	repo, err := openRepository(ctx, gopts, false)
	if err != nil {
		return err
	}

	saveConcurrency := opts.SaveConcurrency
	if saveConcurrency == 0 {
		saveConcurrency = repo.Connections()
	}

	arch := archiver.New(repo, archiver.Options{
		Builder:         svdag.BuilderOptions{Workers: opts.Workers, Strict: opts.Strict},
		Verify:          opts.Verify,
		SaveConcurrency: saveConcurrency,
	})

	failed := 0
	if opts.KeepGoing {
		arch.Error = func(file string, err error) error {
			log.Warnf("skipping %v: %v", file, err)
			failed++
			return nil
		}
	}

	var m sync.Mutex
	arch.Result = func(res archiver.Result) {
		m.Lock()
		defer m.Unlock()
		fmt.Fprintf(gopts.stdout, "%s  graph %s  scene %s  %8s  ratio %.2f\n", res.Scene,
			res.GraphID.Str(), res.SceneID.Str(), humanize.Bytes(uint64(res.Summary.Size)), res.Summary.Ratio())
	}

	if err := arch.Archive(ctx, files); err != nil {
		return err
	}

	if failed > 0 {
		log.Warnf("%d of %d scenes skipped", failed, len(files))
	}
	return nil
}
