package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// cmdRoot is the base command when no other command has been specified.
var cmdRoot = &cobra.Command{
	Use:   "svdag",
	Short: "Build and query sparse voxel DAGs",
	Long: `
svdag compresses boolean voxel volumes into sparse voxel directed acyclic
graphs, answers point queries on them without decompression and keeps built
graphs in a content addressed repository.
`,
	Version:           version,
	SilenceErrors:     true,
	SilenceUsage:      true,
	DisableAutoGenTag: true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetOutput(os.Stderr)
		log.SetLevel(log.InfoLevel)
		if globalOptions.Verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := cmdRoot.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
