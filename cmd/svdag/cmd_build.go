package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/skyline93/svdag/internal/scene"
	"github.com/skyline93/svdag/internal/svdag"
	"github.com/skyline93/svdag/internal/volume"
	"github.com/spf13/cobra"
)

var cmdBuild = &cobra.Command{
	Use:   "build [flags]",
	Short: "Build a graph from a scene file or a sphere",
	Long: `
The "build" command rasterizes a scene into a voxel volume and compresses it
into a graph. Without --scene a single sphere is built from the --depth,
--center and --radius flags.

The graph is written as a raw file with --out and stored in the repository
when --repo is set. With --verify every voxel of the volume is queried on the
graph and the command fails on the first mismatch.

EXIT STATUS
===========

Exit status is 0 if the command was successful, and non-zero if there was any error.
`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(cmd.Context(), buildOptions, globalOptions)
	},
}

// BuildOptions bundles all options for the build command.
type BuildOptions struct {
	Scene   string
	Depth   uint8
	Center  []int
	Radius  float32
	Out     string
	Workers int
	Strict  bool
	Verify  bool
}

var buildOptions BuildOptions

func init() {
	cmdRoot.AddCommand(cmdBuild)

	f := cmdBuild.Flags()
	f.StringVar(&buildOptions.Scene, "scene", "", "build the volume described by the YAML `file`")
	f.Uint8Var(&buildOptions.Depth, "depth", 6, "sphere volume has a side of 2^`n` voxels")
	f.IntSliceVar(&buildOptions.Center, "center", nil, "sphere center `x,y,z` (default: volume center)")
	f.Float32Var(&buildOptions.Radius, "radius", 0, "sphere radius (default: a quarter of the side)")
	f.StringVarP(&buildOptions.Out, "out", "o", "", "write the raw graph to `file`")
	f.IntVar(&buildOptions.Workers, "workers", 0, "summarize levels with `n` workers (default: number of CPUs)")
	f.BoolVar(&buildOptions.Strict, "strict", false, "compare sub-trees on hash matches instead of trusting the hash")
	f.BoolVar(&buildOptions.Verify, "verify", false, "check every voxel of the graph against the volume")
}

// sceneFromOptions returns the scene to build and its encoded form, which is
// nil for the sphere built from flags.
func sceneFromOptions(opts BuildOptions) (*scene.Scene, []byte, error) {
	if opts.Scene != "" {
		s, err := scene.Load(opts.Scene)
		if err != nil {
			return nil, nil, err
		}
		buf, err := s.Marshal()
		if err != nil {
			return nil, nil, err
		}
		return s, buf, nil
	}

	side := 1 << opts.Depth
	center := opts.Center
	if len(center) == 0 {
		center = []int{side / 2, side / 2, side / 2}
	}
	radius := opts.Radius
	if radius == 0 {
		radius = float32(side) / 4
	}

	s := &scene.Scene{
		Depth:  opts.Depth,
		Shapes: []scene.Shape{{Sphere: &scene.Sphere{Center: center, Radius: radius}}},
	}
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	return s, nil, nil
}

func runBuild(ctx context.Context, opts BuildOptions, gopts GlobalOptions) error {
	s, sceneData, err := sceneFromOptions(opts)
	if err != nil {
		return err
	}

	start := time.Now()
	v := s.Volume()
	log.Debugf("rasterized %d voxels in %v", v.Count(), time.Since(start))

	b, err := svdag.NewBuilder(svdag.BuilderOptions{Workers: opts.Workers, Strict: opts.Strict})
	if err != nil {
		return err
	}
	if err := b.CreateLayers(ctx, v); err != nil {
		return err
	}
	if err := b.CreateGraph(); err != nil {
		return err
	}
	g := b.Finish()
	log.Debugf("built graph in %v: %+v", time.Since(start), b.Stats())

	if opts.Verify {
		if err := g.Verify(v); err != nil {
			return errors.Wrap(err, "verify")
		}
		log.Infof("verified %s voxels", humanize.Comma(int64(v.Len())))
	}

	if opts.Out != "" {
		if err := writeGraphFile(opts.Out, g); err != nil {
			return err
		}
	}

	if gopts.Repo != "" {
		if err := storeGraph(ctx, gopts, g, sceneData); err != nil {
			return err
		}
	}

	printReport(gopts, v, g, b.Stats())
	return nil
}

func storeGraph(ctx context.Context, gopts GlobalOptions, g *svdag.Svdag, sceneData []byte) error {
	repo, err := openRepository(ctx, gopts, false)
	if err != nil {
		return err
	}

	if sceneData != nil {
		sid, err := repo.SaveScene(ctx, sceneData)
		if err != nil {
			return err
		}
		fmt.Fprintf(gopts.stdout, "scene %s saved\n", sid.Str())
	}

	id, err := repo.SaveGraph(ctx, g)
	if err != nil {
		return err
	}
	fmt.Fprintf(gopts.stdout, "graph %s saved\n", id.Str())
	return nil
}

func printReport(gopts GlobalOptions, v *volume.Volume, g *svdag.Svdag, stats svdag.Stats) {
	sum := g.Summary()
	w := gopts.stdout
	fmt.Fprintf(w, "volume:   %d^3, %s occupied voxels\n", v.Side(), humanize.Comma(int64(v.Count())))
	fmt.Fprintf(w, "array:    %s\n", humanize.Bytes(uint64(sum.DenseSize)))
	fmt.Fprintf(w, "svdag:    %s (%s nodes, %s pointers, %s shared)\n",
		humanize.Bytes(uint64(sum.Size)), humanize.Comma(int64(sum.Nodes)),
		humanize.Comma(int64(sum.Pointers)), humanize.Comma(int64(stats.DedupHits)))
	fmt.Fprintf(w, "ratio:    %.2f\n", sum.Ratio())
}
