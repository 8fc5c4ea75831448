// Package cmd wires the radsmmtool command tree.
package cmd

import (
	"fmt"
	"log"

	"github.com/grailbio/base/cmdutil"
	"v.io/x/lib/cmdline"
)

func newCmdDump() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "dump",
		Short:    "Print a RADSMM store's header as JSON",
		ArgsName: "path",
	}
	labels := cmd.Flags.Bool("labels", false, "Include the marker and pedigree label tables")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("dump takes one pathname argument, but got %v", argv)
		}
		return dump(argv[0], *labels)
	})
	return cmd
}

func newCmdChecksum() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "checksum",
		Short:    "Compute a RADSMM store's seahash/highwayhash digest pair",
		ArgsName: "path",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("checksum takes one pathname argument, but got %v", argv)
		}
		return checksum(argv[0])
	})
	return cmd
}

func newCmdCreate() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "create",
		Short:    "Create an empty RADSMM store sized by axis counts",
		ArgsName: "path",
	}
	opts := createOpts{}
	cmd.Flags.IntVar(&opts.pedigrees, "pedigrees", 0, "Number of pedigrees")
	cmd.Flags.IntVar(&opts.markers, "markers", 0, "Number of markers")
	cmd.Flags.IntVar(&opts.thetas, "thetas", 0, "Number of theta grid points")
	cmd.Flags.IntVar(&opts.penetrances, "penetrances", 0, "Number of penetrance grid points per liability class")
	cmd.Flags.IntVar(&opts.liabilityClasses, "liability-classes", 1, "Number of liability classes")
	cmd.Flags.IntVar(&opts.qmodels, "qmodels", 0, "Number of quantitative-trait model grid points")
	cmd.Flags.IntVar(&opts.geneFreqs, "gene-frequencies", 0, "Number of disease gene frequency grid points")
	cmd.Flags.StringVar(&opts.elementType, "element", "D", "Element type: F (float) or D (double)")
	cmd.Flags.StringVar(&opts.modelKind, "model", "D", "Model kind: D (dichotomous) or Q (quantitative)")
	cmd.Flags.StringVar(&opts.markerMode, "marker-mode", "2", "Marker mode: 2 (two-point) or M (multipoint)")
	cmd.Flags.StringVar(&opts.ordering, "ordering", "A", "Axis ordering letter, A..F")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("create takes one pathname argument, but got %v", argv)
		}
		return create(argv[0], opts)
	})
	return cmd
}

// Run is the radsmmtool entry point.
func Run() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "radsmmtool",
			Short:    "Tools for working with RADSMM result store files",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdCreate(),
				newCmdDump(),
				newCmdChecksum(),
			},
		})
}
