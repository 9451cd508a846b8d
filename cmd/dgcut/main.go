package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/notargets/DGCut/config"
	"github.com/notargets/DGCut/cut"
	"github.com/notargets/DGCut/mesh"
)

var (
	// Global flags
	configPath string
	verbose    bool
	workers    int
	report     string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dgcut",
	Short: "Cut background meshes with an embedded interface",
	Long: `dgcut intersects linear volume meshes (tet4, hex8, wedge6, pyramid5)
with an interface made of tri3/quad4 sides. Every cut element is split into
volume cells that are classified inside or outside the interface, and the
interface is triangulated into boundary cells for integration.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.LoadConfig(configPath); err != nil {
			return err
		}
		if cmd.Flags().Changed("workers") {
			cfg.Cut.Workers = workers
			if err = cfg.Validate(); err != nil {
				return err
			}
		}
		if logger, err = cfg.Logger(verbose); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var cutCmd = &cobra.Command{
	Use:   "cut",
	Short: "Cut a mesh file with an interface file",
	Long: `Reads the background mesh with the gocfd readers (Gambit neutral, Gmsh)
and the interface from a YAML file with cut_nodes and cut_sides.

Example:
  dgcut cut --mesh cube.neu --sides sphere.yaml --report stats.yaml`,
	RunE: runCut,
}

var testCmd = &cobra.Command{
	Use:   "test [file.yaml...]",
	Short: "Run cut test files and check their expectations",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTests,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file (default dgcut.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 0, "number of partitions cut concurrently")
	rootCmd.PersistentFlags().StringVar(&report, "report", "", "write the cut statistics as YAML")

	cutCmd.Flags().String("mesh", "", "background mesh file")
	cutCmd.Flags().String("sides", "", "interface YAML file")
	_ = cutCmd.MarkFlagRequired("mesh")
	_ = cutCmd.MarkFlagRequired("sides")

	rootCmd.AddCommand(cutCmd, testCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func runCut(cmd *cobra.Command, args []string) error {
	meshFile, _ := cmd.Flags().GetString("mesh")
	sidesFile, _ := cmd.Flags().GetString("sides")

	bg, err := mesh.ReadBackground(meshFile)
	if err != nil {
		return err
	}
	logger.Info(bg.String())
	in, err := mesh.LoadInterface(sidesFile)
	if err != nil {
		return err
	}

	mi, err := cut.New(cfg.Cut, logger)
	if err != nil {
		return err
	}
	if err = bg.Populate(mi); err != nil {
		return err
	}
	if err = in.Populate(mi); err != nil {
		return err
	}
	if err = mi.Cut(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), mi.String())
	return writeReport(mi.Statistics())
}

// runTests runs every cut test file. The report maps each passing file to
// its statistics.
func runTests(cmd *cobra.Command, args []string) error {
	var (
		failed int
		stats  = make(map[string]cut.Statistics)
	)
	for _, path := range args {
		st, err := runTest(cmd.Context(), path)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s\n%v\n", path, err)
			continue
		}
		stats[path] = st
		fmt.Fprintf(cmd.OutOrStdout(), "ok   %s\n", path)
	}
	if err := writeReport(stats); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d cut tests failed", failed, len(args))
	}
	return nil
}

func runTest(ctx context.Context, path string) (cut.Statistics, error) {
	ct, err := mesh.LoadCutTest(path)
	if err != nil {
		return cut.Statistics{}, err
	}
	mi, err := cut.New(cfg.Cut, logger.With(zap.String("test", ct.Name)))
	if err != nil {
		return cut.Statistics{}, err
	}
	if err = ct.Populate(mi); err != nil {
		return cut.Statistics{}, err
	}
	if err = mi.Cut(ctx); err != nil {
		return cut.Statistics{}, err
	}
	if failures := mi.Failures(); len(failures) > 0 {
		return cut.Statistics{}, fmt.Errorf("%d elements failed, first: %w", len(failures), failures[0])
	}
	if err = ct.Expect.Check(mi); err != nil {
		return cut.Statistics{}, err
	}
	return mi.Statistics(), nil
}

// writeReport writes v as YAML to the --report file, if one is given
func writeReport(v any) error {
	if report == "" {
		return nil
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	if err = os.WriteFile(report, data, 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	logger.Info("report written", zap.String("path", report))
	return nil
}
