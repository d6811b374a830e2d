// Command prepare turns archived accelerometer trials into windowed
// train/test tensors for the fall classifier.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/okian/fallsense/internal/config"
	"github.com/okian/fallsense/internal/offline"
	"github.com/okian/fallsense/pkg/logger"
)

var version = "dev"

func main() {
	if err := newCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// newCommand builds the root command. Flags default to config.New and, when
// set, override whatever config.Load resolved from file and environment.
func newCommand() *cobra.Command {
	defaults := config.New()
	flags := *defaults
	var verbose bool

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Window and split archived trials into training tensors",
		Long: `prepare walks a dataset of archived accelerometer trials, splits them
into train and test partitions by subject, cuts overlapping windows and
writes X_train, y_train, X_test and y_test into a single npz archive.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.Flags(), &flags, verbose)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.DatasetDir, "dataset", defaults.DatasetDir, "root directory of archived trials")
	f.StringVar(&flags.OutputPath, "output", defaults.OutputPath, "npz file to write")
	f.Float64Var(&flags.SplitRatio, "ratio", defaults.SplitRatio, "train share of each subject group")
	f.IntVar(&flags.WindowSize, "window", defaults.WindowSize, "samples per window")
	f.Float64Var(&flags.Overlap, "overlap", defaults.Overlap, "window overlap ratio in [0,1)")
	f.IntVar(&flags.Downsample, "downsample", defaults.Downsample, "keep every n-th archived row")
	f.Float64Var(&flags.RawScale, "raw-scale", defaults.RawScale, "ADC count to g conversion")
	f.IntVar(&flags.MinFields, "min-fields", defaults.MinFields, "minimum columns of a well-formed row")
	f.Int64Var(&flags.Seed, "seed", defaults.Seed, "split seed, 0 for time based")
	f.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func run(ctx context.Context, fs *pflag.FlagSet, flags *config.Config, verbose bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := logger.Init(); err != nil {
		return err
	}
	log := logger.Get().Named("prepare")
	if verbose {
		_ = logger.SetLevelString("debug")
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Error(ctx, "failed to load config", logger.Error(err))
		return err
	}
	applyFlags(fs, flags, cfg)
	if err := cfg.ValidateOffline(); err != nil {
		log.Error(ctx, "invalid options", logger.Error(err))
		return err
	}

	rep, err := offline.Prepare(ctx, optionsFrom(cfg))
	if err != nil {
		log.Error(ctx, "preparation failed", logger.Error(err))
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(fs *pflag.FlagSet, flags, cfg *config.Config) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "dataset":
			cfg.DatasetDir = flags.DatasetDir
		case "output":
			cfg.OutputPath = flags.OutputPath
		case "ratio":
			cfg.SplitRatio = flags.SplitRatio
		case "window":
			cfg.WindowSize = flags.WindowSize
		case "overlap":
			cfg.Overlap = flags.Overlap
		case "downsample":
			cfg.Downsample = flags.Downsample
		case "raw-scale":
			cfg.RawScale = flags.RawScale
		case "min-fields":
			cfg.MinFields = flags.MinFields
		case "seed":
			cfg.Seed = flags.Seed
		}
	})
}

func optionsFrom(cfg *config.Config) offline.Options {
	return offline.Options{
		DatasetDir: cfg.DatasetDir,
		OutputPath: cfg.OutputPath,
		SplitRatio: cfg.SplitRatio,
		WindowSize: cfg.WindowSize,
		Overlap:    cfg.Overlap,
		Read: offline.ReadOptions{
			Downsample: cfg.Downsample,
			Scale:      cfg.RawScale,
			MinFields:  cfg.MinFields,
		},
		Seed: cfg.Seed,
	}
}
