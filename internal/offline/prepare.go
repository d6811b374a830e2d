package offline

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/okian/fallsense/internal/domain/model"
	"github.com/okian/fallsense/pkg/logger"
)

// Options configures a full preparation run.
type Options struct {
	DatasetDir string
	OutputPath string
	SplitRatio float64
	WindowSize int
	Overlap    float64
	Read       ReadOptions
	Seed       int64 // 0 picks a time-based seed
}

// Report summarises a preparation run.
type Report struct {
	Seed           int64    `json:"seed"`
	Files          int      `json:"files"`
	TrainFiles     int      `json:"train_files"`
	TestFiles      int      `json:"test_files"`
	SkippedFiles   int      `json:"skipped_files"`
	TrainWindows   int      `json:"train_windows"`
	TestWindows    int      `json:"test_windows"`
	TrainFallRatio float64  `json:"train_fall_ratio"`
	TestFallRatio  float64  `json:"test_fall_ratio"`
	LeakedSubjects []string `json:"leaked_subjects,omitempty"`
	OutputPath     string   `json:"output_path"`
}

// Prepare discovers, splits, parses and windows the dataset, then writes the
// tensors to opts.OutputPath.
func Prepare(ctx context.Context, opts Options) (Report, error) {
	log := logger.Get().Named("prepare")

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rep := Report{Seed: seed, OutputPath: opts.OutputPath}

	paths, err := Discover(ctx, opts.DatasetDir)
	if err != nil {
		return rep, err
	}
	rep.Files = len(paths)

	train, test := Split(paths, opts.SplitRatio, rand.New(rand.NewSource(seed))) //nolint:gosec // reproducible shuffle, not crypto
	rep.TrainFiles, rep.TestFiles = len(train), len(test)
	rep.LeakedSubjects = LeakedSubjects(train, test)
	if len(rep.LeakedSubjects) > 0 {
		log.Warn(ctx, "subjects appear in both partitions",
			logger.Int("count", len(rep.LeakedSubjects)),
			logger.Any("subjects", rep.LeakedSubjects))
	}

	log.Info(ctx, "split dataset",
		logger.Int("files", rep.Files),
		logger.Int("train", rep.TrainFiles),
		logger.Int("test", rep.TestFiles),
		logger.Int64("seed", seed))

	trainTrials, skipped, err := readAll(ctx, log, train, opts.Read)
	if err != nil {
		return rep, err
	}
	rep.SkippedFiles += skipped
	testTrials, skipped, err := readAll(ctx, log, test, opts.Read)
	if err != nil {
		return rep, err
	}
	rep.SkippedFiles += skipped

	xTrain, yTrain, err := Windows(trainTrials, opts.WindowSize, opts.Overlap)
	if err != nil {
		return rep, err
	}
	xTest, yTest, err := Windows(testTrials, opts.WindowSize, opts.Overlap)
	if err != nil {
		return rep, err
	}
	rep.TrainWindows, rep.TestWindows = len(yTrain), len(yTest)
	rep.TrainFallRatio, rep.TestFallRatio = fallRatio(yTrain), fallRatio(yTest)

	t, err := NewTensors(xTrain, yTrain, xTest, yTest)
	if err != nil {
		return rep, err
	}
	if err := WriteTensors(opts.OutputPath, t); err != nil {
		return rep, err
	}

	log.Info(ctx, "tensors written",
		logger.String("path", opts.OutputPath),
		logger.Int("train_windows", rep.TrainWindows),
		logger.Int("test_windows", rep.TestWindows),
		logger.Float64("train_fall_ratio", rep.TrainFallRatio))
	return rep, nil
}

// readAll parses every path, skipping unreadable and malformed trials.
func readAll(ctx context.Context, log logger.Logger, paths []string, opts ReadOptions) ([]model.Trial, int, error) {
	trials := make([]model.Trial, 0, len(paths))
	skipped := 0
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, skipped, fmt.Errorf("prepare cancelled: %w", err)
		}
		t, err := ReadTrial(p, opts)
		if err != nil {
			skipped++
			log.Warn(ctx, "trial unreadable", logger.String("path", p), logger.Error(err))
			continue
		}
		if len(t.Samples) == 0 {
			skipped++
			log.Debug(ctx, "trial malformed or empty", logger.String("path", p))
			continue
		}
		trials = append(trials, t)
	}
	return trials, skipped, nil
}

func fallRatio(labels []model.Label) float64 {
	if len(labels) == 0 {
		return 0
	}
	xs := make([]float64, len(labels))
	for i, l := range labels {
		xs[i] = float64(l)
	}
	return stat.Mean(xs, nil)
}
