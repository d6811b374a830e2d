package offline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/okian/fallsense/internal/domain/model"
)

// ReadOptions controls trial parsing.
type ReadOptions struct {
	Downsample int     // keep every n-th row starting at row 0
	Scale      float64 // raw ADC counts to g
	MinFields  int     // rows with fewer columns invalidate the trial
}

// DefaultReadOptions matches the archived dataset: 200 Hz decimated to 50 Hz,
// 13-bit ±16 g counts at 4 mg/LSB.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{Downsample: 4, Scale: 0.004, MinFields: 9}
}

// ReadTrial loads one archived trial. A malformed file yields a trial with no
// samples rather than an error; only I/O failures are returned.
func ReadTrial(path string, opts ReadOptions) (model.Trial, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Trial{}, fmt.Errorf("open trial: %w", err)
	}
	defer f.Close()

	samples, err := ParseTrial(f, opts)
	if err != nil {
		return model.Trial{}, fmt.Errorf("read trial %s: %w", path, err)
	}
	return model.Trial{
		Path:    path,
		Subject: SubjectOf(path),
		Fall:    IsFall(path),
		Samples: samples,
	}, nil
}

// ParseTrial parses comma-separated rows. Trailing ';' and whitespace are
// tolerated and blank lines skipped. It returns nil samples if any row is
// short or has a non-numeric acceleration column.
func ParseTrial(r io.Reader, opts ReadOptions) ([]model.Sample, error) {
	if opts.Downsample < 1 {
		opts.Downsample = 1
	}

	var (
		samples []model.Sample
		row     int
	)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		line = strings.TrimRight(line, "; \t")
		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) < opts.MinFields || len(fields) < model.Axes {
			return nil, nil
		}

		var v [model.Axes]float64
		for i := range v {
			x, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
			if err != nil {
				return nil, nil
			}
			v[i] = x * opts.Scale
		}

		if row%opts.Downsample == 0 {
			samples = append(samples, model.Sample{AX: v[0], AY: v[1], AZ: v[2]})
		}
		row++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}
