package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/fallsense/internal/offline"
	"github.com/okian/fallsense/internal/replay"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	var (
		target    = flag.String("target", replay.DefaultTarget, "UDP address of the server")
		healthURL = flag.String("health", "", "ops /healthz URL to check first")
		trial     = flag.String("trial", "", "archived trial file to replay (default: synthetic fall)")
		rate      = flag.Float64("rate", replay.DefaultRate, "samples per second, 0 for no pacing")
		scale     = flag.Float64("scale", 1, "multiplier from g to the sensor unit")
		repeat    = flag.Int("repeat", 1, "passes over the samples")
		wait      = flag.Duration("wait", replay.DefaultAckWait, "time to wait for acks after the last sample")
		seed      = flag.Int64("seed", 0, "synthetic noise seed (default: time based)")
		logFile   = flag.String("log", "", "also write logs to this file")
		verbose   = flag.Bool("verbose", false, "enable debug logging")
		help      = flag.Bool("help", false, "show help")
	)
	flag.Parse()

	if *help {
		replay.ShowHelp()
		return
	}

	if err := replay.SetupLogging(*logFile, *verbose); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	if *seed == 0 {
		*seed = replay.DefaultSeed()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	read := offline.DefaultReadOptions()
	cfg := &replay.Config{
		Target:    *target,
		HealthURL: *healthURL,
		TrialPath: *trial,
		Read: replay.ReadScale{
			Downsample: read.Downsample,
			RawScale:   read.Scale,
			MinFields:  read.MinFields,
		},
		Rate:    *rate,
		Scale:   *scale,
		Repeat:  *repeat,
		AckWait: *wait,
		Seed:    *seed,
		Timeout: replay.DefaultTimeout,
	}

	if _, err := replay.Run(ctx, cfg); err != nil {
		_, _ = os.Stderr.WriteString("Replay failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
