package replay

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/fallsense/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging logs to stdout and, when logFile is set, to that file too.
func SetupLogging(logFile string, verbose bool) error {
	var w io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.InitWithWriter(w, "text"); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		return logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the replay tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Fallsense Replay Tool
=====================

Streams accelerometer samples to a running fallsense server over UDP and
reports the FALL acknowledgements it receives.

Usage:
  go run ./cmd/replay [options]

Options:
  -target string     UDP address of the server (default "` + DefaultTarget + `")
  -health string     ops /healthz URL to check first (default: skip)
  -trial string      archived trial file to replay (default: synthetic fall)
  -rate float        samples per second, 0 for no pacing (default 50)
  -scale float       multiplier from g to the sensor unit, 9.81 for m/s² (default 1)
  -repeat int        passes over the samples (default 1)
  -wait duration     time to wait for acks after the last sample (default ` + DefaultAckWait.String() + `)
  -seed int          synthetic noise seed (default: time based)
  -log string        also write logs to this file
  -verbose           enable debug logging
  -help              show this help message

Examples:
  # Replay a synthetic fall at sensor rate
  go run ./cmd/replay

  # Replay an archived fall trial against a server expecting m/s²
  go run ./cmd/replay -trial SisFall_dataset/SA01/F01_SA01_R01.txt -scale 9.81
`)
}

// DefaultSeed returns a time-based seed.
func DefaultSeed() int64 { return time.Now().UnixNano() }
