package replay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/okian/fallsense/internal/domain/model"
	"github.com/okian/fallsense/internal/offline"
	"github.com/okian/fallsense/pkg/logger"
)

// Run executes a complete replay.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("replay")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting replay",
		logger.String("target", cfg.Target),
		logger.String("trial", cfg.TrialPath),
		logger.Float64("rate", cfg.Rate),
		logger.Int("repeat", cfg.Repeat))

	// Step 1: Check service health
	if cfg.HealthURL != "" {
		if err := checkServiceHealth(ctx, cfg); err != nil {
			return stats, fmt.Errorf("service health check failed: %w", err)
		}
	}

	// Step 2: Load samples
	samples, err := loadSamples(cfg)
	if err != nil {
		return stats, fmt.Errorf("load samples: %w", err)
	}

	// Step 3: Stream them and collect acks
	if err := stream(ctx, cfg, samples, stats); err != nil {
		return stats, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

func loadSamples(cfg *Config) ([]model.Sample, error) {
	if cfg.TrialPath == "" {
		return SyntheticFall(cfg.Seed), nil
	}
	t, err := offline.ReadTrial(cfg.TrialPath, offline.ReadOptions{
		Downsample: cfg.Read.Downsample,
		Scale:      cfg.Read.RawScale,
		MinFields:  cfg.Read.MinFields,
	})
	if err != nil {
		return nil, err
	}
	if len(t.Samples) == 0 {
		return nil, fmt.Errorf("%s: %w", cfg.TrialPath, offline.ErrNoTrials)
	}
	return t.Samples, nil
}

// Encode renders a sample the way the sensor firmware does.
func Encode(s model.Sample, scale float64) []byte {
	b := make([]byte, 0, 48)
	b = strconv.AppendFloat(b, s.AX*scale, 'f', 4, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, s.AY*scale, 'f', 4, 64)
	b = append(b, ',')
	b = strconv.AppendFloat(b, s.AZ*scale, 'f', 4, 64)
	return append(b, '\n')
}

func stream(ctx context.Context, cfg *Config, samples []model.Sample, stats *Stats) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", cfg.Target)
	if err != nil {
		return fmt.Errorf("dial %s: %w", cfg.Target, err)
	}
	defer conn.Close()

	scale := cfg.Scale
	if scale == 0 {
		scale = 1
	}
	repeat := cfg.Repeat
	if repeat < 1 {
		repeat = 1
	}

	var (
		acks       atomic.Int64
		firstAckNS atomic.Int64
		start      = time.Now()
		readDone   = make(chan struct{})
	)
	go func() {
		defer close(readDone)
		buf := make([]byte, ackBufferSize)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				var ne net.Error
				if errors.As(err, &ne) && ne.Timeout() {
					return
				}
				// ICMP port unreachable surfaces here while nobody listens.
				continue
			}
			acks.Add(1)
			firstAckNS.CompareAndSwap(0, int64(time.Since(start)))
			logger.Get().Named("replay").Info(ctx, "ack received", logger.String("payload", string(buf[:n])))
		}
	}()

	var tick <-chan time.Time
	if cfg.Rate > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / cfg.Rate))
		defer ticker.Stop()
		tick = ticker.C
	}

	for pass := 0; pass < repeat; pass++ {
		for _, s := range samples {
			if tick != nil {
				select {
				case <-ctx.Done():
					_ = conn.Close()
					<-readDone
					return ctx.Err()
				case <-tick:
				}
			} else if ctx.Err() != nil {
				_ = conn.Close()
				<-readDone
				return ctx.Err()
			}
			if _, err := conn.Write(Encode(s, scale)); err != nil {
				stats.SendErrors++
				continue
			}
			stats.SamplesSent++
		}
	}

	// Stop reading once the ack window has passed.
	_ = conn.SetReadDeadline(time.Now().Add(cfg.AckWait))
	<-readDone

	stats.Acks = int(acks.Load())
	stats.FirstAckAfter = time.Duration(firstAckNS.Load())
	return nil
}

// checkServiceHealth verifies the live server is ready.
func checkServiceHealth(ctx context.Context, cfg *Config) error {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	resp, err := resty.New().SetTimeout(timeout).R().SetContext(ctx).Get(cfg.HealthURL)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("health check returned status %d", resp.StatusCode())
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// displayFinalStats logs the final replay statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var samplesPerSecond float64
	if stats.Duration > 0 {
		samplesPerSecond = float64(stats.SamplesSent) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("samplesSent", stats.SamplesSent),
		logger.Int("sendErrors", stats.SendErrors),
		logger.Int("acks", stats.Acks),
		logger.Duration("firstAckAfter", stats.FirstAckAfter),
		logger.Duration("duration", stats.Duration),
		logger.Float64("samplesPerSecond", samplesPerSecond))
}
