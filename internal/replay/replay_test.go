package replay_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/fallsense/internal/adapters/transport/udp"
	"github.com/okian/fallsense/internal/domain/gate"
	"github.com/okian/fallsense/internal/domain/model"
	"github.com/okian/fallsense/internal/replay"
	"github.com/smartystreets/goconvey/convey"
)

func TestSyntheticFall(t *testing.T) {
	convey.Convey("Given a synthetic fall", t, func() {
		samples := replay.SyntheticFall(3)

		convey.Convey("Then its first full window opens the default gate", func() {
			convey.So(len(samples), convey.ShouldBeGreaterThan, 200)
			res := gate.Magnitude{High: 2.0, Low: 0.5}.Evaluate(model.Window(samples[:200]))
			convey.So(res.Open, convey.ShouldBeTrue)
			convey.So(res.Max, convey.ShouldBeGreaterThan, 2.0)
			convey.So(res.Min, convey.ShouldBeLessThan, 0.5)
		})

		convey.Convey("Then the same seed gives the same signal", func() {
			convey.So(replay.SyntheticFall(3), convey.ShouldResemble, samples)
		})
	})
}

func TestEncode(t *testing.T) {
	convey.Convey("Given an encoded sample", t, func() {
		payload := replay.Encode(model.Sample{AX: 0.1, AY: -1, AZ: 0.98}, 9.81)

		convey.Convey("Then the server decoder reads it back in g", func() {
			s, err := udp.Decode(payload, 1/9.81)
			convey.So(err, convey.ShouldBeNil)
			convey.So(s.AX, convey.ShouldAlmostEqual, 0.1, 1e-4)
			convey.So(s.AY, convey.ShouldAlmostEqual, -1, 1e-4)
			convey.So(s.AZ, convey.ShouldAlmostEqual, 0.98, 1e-4)
		})
	})
}

// ackAfter answers FALL once n datagrams have arrived.
func ackAfter(t *testing.T, n int) net.PacketConn {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		buf := make([]byte, 128)
		count := 0
		for {
			_, from, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			count++
			if count == n {
				_, _ = pc.WriteTo([]byte("FALL"), from)
			}
		}
	}()
	return pc
}

func TestRun(t *testing.T) {
	convey.Convey("Given a server that acknowledges the 200th sample", t, func() {
		pc := ackAfter(t, 200)
		defer pc.Close()

		health := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}))
		defer health.Close()

		cfg := &replay.Config{
			Target:    pc.LocalAddr().String(),
			HealthURL: health.URL,
			Scale:     1,
			Repeat:    1,
			AckWait:   300 * time.Millisecond,
			Seed:      1,
		}

		convey.Convey("When a synthetic fall is replayed", func() {
			stats, err := replay.Run(context.Background(), cfg)

			convey.Convey("Then every sample is sent and the ack is counted", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(stats.SamplesSent, convey.ShouldEqual, len(replay.SyntheticFall(1)))
				convey.So(stats.Acks, convey.ShouldEqual, 1)
				convey.So(stats.FirstAckAfter, convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When an archived trial is replayed", func() {
			var b strings.Builder
			for i := 0; i < 800; i++ {
				b.WriteString("0,0,250,0,0,0,0,0,0;\n")
			}
			path := filepath.Join(t.TempDir(), "D01_SA01_R01.txt")
			convey.So(os.WriteFile(path, []byte(b.String()), 0o600), convey.ShouldBeNil)

			cfg.TrialPath = path
			cfg.Read = replay.ReadScale{Downsample: 4, RawScale: 0.004, MinFields: 9}
			stats, err := replay.Run(context.Background(), cfg)

			convey.Convey("Then the decimated samples are streamed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(stats.SamplesSent, convey.ShouldEqual, 200)
			})
		})

		convey.Convey("When the health endpoint fails", func() {
			down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			defer down.Close()
			cfg.HealthURL = down.URL

			_, err := replay.Run(context.Background(), cfg)

			convey.Convey("Then nothing is sent", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
