package app_test

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/fallsense/internal/app"
	"github.com/okian/fallsense/internal/config"
	"github.com/okian/fallsense/internal/domain/classifier"
	"github.com/okian/fallsense/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type chanNotifier struct {
	alerts chan model.Alert
}

func (n *chanNotifier) Name() string { return "chan" }

func (n *chanNotifier) Notify(_ context.Context, a model.Alert) error {
	n.alerts <- a
	return nil
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.WindowSize = 20
	cfg.AlertEvict = 20
	cfg.NotifyTimeoutMS = 200
	return cfg
}

func TestServiceEndToEnd(t *testing.T) {
	Convey("Given a started service with an always-fall classifier", t, func() {
		cfg := testConfig()
		n := &chanNotifier{alerts: make(chan model.Alert, 4)}
		clf := classifier.Func{N: cfg.FeatureLength(), Fn: func(model.FeatureVector) float64 { return 0.93 }}

		svc := app.New(cfg, app.WithClassifier(clf), app.WithNotifier(n))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		conn, err := net.Dial("udp", svc.Addr().String())
		So(err, ShouldBeNil)
		defer conn.Close()

		Convey("When a sensor streams a window containing an impact", func() {
			_, _ = conn.Write([]byte("1.5,0.0,2.0\n"))
			for i := 1; i < cfg.WindowSize; i++ {
				_, _ = conn.Write([]byte("0.0,0.0,1.0\n"))
			}

			Convey("Then the sensor receives the acknowledgement", func() {
				_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
				buf := make([]byte, 16)
				n, err := conn.Read(buf)
				So(err, ShouldBeNil)
				So(string(buf[:n]), ShouldEqual, "FALL")
			})

			Convey("Then the notifier receives the alert", func() {
				select {
				case a := <-n.alerts:
					So(a.Confidence, ShouldEqual, 0.93)
					So(a.MaxMagnitude, ShouldAlmostEqual, 2.5)
				case <-time.After(3 * time.Second):
					So("no alert delivered", ShouldBeEmpty)
				}

				stats := svc.GetStats()
				So(stats["started"], ShouldBeTrue)
				st, ok := stats["pipeline"].(app.PipelineStats)
				So(ok, ShouldBeTrue)
				So(st.Alerts, ShouldEqual, 1)
			})
		})

		Convey("When the service is stopped", func() {
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then stats report it and a second stop is harmless", func() {
				So(svc.GetStats()["started"], ShouldBeFalse)
				So(svc.Stop(ctx), ShouldBeNil)
			})
		})
	})
}

func TestServiceStartFailures(t *testing.T) {
	Convey("Given a missing model artifact", t, func() {
		cfg := testConfig()
		cfg.ModelPath = filepath.Join(t.TempDir(), "absent.json")

		err := app.New(cfg).Start(context.Background())

		Convey("Then Start fails with a model load error", func() {
			So(errors.Is(err, classifier.ErrModelLoad), ShouldBeTrue)
		})
	})

	Convey("Given a port that is already taken", t, func() {
		busy, err := net.ListenPacket("udp", "127.0.0.1:0")
		So(err, ShouldBeNil)
		defer busy.Close()

		cfg := testConfig()
		cfg.ListenAddr = busy.LocalAddr().String()
		clf := classifier.Func{N: cfg.FeatureLength(), Fn: func(model.FeatureVector) float64 { return 0 }}

		err = app.New(cfg, app.WithClassifier(clf)).Start(context.Background())

		Convey("Then Start fails instead of serving", func() {
			So(err, ShouldNotBeNil)
		})
	})
}
