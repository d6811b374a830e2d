package app_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/okian/fallsense/internal/app"
	"github.com/okian/fallsense/internal/domain/classifier"
	"github.com/okian/fallsense/internal/domain/debounce"
	"github.com/okian/fallsense/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const testWindow = 200

var (
	t0     = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sensor = &net.UDPAddr{IP: net.IPv4(10, 0, 0, 7), Port: 4210}
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Set(seconds float64) {
	c.now = t0.Add(time.Duration(seconds * float64(time.Second)))
}

type countingClassifier struct {
	score float64
	err   error
	calls int
}

func (c *countingClassifier) Score(context.Context, model.FeatureVector) (float64, error) {
	c.calls++
	return c.score, c.err
}

func (c *countingClassifier) Features() int { return model.FeatureLength(testWindow) }

type recordingAcker struct {
	mu  sync.Mutex
	to  []net.Addr
	err error
}

func (a *recordingAcker) Ack(to net.Addr) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.to = append(a.to, to)
	return a.err
}

type recordingDispatcher struct {
	alerts []model.Alert
	reject bool
}

func (d *recordingDispatcher) Enqueue(_ context.Context, a model.Alert) bool {
	if d.reject {
		return false
	}
	d.alerts = append(d.alerts, a)
	return true
}

// impact is a 2.5 g spike; rest is 1 g at rest.
var (
	rest   = model.Sample{AZ: 1.0}
	impact = model.Sample{AX: 1.5, AY: 0, AZ: 2.0}
)

type fixture struct {
	p     *app.Pipeline
	clf   *countingClassifier
	ack   *recordingAcker
	disp  *recordingDispatcher
	clock *fakeClock
}

func newFixture(score float64, evict int) fixture {
	f := fixture{
		clf:   &countingClassifier{score: score},
		ack:   &recordingAcker{},
		disp:  &recordingDispatcher{},
		clock: &fakeClock{now: t0},
	}
	p, err := app.NewPipeline(testWindow, f.clf,
		app.WithGate(2.0, 0.5),
		app.WithDebounce(debounce.New(debounce.WithThreshold(0.5), debounce.WithCooldown(10*time.Second))),
		app.WithEvict(evict),
		app.WithAcker(f.ack),
		app.WithDispatcher(f.disp),
		app.WithClock(f.clock.Now),
	)
	So(err, ShouldBeNil)
	f.p = p
	return f
}

// feedQualifying ingests n samples, one of which is the impact spike.
func (f fixture) feedQualifying(n int) []app.Outcome {
	ctx := context.Background()
	out := make([]app.Outcome, 0, n)
	for i := 0; i < n; i++ {
		s := rest
		if i == 0 {
			s = impact
		}
		out = append(out, f.p.Ingest(ctx, s, sensor))
	}
	return out
}

func TestPipelineBuffering(t *testing.T) {
	Convey("Given a pipeline whose classifier always says fall", t, func() {
		f := newFixture(0.99, 50)

		Convey("When 199 qualifying samples arrive", func() {
			out := f.feedQualifying(testWindow - 1)

			Convey("Then nothing is classified and no alert fires", func() {
				for _, o := range out {
					So(o, ShouldEqual, app.Buffering)
				}
				So(f.clf.calls, ShouldEqual, 0)
				So(f.disp.alerts, ShouldBeEmpty)
				So(f.ack.to, ShouldBeEmpty)
				So(f.p.BufferLen(), ShouldEqual, testWindow-1)
			})
		})
	})
}

func TestPipelineFire(t *testing.T) {
	Convey("Given a full window with a 2.5 g peak and a 0.9 score", t, func() {
		f := newFixture(0.9, 50)

		out := f.feedQualifying(testWindow)

		Convey("Then the 200th sample fires exactly once", func() {
			So(out[testWindow-1], ShouldEqual, app.Fired)
			So(f.clf.calls, ShouldEqual, 1)
			So(f.disp.alerts, ShouldHaveLength, 1)

			a := f.disp.alerts[0]
			So(a.Confidence, ShouldEqual, 0.9)
			So(a.Timestamp, ShouldEqual, t0)
			So(a.Source, ShouldEqual, "10.0.0.7:4210")
			So(a.MaxMagnitude, ShouldAlmostEqual, 2.5)
			So(a.ID, ShouldNotBeEmpty)
		})

		Convey("Then the sensor is acknowledged", func() {
			So(f.ack.to, ShouldHaveLength, 1)
			So(f.ack.to[0].String(), ShouldEqual, sensor.String())
		})

		Convey("Then the oldest samples are evicted", func() {
			So(f.p.BufferLen(), ShouldEqual, 150)
		})

		Convey("Then the stats reflect the alert", func() {
			st := f.p.Stats()
			So(st.Samples, ShouldEqual, testWindow)
			So(st.Alerts, ShouldEqual, 1)
			So(st.LastScore, ShouldEqual, 0.9)
			So(st.LastAlert, ShouldEqual, t0)
			So(st.BufferCapacity, ShouldEqual, testWindow)
		})

		Convey("When the ack fails", func() {
			f := newFixture(0.9, 50)
			f.ack.err = errors.New("network unreachable")
			out := f.feedQualifying(testWindow)

			Convey("Then the alert is still dispatched", func() {
				So(out[testWindow-1], ShouldEqual, app.Fired)
				So(f.disp.alerts, ShouldHaveLength, 1)
			})
		})

		Convey("When the dispatcher is saturated", func() {
			f := newFixture(0.9, 50)
			f.disp.reject = true
			out := f.feedQualifying(testWindow)

			Convey("Then the alert is counted as dropped and ingestion continues", func() {
				So(out[testWindow-1], ShouldEqual, app.Fired)
				So(f.p.Stats().DroppedAlerts, ShouldEqual, 1)
				So(f.p.Ingest(context.Background(), rest, sensor), ShouldEqual, app.Buffering)
			})
		})
	})

	Convey("Given eviction of the whole window", t, func() {
		f := newFixture(0.9, testWindow)
		f.feedQualifying(testWindow)

		Convey("Then the buffer is cleared", func() {
			So(f.p.BufferLen(), ShouldEqual, 0)
		})
	})
}

func TestPipelineGate(t *testing.T) {
	Convey("Given a full window of calm samples", t, func() {
		f := newFixture(0.99, 50)
		ctx := context.Background()

		var last app.Outcome
		for i := 0; i < testWindow; i++ {
			last = f.p.Ingest(ctx, rest, sensor)
		}

		Convey("Then the gate stays closed and the classifier is not called", func() {
			So(last, ShouldEqual, app.GateClosed)
			So(f.clf.calls, ShouldEqual, 0)
			So(f.p.BufferLen(), ShouldEqual, testWindow)
		})

		Convey("When a free-fall sample arrives", func() {
			out := f.p.Ingest(ctx, model.Sample{AZ: 0.1}, sensor)

			Convey("Then the low threshold opens the gate", func() {
				So(out, ShouldEqual, app.Fired)
				So(f.clf.calls, ShouldEqual, 1)
			})
		})
	})
}

func TestPipelineCooldown(t *testing.T) {
	Convey("Given an alert fired at t=0", t, func() {
		f := newFixture(0.95, 50)
		f.feedQualifying(testWindow)
		So(f.disp.alerts, ShouldHaveLength, 1)

		// refill tops the buffer back up with a spike as the newest sample.
		refill := func(at float64) map[app.Outcome]int {
			f.clock.Set(at)
			seen := map[app.Outcome]int{}
			for i := 0; i < 50; i++ {
				s := rest
				if i == 49 {
					s = impact
				}
				seen[f.p.Ingest(context.Background(), s, sensor)]++
			}
			return seen
		}

		Convey("When another qualifying window completes at t=5", func() {
			out := refill(5)

			Convey("Then it is classified but suppressed", func() {
				So(out[app.Suppressed], ShouldEqual, 1)
				So(out[app.Fired], ShouldEqual, 0)
				So(f.clf.calls, ShouldEqual, 2)
				So(f.disp.alerts, ShouldHaveLength, 1)
				So(f.ack.to, ShouldHaveLength, 1)
			})

			Convey("And again at t=11", func() {
				out := refill(11)

				Convey("Then a second alert fires", func() {
					So(out[app.Fired], ShouldEqual, 1)
					So(f.disp.alerts, ShouldHaveLength, 2)
					So(f.disp.alerts[1].Timestamp, ShouldEqual, t0.Add(11*time.Second))
				})
			})
		})
	})
}

func TestPipelineClassifierFailure(t *testing.T) {
	Convey("Given a classifier that errors", t, func() {
		f := newFixture(0.9, 50)
		f.clf.err = classifier.ErrFeatureLength
		out := f.feedQualifying(testWindow)

		Convey("Then the sample fails without an alert and the buffer is kept", func() {
			So(out[testWindow-1], ShouldEqual, app.Failed)
			So(f.disp.alerts, ShouldBeEmpty)
			So(f.p.Stats().Failures, ShouldEqual, 1)
			So(f.p.BufferLen(), ShouldEqual, testWindow)
		})
	})

	Convey("Given a model whose input length does not match the window", t, func() {
		_, err := app.NewPipeline(100, &countingClassifier{})

		Convey("Then the pipeline refuses to start", func() {
			So(errors.Is(err, classifier.ErrFeatureLength), ShouldBeTrue)
		})
	})
}
