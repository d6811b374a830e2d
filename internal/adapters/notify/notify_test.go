package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/okian/fallsense/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func testAlert() model.Alert {
	a := model.NewAlert(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 0.87, "10.0.0.7:4210")
	a.MaxMagnitude, a.MinMagnitude = 3.1, 0.2
	return a
}

func TestWebhook(t *testing.T) {
	Convey("Given a webhook endpoint", t, func() {
		var (
			mu       sync.Mutex
			gotBody  Payload
			gotToken string
			gotAuth  string
			status   = http.StatusOK
			delay    time.Duration
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			defer mu.Unlock()
			if delay > 0 {
				time.Sleep(delay)
			}
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &gotBody)
			gotToken = r.URL.Query().Get("token")
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(status)
		}))
		defer srv.Close()

		Convey("When an alert is posted with a credential", func() {
			w := NewWebhook(srv.URL, WithToken("s3cret"))
			err := w.Notify(context.Background(), testAlert())

			Convey("Then the payload and credential arrive", func() {
				So(err, ShouldBeNil)
				mu.Lock()
				defer mu.Unlock()
				So(gotBody.Confidence, ShouldEqual, 0.87)
				So(gotBody.Timestamp, ShouldEqual, "2026-03-01T12:00:00Z")
				So(gotBody.Source, ShouldEqual, "10.0.0.7:4210")
				So(gotBody.MaxMagnitude, ShouldEqual, 3.1)
				So(gotToken, ShouldEqual, "s3cret")
				So(gotAuth, ShouldEqual, "Bearer s3cret")
			})
		})

		Convey("When the endpoint answers with an error status", func() {
			status = http.StatusBadGateway
			err := NewWebhook(srv.URL).Notify(context.Background(), testAlert())

			Convey("Then a delivery error is returned", func() {
				So(errors.Is(err, ErrDelivery), ShouldBeTrue)
			})
		})

		Convey("When the endpoint is slower than the deadline", func() {
			delay = 300 * time.Millisecond
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()

			start := time.Now()
			err := NewWebhook(srv.URL).Notify(ctx, testAlert())

			Convey("Then the call gives up at the deadline", func() {
				So(errors.Is(err, ErrDelivery), ShouldBeTrue)
				So(time.Since(start), ShouldBeLessThan, 250*time.Millisecond)
			})
		})
	})
}

func TestMQTT(t *testing.T) {
	Convey("Given an MQTT notifier with a fake publisher", t, func() {
		var (
			topic   string
			payload []byte
			failErr error
		)
		m := newMQTT("fallsense/alerts", func(_ context.Context, tp string, p []byte) error {
			topic, payload = tp, p
			return failErr
		}, nil)

		Convey("When an alert is published", func() {
			err := m.Notify(context.Background(), testAlert())

			Convey("Then the JSON payload goes to the topic", func() {
				So(err, ShouldBeNil)
				So(topic, ShouldEqual, "fallsense/alerts")
				var p Payload
				So(json.Unmarshal(payload, &p), ShouldBeNil)
				So(p.Confidence, ShouldEqual, 0.87)
				m.Close()
			})
		})

		Convey("When the broker rejects the publish", func() {
			failErr = errors.New("not connected")
			err := m.Notify(context.Background(), testAlert())

			Convey("Then a delivery error is returned", func() {
				So(errors.Is(err, ErrDelivery), ShouldBeTrue)
			})
		})
	})
}

type stubNotifier struct {
	name  string
	err   error
	calls int
}

func (s *stubNotifier) Name() string { return s.name }

func (s *stubNotifier) Notify(context.Context, model.Alert) error {
	s.calls++
	return s.err
}

func TestMulti(t *testing.T) {
	Convey("Given a fan-out with one failing member", t, func() {
		bad := &stubNotifier{name: "bad", err: ErrDelivery}
		good := &stubNotifier{name: "good"}
		m := NewMulti(0, bad, good, NewLog())

		err := m.Notify(context.Background(), testAlert())

		Convey("Then every member is attempted and the failure is reported", func() {
			So(bad.calls, ShouldEqual, 1)
			So(good.calls, ShouldEqual, 1)
			So(errors.Is(err, ErrDelivery), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "bad")
			So(m.Len(), ShouldEqual, 3)
		})
	})

	Convey("Given a stalled webhook ahead of an MQTT sink", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(300 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		var (
			mu        sync.Mutex
			published bool
		)
		mq := newMQTT("fallsense/alerts", func(ctx context.Context, _ string, _ []byte) error {
			select {
			case <-time.After(20 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
			mu.Lock()
			published = true
			mu.Unlock()
			return nil
		}, nil)

		m := NewMulti(100*time.Millisecond, NewWebhook(srv.URL), mq)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		err := m.Notify(ctx, testAlert())

		Convey("Then the MQTT alert is still delivered and only the webhook fails", func() {
			mu.Lock()
			defer mu.Unlock()
			So(published, ShouldBeTrue)
			So(errors.Is(err, ErrDelivery), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "webhook")
			So(err.Error(), ShouldNotContainSubstring, "mqtt")
		})
	})
}
