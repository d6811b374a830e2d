package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/fallsense/internal/adapters/mq/queue"
	worker "github.com/okian/fallsense/internal/adapters/mq/worker"
	model "github.com/okian/fallsense/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

// stubbornNotifier ignores ctx and holds the worker for hold.
type stubbornNotifier struct {
	hold time.Duration
}

func (s stubbornNotifier) Name() string { return "stubborn" }

func (s stubbornNotifier) Notify(context.Context, model.Alert) error {
	time.Sleep(s.hold)
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	got     []model.Alert
	err     error
	block   bool
	calls   int
	timeout bool
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Notify(ctx context.Context, a model.Alert) error {
	r.mu.Lock()
	r.calls++
	block, err := r.block, r.err
	r.mu.Unlock()

	if block {
		<-ctx.Done()
		r.mu.Lock()
		r.timeout = true
		r.mu.Unlock()
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.got = append(r.got, a)
	r.mu.Unlock()
	return nil
}

func (r *recordingNotifier) snapshot() (delivered, calls int, timedOut bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got), r.calls, r.timeout
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool draining a queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		n := &recordingNotifier{}
		pool := worker.NewPool(2, q, n, worker.WithTimeout(50*time.Millisecond))
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 2)

		convey.Convey("When alerts are enqueued", func() {
			for i := 0; i < 3; i++ {
				convey.So(q.Enqueue(ctx, model.NewAlert(time.Now(), 0.9, "sensor")), convey.ShouldBeTrue)
			}

			convey.Convey("Then each is delivered exactly once", func() {
				convey.So(eventually(func() bool { d, _, _ := n.snapshot(); return d == 3 }), convey.ShouldBeTrue)
				convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
				_, calls, _ := n.snapshot()
				convey.So(calls, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the notifier fails", func() {
			n.err = errors.New("endpoint down")
			q.Enqueue(ctx, model.NewAlert(time.Now(), 0.9, "sensor"))

			convey.Convey("Then the alert is attempted once and not retried", func() {
				convey.So(eventually(func() bool { _, c, _ := n.snapshot(); return c == 1 }), convey.ShouldBeTrue)
				time.Sleep(50 * time.Millisecond)
				_, calls, _ := n.snapshot()
				convey.So(calls, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the notifier hangs", func() {
			n.block = true
			q.Enqueue(ctx, model.NewAlert(time.Now(), 0.9, "sensor"))

			convey.Convey("Then the delivery timeout cancels it", func() {
				convey.So(eventually(func() bool { _, _, to := n.snapshot(); return to }), convey.ShouldBeTrue)
			})
		})
	})
}

func TestWorkerShutdown(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		q := queue.NewInMemoryQueue()
		w := worker.NewInMemoryWorker(q, &recordingNotifier{}, worker.WithName("w-test"))
		go w.Run(context.Background())

		convey.Convey("When it is shut down", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			convey.Convey("Then it stops promptly and a second call is harmless", func() {
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
				convey.So(w.Shutdown(ctx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPoolShutdownTimeout(t *testing.T) {
	convey.Convey("Given a pool whose only worker is stuck in a delivery", t, func() {
		q := queue.NewInMemoryQueue()
		pool := worker.NewPool(1, q, stubbornNotifier{hold: 2 * time.Second}, worker.WithTimeout(5*time.Second))
		pool.Start(context.Background())
		convey.So(q.Enqueue(context.Background(), model.NewAlert(time.Now(), 0.9, "sensor")), convey.ShouldBeTrue)
		time.Sleep(20 * time.Millisecond)

		convey.Convey("When shutdown is given less time than the delivery needs", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			err := pool.Shutdown(ctx)

			convey.Convey("Then the abandoned worker is reported", func() {
				convey.So(errors.Is(err, worker.ErrShutdownTimeout), convey.ShouldBeTrue)
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}
