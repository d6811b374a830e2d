package window_test

import (
	"errors"
	"testing"

	"github.com/okian/fallsense/internal/domain/model"
	"github.com/okian/fallsense/internal/domain/window"
	. "github.com/smartystreets/goconvey/convey"
)

func sample(i int) model.Sample {
	return model.Sample{AX: float64(i)}
}

func TestBuffer(t *testing.T) {
	Convey("Given a buffer of capacity 4", t, func() {
		b, err := window.New(4)
		So(err, ShouldBeNil)

		Convey("When fewer than 4 samples are pushed", func() {
			for i := 0; i < 3; i++ {
				b.Push(sample(i))
			}

			Convey("Then it is not full and keeps insertion order", func() {
				So(b.Full(), ShouldBeFalse)
				So(b.Len(), ShouldEqual, 3)
				snap := b.Snapshot()
				So(snap[0].AX, ShouldEqual, 0)
				So(snap[2].AX, ShouldEqual, 2)
			})
		})

		Convey("When many more samples than capacity are pushed", func() {
			for i := 0; i < 23; i++ {
				b.Push(sample(i))
			}

			Convey("Then it holds exactly the most recent four", func() {
				So(b.Full(), ShouldBeTrue)
				snap := b.Snapshot()
				So(len(snap), ShouldEqual, 4)
				for i, s := range snap {
					So(s.AX, ShouldEqual, float64(19+i))
				}
			})
		})

		Convey("When a prefix is evicted from a full buffer", func() {
			for i := 0; i < 4; i++ {
				b.Push(sample(i))
			}
			b.Evict(3)

			Convey("Then only the newest sample remains and refilling slides on", func() {
				So(b.Len(), ShouldEqual, 1)
				So(b.Snapshot()[0].AX, ShouldEqual, 3)

				for i := 4; i < 7; i++ {
					b.Push(sample(i))
				}
				So(b.Full(), ShouldBeTrue)
				So(b.Snapshot()[0].AX, ShouldEqual, 3)
				So(b.Snapshot()[3].AX, ShouldEqual, 6)
			})
		})

		Convey("When evicting more than held", func() {
			b.Push(sample(1))
			b.Evict(10)

			Convey("Then the buffer is empty", func() {
				So(b.Len(), ShouldEqual, 0)
				So(len(b.Snapshot()), ShouldEqual, 0)
			})
		})

		Convey("When evicting zero", func() {
			b.Push(sample(1))
			b.Evict(0)

			Convey("Then nothing changes", func() {
				So(b.Len(), ShouldEqual, 1)
			})
		})

		Convey("When the snapshot is appended to", func() {
			for i := 0; i < 4; i++ {
				b.Push(sample(i))
			}
			snap := b.Snapshot()
			_ = append(snap, sample(99))

			Convey("Then the buffer contents are untouched", func() {
				b.Push(sample(4))
				So(b.Snapshot()[3].AX, ShouldEqual, 4)
			})
		})
	})

	Convey("Given an invalid capacity", t, func() {
		b, err := window.New(0)

		Convey("Then construction fails", func() {
			So(b, ShouldBeNil)
			So(errors.Is(err, window.ErrCapacity), ShouldBeTrue)
		})
	})
}
