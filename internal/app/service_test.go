package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/okian/pulsemap/internal/app"
	"github.com/okian/pulsemap/internal/domain/colorscale"
	"github.com/okian/pulsemap/internal/domain/dateseq"
	"github.com/okian/pulsemap/internal/domain/frame"
	"github.com/okian/pulsemap/internal/domain/model"
	"github.com/okian/pulsemap/internal/domain/playback"
	"github.com/okian/pulsemap/internal/domain/playback/clocktest"
	"github.com/okian/pulsemap/internal/domain/values"
	"github.com/okian/pulsemap/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var (
	d1 = dateseq.MustParse("2020-03-01")
	d2 = dateseq.MustParse("2020-03-02")
	d3 = dateseq.MustParse("2020-03-03")
)

func fixture() (*dateseq.Sequence, *values.Store, *colorscale.Scale) {
	seq, err := dateseq.Build(d1, d3)
	if err != nil {
		panic(err)
	}
	store, err := values.NewBuilder().
		AddEntity(model.Entity{ID: "a", Population: 1000}).
		AddEntity(model.Entity{ID: "b", Population: 2000}).
		Record("a", d1, 0).
		Record("a", d2, 0.1).
		Record("a", d3, 0.2).
		Record("b", d3, 0.3).
		Build()
	if err != nil {
		panic(err)
	}
	scale, err := colorscale.Positivity()
	if err != nil {
		panic(err)
	}
	return seq, store, scale
}

func newService(clock *clocktest.Manual) *service.Service {
	seq, store, scale := fixture()
	return service.New(seq, store, scale,
		service.WithClock(clock),
		service.WithBlendSteps(2),
		service.WithTickInterval(10*time.Millisecond),
		service.WithWorkerCount(2),
		service.WithQueueSize(64),
		service.WithStreamBuffer(64),
		service.WithFrameOptions(frame.WithElevationScale(100)),
	)
}

// eventually polls cond for up to two seconds.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func TestService_New(t *testing.T) {
	Convey("Given a new service that was not started", t, func() {
		svc := newService(clocktest.New())
		ctx := context.Background()

		Convey("Then control operations should report ErrNotStarted", func() {
			_, err := svc.Play(ctx)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.LatestFrame(ctx)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Subscribe(ctx)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.Hub(), ShouldBeNil)
		})

		Convey("Then the static views should still work", func() {
			So(svc.Dates(ctx).Len(), ShouldEqual, 3)
			So(len(svc.Legend(ctx)), ShouldEqual, 7)
			So(svc.NoDataColor(ctx), ShouldResemble, colorscale.DefaultNoData)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})

	Convey("Given a service missing its inputs", t, func() {
		svc := service.New(nil, nil, nil)

		Convey("Then Start should fail", func() {
			So(svc.Start(context.Background()), ShouldNotBeNil)
		})
	})
}

func TestService_Playback(t *testing.T) {
	Convey("Given a started service on a manual clock", t, func() {
		clock := clocktest.New()
		svc := newService(clock)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When it has not been played", func() {
			snap, err := svc.Snapshot(ctx)

			Convey("Then it should be stopped at the first date with an initial frame", func() {
				So(err, ShouldBeNil)
				So(snap.State, ShouldEqual, playback.Stopped)
				So(snap.Current, ShouldEqual, d1)
				So(eventually(func() bool { _, ok := svc.Hub().Latest(); return ok }), ShouldBeTrue)
				f, err := svc.LatestFrame(ctx)
				So(err, ShouldBeNil)
				So(f.Date, ShouldEqual, d1)
				So(len(f.Attributes), ShouldEqual, 2)
			})
		})

		Convey("When it plays to the end", func() {
			_, err := svc.Play(ctx)
			So(err, ShouldBeNil)
			clock.FireN(10)
			snap, _ := svc.Snapshot(ctx)

			Convey("Then it should stop on the last date fully blended", func() {
				So(snap.State, ShouldEqual, playback.Stopped)
				So(snap.Current, ShouldEqual, d3)
				So(snap.Blend, ShouldEqual, 1)
				So(clock.Live(), ShouldEqual, 0)
			})

			Convey("Then the latest frame should catch up with the final state", func() {
				So(eventually(func() bool {
					f, err := svc.LatestFrame(ctx)
					return err == nil && f.Date == d3 && f.Blend == 1
				}), ShouldBeTrue)
				f, _ := svc.LatestFrame(ctx)
				So(f.Attributes[0].EntityID, ShouldEqual, "a")
				So(f.Attributes[0].Value.Value, ShouldAlmostEqual, 0.2)
				So(f.Attributes[0].Elevation, ShouldAlmostEqual, 20)
			})
		})

		Convey("When a stream subscriber is attached during playback", func() {
			sub, err := svc.Subscribe(ctx)
			So(err, ShouldBeNil)
			defer sub.Cancel()

			_, err = svc.Play(ctx)
			So(err, ShouldBeNil)
			clock.Fire()

			Convey("Then it should receive frames in increasing snapshot order", func() {
				var last uint64
				received := 0
				timeout := time.After(2 * time.Second)
				for received < 2 {
					select {
					case f := <-sub.Frames():
						if received > 0 {
							So(f.Version, ShouldBeGreaterThan, last)
						}
						last = f.Version
						received++
					case <-timeout:
						t.Fatalf("received only %d frames", received)
					}
				}
			})
		})

		Convey("When pausing, seeking and resuming", func() {
			_, _ = svc.Play(ctx)
			paused, err := svc.Pause(ctx)
			So(err, ShouldBeNil)
			seeked, err := svc.Seek(ctx, d2)
			So(err, ShouldBeNil)
			byIndex, err := svc.SeekIndex(ctx, 2)
			So(err, ShouldBeNil)
			resumed, err := svc.Resume(ctx)
			So(err, ShouldBeNil)

			Convey("Then each step should report the expected state", func() {
				So(paused.State, ShouldEqual, playback.Paused)
				So(seeked.Current, ShouldEqual, d2)
				So(seeked.Blend, ShouldEqual, 0)
				So(byIndex.Current, ShouldEqual, d3)
				So(resumed.State, ShouldEqual, playback.Running)
				So(clock.Live(), ShouldEqual, 1)
			})
		})

		Convey("When toggling and resetting", func() {
			toggled, err := svc.Toggle(ctx)
			So(err, ShouldBeNil)
			reset, err := svc.Reset(ctx)
			So(err, ShouldBeNil)

			Convey("Then it should run and then return to the start", func() {
				So(toggled.State, ShouldEqual, playback.Running)
				So(reset.State, ShouldEqual, playback.Stopped)
				So(reset.Current, ShouldEqual, d1)
				So(clock.Live(), ShouldEqual, 0)
			})
		})

		Convey("When seeking outside the range", func() {
			_, err := svc.Seek(ctx, dateseq.MustParse("2021-01-01"))

			Convey("Then it should report ErrOutOfRange", func() {
				So(errors.Is(err, playback.ErrOutOfRange), ShouldBeTrue)
			})
		})

		Convey("When changing the speed", func() {
			snap, err := svc.SetSpeed(ctx, 500)

			Convey("Then the interval should be split across blend steps", func() {
				So(err, ShouldBeNil)
				So(snap.TickIntervalMS, ShouldEqual, 250)
			})
		})

		Convey("When setting an invalid rate", func() {
			_, err := svc.SetRate(ctx, 0)

			Convey("Then it should report ErrInvalidRate", func() {
				So(errors.Is(err, playback.ErrInvalidRate), ShouldBeTrue)
			})
		})

		Convey("When asking for a frame at a date", func() {
			f, err := svc.FrameAt(ctx, d2)
			_, outErr := svc.FrameAt(ctx, dateseq.MustParse("2019-12-31"))

			Convey("Then it should compose that date with no blend", func() {
				So(err, ShouldBeNil)
				So(f.Date, ShouldEqual, d2)
				So(f.Previous, ShouldEqual, d2)
				So(f.Blend, ShouldEqual, 0)
				So(f.Attributes[0].Value.Value, ShouldEqual, 0.1)
				So(f.Attributes[1].Value.Valid, ShouldBeFalse)
				So(f.Attributes[1].Color, ShouldResemble, colorscale.DefaultNoData)
				So(errors.Is(outErr, playback.ErrOutOfRange), ShouldBeTrue)
			})
		})

		Convey("When reading stats", func() {
			stats := svc.GetStats()

			Convey("Then they should describe the running pipeline", func() {
				So(stats["started"], ShouldEqual, true)
				So(stats["state"], ShouldEqual, "stopped")
				So(stats["entities"], ShouldEqual, 2)
				So(stats["dates"], ShouldEqual, 3)
				So(stats["activeTimers"], ShouldEqual, 0)
				So(stats, ShouldContainKey, "queueLength")
				So(stats, ShouldContainKey, "subscribers")
			})
		})
	})
}

func TestService_SmallQueue(t *testing.T) {
	Convey("Given a service with a one-slot frame queue and a single worker", t, func() {
		seq, store, scale := fixture()
		clock := clocktest.New()
		svc := service.New(seq, store, scale,
			service.WithClock(clock),
			service.WithBlendSteps(2),
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
			service.WithStreamBuffer(1),
		)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)

		Convey("When playback runs to the end faster than frames are composed", func() {
			_, err := svc.Play(ctx)
			So(err, ShouldBeNil)
			clock.FireN(10)
			snap, err := svc.Snapshot(ctx)
			So(err, ShouldBeNil)

			Convey("Then the published frame should settle on the final state", func() {
				So(eventually(func() bool {
					f, ok := svc.Hub().Latest()
					return ok && f.State == playback.Stopped && f.Date == d3 && f.Blend == 1
				}), ShouldBeTrue)
				f, _ := svc.Hub().Latest()
				So(f.Version, ShouldEqual, snap.Version)
				So(svc.GetStats(), ShouldContainKey, "framesEvicted")
			})
		})

		Convey("When playback is reset after running", func() {
			_, err := svc.Play(ctx)
			So(err, ShouldBeNil)
			clock.FireN(3)
			reset, err := svc.Reset(ctx)
			So(err, ShouldBeNil)

			Convey("Then the published frame should be the reset state", func() {
				So(eventually(func() bool {
					f, ok := svc.Hub().Latest()
					return ok && f.Version == reset.Version
				}), ShouldBeTrue)
				f, _ := svc.Hub().Latest()
				So(f.State, ShouldEqual, playback.Stopped)
				So(f.Date, ShouldEqual, d1)
				So(f.Blend, ShouldEqual, 0)
			})
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a running service", t, func() {
		clock := clocktest.New()
		svc := newService(clock)
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		_, err := svc.Play(ctx)
		So(err, ShouldBeNil)
		sub, err := svc.Subscribe(ctx)
		So(err, ShouldBeNil)

		Convey("When it stops", func() {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			svc.Stop(stopCtx)
			svc.Stop(stopCtx)

			Convey("Then the timer should be gone and operations should fail", func() {
				So(clock.Live(), ShouldEqual, 0)
				_, err := svc.Play(ctx)
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})

			Convey("Then stream subscriptions should end", func() {
				closed := eventually(func() bool {
					select {
					case _, ok := <-sub.Frames():
						return !ok
					default:
						return false
					}
				})
				So(closed, ShouldBeTrue)
			})
		})
	})
}
