package stream_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"golang.org/x/net/websocket"

	"github.com/okian/pulsemap/internal/adapters/stream"
	"github.com/okian/pulsemap/internal/domain/dateseq"
	"github.com/okian/pulsemap/internal/domain/frame"
	"github.com/okian/pulsemap/internal/domain/playback"
	"github.com/okian/pulsemap/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func frameAt(seq uint64, date string) frame.Frame {
	d := dateseq.MustParse(date)
	return frame.Frame{Seq: seq, Date: d, Previous: d}
}

func next(s *stream.Subscriber) (frame.Frame, bool) {
	select {
	case f, ok := <-s.Frames():
		return f, ok
	case <-time.After(time.Second):
		return frame.Frame{}, false
	}
}

func TestHubPublish(t *testing.T) {
	convey.Convey("Given a hub with a small buffer", t, func() {
		ctx := context.Background()
		hub := stream.NewHub(stream.WithBuffer(2))

		convey.Convey("When a subscriber joins and frames are published", func() {
			sub, err := hub.Subscribe()
			convey.So(err, convey.ShouldBeNil)
			convey.So(sub.ID, convey.ShouldNotBeEmpty)
			convey.So(hub.Publish(ctx, frameAt(1, "2020-03-01")), convey.ShouldBeNil)

			convey.Convey("Then the subscriber should receive the frame", func() {
				f, ok := next(sub)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(f.Seq, convey.ShouldEqual, 1)
				latest, ok := hub.Latest()
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(latest.Seq, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When a subscriber falls behind", func() {
			sub, _ := hub.Subscribe()
			for seq := uint64(1); seq <= 5; seq++ {
				convey.So(hub.Publish(ctx, frameAt(seq, "2020-03-01")), convey.ShouldBeNil)
			}

			convey.Convey("Then publishing should not block and the newest frames should be kept", func() {
				first, _ := next(sub)
				second, _ := next(sub)
				convey.So(first.Seq, convey.ShouldEqual, 4)
				convey.So(second.Seq, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When a frame arrives out of order", func() {
			convey.So(hub.Publish(ctx, frameAt(5, "2020-03-05")), convey.ShouldBeNil)
			convey.So(hub.Publish(ctx, frameAt(3, "2020-03-03")), convey.ShouldBeNil)

			convey.Convey("Then the older frame should be discarded", func() {
				latest, _ := hub.Latest()
				convey.So(latest.Seq, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When a frame from an earlier snapshot arrives after a later one", func() {
			reset := frameAt(4, "2020-03-01")
			reset.Version = 9
			reset.State = playback.Stopped
			late := frameAt(5, "2020-03-02")
			late.Version = 8
			late.State = playback.Running
			sub, _ := hub.Subscribe()
			convey.So(hub.Publish(ctx, reset), convey.ShouldBeNil)
			convey.So(hub.Publish(ctx, late), convey.ShouldBeNil)

			convey.Convey("Then the later snapshot should stay latest despite its lower sequence", func() {
				latest, _ := hub.Latest()
				convey.So(latest.Version, convey.ShouldEqual, 9)
				convey.So(latest.State, convey.ShouldEqual, playback.Stopped)
				f, ok := next(sub)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(f.Version, convey.ShouldEqual, 9)
				convey.So(len(sub.Frames()), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When a late subscriber joins", func() {
			convey.So(hub.Publish(ctx, frameAt(9, "2020-03-09")), convey.ShouldBeNil)
			sub, _ := hub.Subscribe()

			convey.Convey("Then it should get the latest frame right away", func() {
				f, ok := next(sub)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(f.Seq, convey.ShouldEqual, 9)
			})
		})

		convey.Convey("When a subscriber cancels", func() {
			sub, _ := hub.Subscribe()
			sub.Cancel()
			sub.Cancel()

			convey.Convey("Then its channel should close and it should leave the hub", func() {
				_, ok := <-sub.Frames()
				convey.So(ok, convey.ShouldBeFalse)
				convey.So(hub.Len(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the hub closes", func() {
			sub, _ := hub.Subscribe()
			convey.So(hub.Close(), convey.ShouldBeNil)
			convey.So(hub.Close(), convey.ShouldBeNil)

			convey.Convey("Then subscriptions end and later calls fail", func() {
				_, ok := <-sub.Frames()
				convey.So(ok, convey.ShouldBeFalse)
				sub.Cancel()
				_, err := hub.Subscribe()
				convey.So(errors.Is(err, stream.ErrClosed), convey.ShouldBeTrue)
				convey.So(errors.Is(hub.Publish(ctx, frameAt(1, "2020-03-01")), stream.ErrClosed), convey.ShouldBeTrue)
			})
		})
	})
}

func TestHubWebsocket(t *testing.T) {
	convey.Convey("Given a hub served over websocket", t, func() {
		hub := stream.NewHub()
		srv := httptest.NewServer(hub.Handler())
		defer srv.Close()
		defer func() { _ = hub.Close() }()

		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
		ws, err := websocket.Dial(wsURL, "", "http://localhost/")
		convey.So(err, convey.ShouldBeNil)
		defer func() { _ = ws.Close() }()

		convey.Convey("When frames are published", func() {
			deadline := time.Now().Add(time.Second)
			for hub.Len() == 0 && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
			convey.So(hub.Len(), convey.ShouldEqual, 1)
			convey.So(hub.Publish(context.Background(), frameAt(1, "2020-03-02")), convey.ShouldBeNil)

			convey.Convey("Then the client should read them as JSON", func() {
				_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
				var got frame.Frame
				convey.So(websocket.JSON.Receive(ws, &got), convey.ShouldBeNil)
				convey.So(got.Seq, convey.ShouldEqual, 1)
				convey.So(got.Date, convey.ShouldEqual, dateseq.MustParse("2020-03-02"))
			})
		})

		convey.Convey("When the client hangs up", func() {
			deadline := time.Now().Add(time.Second)
			for hub.Len() == 0 && time.Now().Before(deadline) {
				time.Sleep(time.Millisecond)
			}
			_ = ws.Close()

			convey.Convey("Then the subscription should be released", func() {
				deadline := time.Now().Add(2 * time.Second)
				for hub.Len() != 0 && time.Now().Before(deadline) {
					time.Sleep(5 * time.Millisecond)
				}
				convey.So(hub.Len(), convey.ShouldEqual, 0)
			})
		})
	})
}
