package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/pulsemap/internal/config"
	"github.com/okian/pulsemap/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.StartDate = "2020-03-01"
	cfg.EndDate = "2020-03-05"
	cfg.BlendSteps = 2
	cfg.TickIntervalMS = 1
	cfg.SyntheticEntities = 5
	cfg.FrameWorkers = 2
	return cfg
}

func TestBuildService(t *testing.T) {
	convey.Convey("Given a small configuration", t, func() {
		ctx := context.Background()
		cfg := testConfig()

		convey.Convey("When the service is built and started", func() {
			svc, err := buildService(ctx, cfg, logger.Get())
			convey.So(err, convey.ShouldBeNil)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop(ctx)

			convey.Convey("Then it should expose the configured range and entities", func() {
				stats := svc.GetStats()
				convey.So(stats["dates"], convey.ShouldEqual, 5)
				convey.So(stats["entities"], convey.ShouldEqual, 5)
				convey.So(stats["state"], convey.ShouldEqual, "stopped")
			})
		})

		convey.Convey("When the configuration is invalid", func() {
			cfg.EndPolicy = "bounce"
			_, err := buildService(ctx, cfg, logger.Get())

			convey.Convey("Then building should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestHTTPServerPlaysToCompletion(t *testing.T) {
	convey.Convey("Given a running service behind the HTTP server", t, func() {
		ctx := context.Background()
		svc, err := buildService(ctx, testConfig(), logger.Get())
		convey.So(err, convey.ShouldBeNil)
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop(ctx)

		srv := newHTTPServer(ctx, ":0", svc)
		ts := httptest.NewServer(srv.Handler)
		defer ts.Close()

		convey.Convey("When playback is started over HTTP", func() {
			resp, err := http.Post(ts.URL+"/playback/play", "application/json", nil)
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)

			convey.Convey("Then it should stop on the last date with a full blend", func() {
				var snap struct {
					State   string  `json:"state"`
					Current string  `json:"current"`
					Blend   float64 `json:"blend"`
				}
				deadline := time.Now().Add(5 * time.Second)
				for time.Now().Before(deadline) {
					r, err := http.Get(ts.URL + "/playback")
					convey.So(err, convey.ShouldBeNil)
					_ = json.NewDecoder(r.Body).Decode(&snap)
					_ = r.Body.Close()
					if snap.State == "stopped" {
						break
					}
					time.Sleep(5 * time.Millisecond)
				}
				convey.So(snap.State, convey.ShouldEqual, "stopped")
				convey.So(snap.Current, convey.ShouldEqual, "2020-03-05")
				convey.So(snap.Blend, convey.ShouldEqual, 1.0)
			})
		})

		convey.Convey("When the API docs are requested", func() {
			resp, err := http.Get(ts.URL + "/openapi.yaml")
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("When the stream route is requested without a websocket upgrade", func() {
			resp, err := http.Get(ts.URL + "/stream")
			convey.So(err, convey.ShouldBeNil)
			_ = resp.Body.Close()

			convey.Convey("Then it should be rejected", func() {
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background metrics updaters", t, func() {
		convey.Convey("When the system updater runs until its context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			convey.So(func() { startSystemMetricsUpdater(ctx, 10*time.Millisecond) }, convey.ShouldNotPanic)
		})

		convey.Convey("When system metrics are updated directly", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
		})

		convey.Convey("When the service updater runs until its context ends", func() {
			svc, err := buildService(context.Background(), testConfig(), logger.Get())
			convey.So(err, convey.ShouldBeNil)
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
		})
	})
}
