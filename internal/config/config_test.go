package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/pulsemap/internal/config"
	"github.com/okian/pulsemap/internal/domain/dateseq"
	"github.com/okian/pulsemap/internal/domain/frame"
	"github.com/okian/pulsemap/internal/domain/model"
	"github.com/okian/pulsemap/internal/domain/playback"
	"github.com/okian/pulsemap/internal/domain/types"
	"github.com/okian/pulsemap/internal/domain/values"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.StartDate, convey.ShouldEqual, "2020-02-01")
			convey.So(cfg.EndDate, convey.ShouldEqual, "2021-01-18")
			convey.So(cfg.TickIntervalMS, convey.ShouldEqual, 40)
			convey.So(cfg.BlendSteps, convey.ShouldEqual, 20)
			convey.So(cfg.EndPolicy, convey.ShouldEqual, "stop")
			convey.So(cfg.FrameWorkers, convey.ShouldBeGreaterThanOrEqualTo, 2)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then the derived values should parse", func() {
			seq, err := cfg.Sequence()
			convey.So(err, convey.ShouldBeNil)
			convey.So(seq.First(), convey.ShouldEqual, dateseq.MustParse("2020-02-01"))
			convey.So(seq.Last(), convey.ShouldEqual, dateseq.MustParse("2021-01-18"))

			convey.So(cfg.TickInterval(), convey.ShouldEqual, 40*time.Millisecond)

			policy, err := cfg.Policy()
			convey.So(err, convey.ShouldBeNil)
			convey.So(policy, convey.ShouldEqual, playback.EndStop)

			scale, err := cfg.Scale()
			convey.So(err, convey.ShouldBeNil)
			convey.So(scale.NoData(), convey.ShouldResemble, scale.ColorFor(types.NoData))
			convey.So(len(cfg.StoreOptions()), convey.ShouldEqual, 1)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with invalid fields", t, func() {
		cases := map[string]func(c *config.Config){
			"empty addr":          func(c *config.Config) { c.Addr = "" },
			"reversed range":      func(c *config.Config) { c.StartDate, c.EndDate = "2020-03-05", "2020-03-01" },
			"bad date":            func(c *config.Config) { c.StartDate = "03/01/2020" },
			"zero tick":           func(c *config.Config) { c.TickIntervalMS = 0 },
			"zero steps":          func(c *config.Config) { c.BlendSteps = 0 },
			"unknown policy":      func(c *config.Config) { c.EndPolicy = "bounce" },
			"alpha out of range":  func(c *config.Config) { c.Alpha = 300 },
			"bad no-data color":   func(c *config.Config) { c.NoDataColor = "gray" },
			"unknown preset":      func(c *config.Config) { c.ScalePreset = "viridis" },
			"mismatched colors":   func(c *config.Config) { c.Breakpoints, c.Colors = []float64{0, 1}, []string{"#000000"} },
			"negative elevation":  func(c *config.Config) { c.ElevationScale = -1 },
			"negative window":     func(c *config.Config) { c.WindowDays = -7 },
			"negative factor":     func(c *config.Config) { c.ColorFactor = -0.001 },
			"zero workers":        func(c *config.Config) { c.FrameWorkers = 0 },
			"negative population": func(c *config.Config) { c.SyntheticEntities = -1 },
		}

		for name, mutate := range cases {
			convey.Convey("When "+name, func() {
				cfg := config.New()
				mutate(cfg)

				convey.Convey("Then Validate should report ErrInvalidConfig", func() {
					err := cfg.Validate()
					convey.So(err, convey.ShouldNotBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("When custom breakpoints are given", func() {
			cfg := config.New()
			cfg.Breakpoints = []float64{0, 10}
			cfg.Colors = []string{"#000000", "#FFFFFF"}
			cfg.Alpha = 255

			convey.Convey("Then the custom scale should win over the preset", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
				scale, err := cfg.Scale()
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(scale.Breakpoints()), convey.ShouldEqual, 2)
				convey.So(scale.ColorFor(types.Some(10)), convey.ShouldResemble, model.RGBA{255, 255, 255, 255})
			})
		})
	})
}

func TestConfig_CaseRateColoring(t *testing.T) {
	convey.Convey("Given the ylorrd preset fed per-100k rates scaled by 0.001", t, func() {
		cfg := config.New()
		cfg.ScalePreset = config.PresetYlOrRd
		cfg.PerCapita = 100000
		cfg.ColorFactor = 0.001
		cfg.Alpha = 150
		convey.So(cfg.Validate(), convey.ShouldBeNil)

		day := dateseq.MustParse("2020-03-01")
		store, err := values.NewBuilder().
			AddEntity(model.Entity{ID: "quiet", Population: 100000}).
			AddEntity(model.Entity{ID: "busy", Population: 100000}).
			AddEntity(model.Entity{ID: "peak", Population: 100000}).
			Record("quiet", day, 0).
			Record("busy", day, 100).
			Record("peak", day, 2000).
			Build()
		convey.So(err, convey.ShouldBeNil)
		scale, err := cfg.Scale()
		convey.So(err, convey.ShouldBeNil)

		c := frame.New(store, scale, cfg.FrameOptions()...)
		snap := playback.Snapshot{Current: day, Previous: day}
		colorOf := func(id string) model.RGBA {
			e, _ := store.Entity(id)
			return c.Attributes(snap, e).Color
		}

		convey.Convey("Then a zero rate is light orange, not the pale end", func() {
			convey.So(colorOf("quiet"), convey.ShouldResemble, model.RGBA{254, 214, 118, 150})
		})

		convey.Convey("Then 100 per 100k stays a light orange", func() {
			got := colorOf("busy")
			convey.So(float64(got[0]), convey.ShouldAlmostEqual, 254, 2)
			convey.So(float64(got[1]), convey.ShouldAlmostEqual, 186, 2)
			convey.So(float64(got[2]), convey.ShouldAlmostEqual, 87, 2)
		})

		convey.Convey("Then rates past 750 per 100k saturate to dark red", func() {
			convey.So(colorOf("peak"), convey.ShouldResemble, model.RGBA{0x80, 0x00, 0x26, 150})
		})

		convey.Convey("Then the legend is labelled in cases per 100k", func() {
			labelScale, suffix := cfg.Legend()
			convey.So(labelScale, convey.ShouldEqual, 1000)
			convey.So(suffix, convey.ShouldBeEmpty)
		})
	})

	convey.Convey("Given the default positivity preset", t, func() {
		cfg := config.New()

		convey.Convey("Then values pass through and the legend is in percent", func() {
			convey.So(len(cfg.FrameOptions()), convey.ShouldEqual, 2)
			labelScale, suffix := cfg.Legend()
			convey.So(labelScale, convey.ShouldEqual, 100)
			convey.So(suffix, convey.ShouldEqual, "%")
		})
	})
}
