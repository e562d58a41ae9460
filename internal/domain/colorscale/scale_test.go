package colorscale_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/pulsemap/internal/domain/colorscale"
	"github.com/okian/pulsemap/internal/domain/model"
	"github.com/okian/pulsemap/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestScale(t *testing.T) {
	Convey("Given a two-segment scale", t, func() {
		s, err := colorscale.New([]colorscale.Breakpoint{
			{Threshold: 0, Color: colorscale.RGB{0, 0, 0}},
			{Threshold: 10, Color: colorscale.RGB{100, 200, 50}},
			{Threshold: 20, Color: colorscale.RGB{200, 0, 250}},
		}, colorscale.WithAlpha(128))
		So(err, ShouldBeNil)

		Convey("Then each threshold maps to its stop color exactly", func() {
			So(s.ColorFor(types.Some(0)), ShouldResemble, model.RGBA{0, 0, 0, 128})
			So(s.ColorFor(types.Some(10)), ShouldResemble, model.RGBA{100, 200, 50, 128})
			So(s.ColorFor(types.Some(20)), ShouldResemble, model.RGBA{200, 0, 250, 128})
		})

		Convey("Then values between stops interpolate per channel", func() {
			So(s.ColorFor(types.Some(5)), ShouldResemble, model.RGBA{50, 100, 25, 128})
			So(s.ColorFor(types.Some(15)), ShouldResemble, model.RGBA{150, 100, 150, 128})
		})

		Convey("Then values outside the table clamp", func() {
			So(s.ColorFor(types.Some(-3)), ShouldResemble, model.RGBA{0, 0, 0, 128})
			So(s.ColorFor(types.Some(1e9)), ShouldResemble, model.RGBA{200, 0, 250, 128})
		})

		Convey("Then it is continuous approaching a stop from below", func() {
			c := s.ColorFor(types.Some(10 - 1e-9))
			So(c, ShouldResemble, model.RGBA{100, 200, 50, 128})
		})

		Convey("Then no data maps to the sentinel", func() {
			So(s.ColorFor(types.NoData), ShouldResemble, colorscale.DefaultNoData)
			So(s.ColorFor(types.Some(math.NaN())), ShouldResemble, colorscale.DefaultNoData)
		})

		Convey("Then repeated calls agree", func() {
			So(s.ColorFor(types.Some(7.3)), ShouldResemble, s.ColorFor(types.Some(7.3)))
		})
	})

	Convey("Given the sentinel is independent of the table", t, func() {
		a, err := colorscale.New([]colorscale.Breakpoint{{Threshold: 0, Color: colorscale.RGB{1, 2, 3}}})
		So(err, ShouldBeNil)
		b, err := colorscale.Positivity()
		So(err, ShouldBeNil)
		So(a.ColorFor(types.NoData), ShouldResemble, b.ColorFor(types.NoData))

		custom, err := colorscale.Positivity(colorscale.WithNoDataColor(model.RGBA{9, 9, 9, 9}))
		So(err, ShouldBeNil)
		So(custom.ColorFor(types.NoData), ShouldResemble, model.RGBA{9, 9, 9, 9})
	})

	Convey("Given the positivity scale", t, func() {
		s, err := colorscale.Positivity()
		So(err, ShouldBeNil)

		Convey("When the value is 0.27", func() {
			c := s.ColorFor(types.Some(0.27))

			Convey("Then it takes the final stop's color", func() {
				So(c, ShouldResemble, model.RGBA{0xF0, 0xF9, 0x21, colorscale.DefaultAlpha})
			})
		})

		Convey("When the value is exactly 0.05", func() {
			So(s.ColorFor(types.Some(0.05)), ShouldResemble, model.RGBA{0x9C, 0x17, 0x9E, colorscale.DefaultAlpha})
		})

		Convey("When building the legend", func() {
			bands := s.Legend(100, "%")

			Convey("Then bands run highest first with percent labels", func() {
				So(len(bands), ShouldEqual, 7)
				So(bands[0].Label, ShouldEqual, ">25%")
				So(bands[1].Label, ShouldEqual, "20%")
				So(bands[5].Label, ShouldEqual, "3%")
				So(bands[6].Label, ShouldEqual, "0%")
			})
		})
	})

	Convey("Given the YlOrRd preset", t, func() {
		s, err := colorscale.YlOrRd()
		So(err, ShouldBeNil)
		So(len(s.Breakpoints()), ShouldEqual, 14)

		// Reference colors are d3.interpolateYlOrRd(rate/1000 + 0.25).
		Convey("Then a zero rate starts at ramp position 0.25", func() {
			So(s.ColorFor(types.Some(0)), ShouldResemble, model.RGBA{254, 214, 118, colorscale.DefaultAlpha})
		})

		Convey("Then 250 per 100k matches ramp position 0.5", func() {
			So(s.ColorFor(types.Some(0.25)), ShouldResemble, model.RGBA{253, 137, 60, colorscale.DefaultAlpha})
		})

		Convey("Then 100 per 100k is a light orange", func() {
			c := s.ColorFor(types.Some(0.1))
			So(float64(c[0]), ShouldAlmostEqual, 254, 2)
			So(float64(c[1]), ShouldAlmostEqual, 186, 2)
			So(float64(c[2]), ShouldAlmostEqual, 87, 2)
		})

		Convey("Then rates of 750 per 100k and above saturate", func() {
			dark := model.RGBA{0x80, 0x00, 0x26, colorscale.DefaultAlpha}
			So(s.ColorFor(types.Some(0.75)), ShouldResemble, dark)
			So(s.ColorFor(types.Some(5)), ShouldResemble, dark)
		})

		Convey("Then legend labels read as per-100k rates", func() {
			bands := s.Legend(1000, "")
			So(bands[0].Label, ShouldEqual, ">750")
			So(bands[len(bands)-1].Label, ShouldEqual, "0")
		})
	})

	Convey("Given invalid tables", t, func() {
		_, err := colorscale.New(nil)
		So(errors.Is(err, colorscale.ErrInvalidBreakpoints), ShouldBeTrue)

		_, err = colorscale.New([]colorscale.Breakpoint{{Threshold: 1}, {Threshold: 1}})
		So(errors.Is(err, colorscale.ErrInvalidBreakpoints), ShouldBeTrue)

		_, err = colorscale.New([]colorscale.Breakpoint{{Threshold: math.Inf(1)}})
		So(errors.Is(err, colorscale.ErrInvalidBreakpoints), ShouldBeTrue)

		_, err = colorscale.FromHex([]float64{0, 1}, []string{"#000000"})
		So(errors.Is(err, colorscale.ErrInvalidBreakpoints), ShouldBeTrue)

		_, err = colorscale.FromHex([]float64{0}, []string{"#GG0000"})
		So(errors.Is(err, colorscale.ErrInvalidColor), ShouldBeTrue)
	})

	Convey("Given hex colors", t, func() {
		c, err := colorscale.ParseHex("#0D0887")
		So(err, ShouldBeNil)
		So(c, ShouldResemble, colorscale.RGB{13, 8, 135})

		rgba, err := colorscale.ParseRGBA("#F0F0F0")
		So(err, ShouldBeNil)
		So(rgba, ShouldResemble, model.RGBA{240, 240, 240, 255})

		rgba, err = colorscale.ParseRGBA("F0F0F080")
		So(err, ShouldBeNil)
		So(rgba, ShouldResemble, model.RGBA{240, 240, 240, 128})

		_, err = colorscale.ParseRGBA("#123")
		So(errors.Is(err, colorscale.ErrInvalidColor), ShouldBeTrue)
	})
}
