package frame_test

import (
	"testing"

	"github.com/okian/pulsemap/internal/domain/colorscale"
	"github.com/okian/pulsemap/internal/domain/dateseq"
	"github.com/okian/pulsemap/internal/domain/frame"
	"github.com/okian/pulsemap/internal/domain/model"
	"github.com/okian/pulsemap/internal/domain/playback"
	"github.com/okian/pulsemap/internal/domain/types"
	"github.com/okian/pulsemap/internal/domain/values"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBlend(t *testing.T) {
	Convey("Given two readings", t, func() {
		Convey("When both are present", func() {
			So(frame.Blend(types.Some(10), types.Some(20), 0.25).Value, ShouldEqual, 12.5)
			So(frame.Blend(types.Some(10), types.Some(20), 0).Value, ShouldEqual, 10)
			So(frame.Blend(types.Some(10), types.Some(20), 1).Value, ShouldEqual, 20)
		})

		Convey("When one operand is missing it falls back to the other", func() {
			So(frame.Blend(types.NoData, types.Some(20), 0.25).Value, ShouldEqual, 20)
			So(frame.Blend(types.Some(10), types.NoData, 0.75).Value, ShouldEqual, 10)
		})

		Convey("When both are missing the result is no data", func() {
			So(frame.Blend(types.NoData, types.NoData, 0.5).Valid, ShouldBeFalse)
		})

		Convey("When the fraction is out of range it clamps", func() {
			So(frame.Blend(types.Some(10), types.Some(20), 2).Value, ShouldEqual, 20)
		})
	})
}

func TestCompositor(t *testing.T) {
	d1 := dateseq.MustParse("2020-03-01")
	d2 := d1.AddDays(1)

	Convey("Given a store, a scale and a snapshot between two dates", t, func() {
		store, err := values.NewBuilder().
			AddEntity(model.Entity{ID: "a", Population: 1000, Position: [2]float64{1, 2}}).
			AddEntity(model.Entity{ID: "b", Population: 500}).
			AddEntity(model.Entity{ID: "c", Population: 100}).
			AddEntity(model.Entity{ID: "neg", Population: 100}).
			Record("a", d1, 0.0).
			Record("a", d2, 0.2).
			Record("b", d2, 0.1).
			Record("neg", d1, -4).
			Record("neg", d2, -4).
			Build()
		So(err, ShouldBeNil)

		scale, err := colorscale.New([]colorscale.Breakpoint{
			{Threshold: 0, Color: colorscale.RGB{0, 0, 0}},
			{Threshold: 0.2, Color: colorscale.RGB{200, 100, 0}},
		})
		So(err, ShouldBeNil)

		snap := playback.Snapshot{Current: d2, Previous: d1, Blend: 0.5, Steps: 2, Step: 1, State: playback.Running, Generation: 3}
		c := frame.New(store, scale, frame.WithElevationScale(100))

		Convey("When composing a frame", func() {
			f := c.Compose(snap, store.Entities())

			Convey("Then it carries the snapshot's position", func() {
				So(f.Date, ShouldEqual, d2)
				So(f.Previous, ShouldEqual, d1)
				So(f.Blend, ShouldEqual, 0.5)
				So(f.Generation, ShouldEqual, 3)
				So(len(f.Attributes), ShouldEqual, 4)
			})

			Convey("Then values blend and map through the scale", func() {
				a := f.Attributes[0]
				So(a.EntityID, ShouldEqual, "a")
				So(a.Value.Value, ShouldAlmostEqual, 0.1, 1e-12)
				So(a.Color, ShouldResemble, model.RGBA{100, 50, 0, colorscale.DefaultAlpha})
				So(a.Elevation, ShouldAlmostEqual, 10, 1e-9)
				So(a.Position, ShouldResemble, [2]float64{1, 2})
			})

			Convey("Then a missing previous value falls back to the current one", func() {
				b := f.Attributes[1]
				So(b.Value.Value, ShouldEqual, 0.1)
			})

			Convey("Then an entity with no data is gray and flat", func() {
				nd := f.Attributes[2]
				So(nd.EntityID, ShouldEqual, "c")
				So(nd.Value.Valid, ShouldBeFalse)
				So(nd.Color, ShouldResemble, colorscale.DefaultNoData)
				So(nd.Elevation, ShouldEqual, 0)
			})

			Convey("Then negative values never produce negative heights", func() {
				So(f.Attributes[3].Elevation, ShouldEqual, 0)
			})
		})

		Convey("When composing twice from the same inputs", func() {
			So(c.Compose(snap, store.Entities()), ShouldResemble, c.Compose(snap, store.Entities()))
		})

		Convey("When normalizing per capita", func() {
			pc := frame.New(store, scale, frame.WithNormalizer(frame.PerCapita(1000)))
			a := pc.Attributes(snap, model.Entity{ID: "a", Population: 1000})

			Convey("Then color uses the normalized value while elevation uses the raw one", func() {
				So(a.Color, ShouldResemble, model.RGBA{100, 50, 0, colorscale.DefaultAlpha})
				So(a.Elevation, ShouldAlmostEqual, 0.1*frame.DefaultElevationScale, 1e-9)
			})

			Convey("Then an entity without population has no color", func() {
				z := pc.Attributes(snap, model.Entity{ID: "a"})
				So(z.Color, ShouldResemble, colorscale.DefaultNoData)
			})
		})

		Convey("When summing a two-day window", func() {
			wc := frame.New(store, scale, frame.WithWindow(2))
			v := wc.Value(playback.Snapshot{Current: d2, Previous: d2}, model.Entity{ID: "a"})
			So(v.Value, ShouldAlmostEqual, 0.2, 1e-12)
		})
	})

	Convey("Given normalizer composition", t, func() {
		n := frame.Scaled(frame.PerCapita(100000), 0.001)
		r := n(model.Entity{Population: 200000}, types.Some(400))
		So(r.Value, ShouldAlmostEqual, 0.2, 1e-12)
		So(n(model.Entity{Population: 1}, types.NoData).Valid, ShouldBeFalse)
	})
}
