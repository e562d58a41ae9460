package colorscale

import (
	"math"
	"strconv"
)

// Band is one legend entry: values in [From, To) render as Color.
type Band struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Color RGB     `json:"color"`
	Label string  `json:"label"`
}

// PositivityThresholds is the test-positivity breakpoint table.
var PositivityThresholds = []float64{0, .03, .05, .10, .15, .20, .25, 1000}

// PositivityColors pairs with PositivityThresholds. The last two stops
// share a color so everything above 25% renders alike.
var PositivityColors = []string{
	"#0D0887",
	"#5C01A6",
	"#9C179E",
	"#CB4679",
	"#ED7953",
	"#FDB42F",
	"#F0F921",
	"#F0F921",
}

// Positivity builds the test-positivity scale.
func Positivity(opts ...Option) (*Scale, error) {
	return FromHex(PositivityThresholds, PositivityColors, opts...)
}

// YlOrRdThresholds spans [0, 0.75]: per-100k case rates divided by 1000.
// Rates of 750 per 100k and above saturate; the last stop only closes the
// top legend band.
var YlOrRdThresholds = []float64{
	0, 0.0625, 0.125, 0.1875, 0.25, 0.3125, 0.375,
	0.4375, 0.5, 0.5625, 0.625, 0.6875, 0.75, 1000,
}

// YlOrRdColors samples the d3 interpolateYlOrRd B-spline at threshold+0.25,
// so a zero rate starts light orange rather than at the pale end.
var YlOrRdColors = []string{
	"#FED676", "#FEC562", "#FEB250", "#FD9F45", "#FD893C", "#FC6D33", "#F8502B",
	"#EF3524", "#E11E20", "#CF0E21", "#B90424", "#9E0126", "#800026", "#800026",
}

// YlOrRd builds the case-rate scale. Feed it per-100k rates scaled by
// 0.001.
func YlOrRd(opts ...Option) (*Scale, error) {
	return FromHex(YlOrRdThresholds, YlOrRdColors, opts...)
}

// Legend returns one band per adjacent pair of stops, highest first, the
// way the map legend lists them. labelScale multiplies thresholds before
// formatting (100 renders fractions as percents).
func (s *Scale) Legend(labelScale float64, suffix string) []Band {
	if len(s.stops) < 2 {
		return nil
	}
	bands := make([]Band, 0, len(s.stops)-1)
	for i := len(s.stops) - 2; i >= 0; i-- {
		lo, hi := s.stops[i], s.stops[i+1]
		label := formatThreshold(lo.Threshold*labelScale) + suffix
		if i == len(s.stops)-2 {
			label = ">" + label
		}
		bands = append(bands, Band{From: lo.Threshold, To: hi.Threshold, Color: lo.Color, Label: label})
	}
	return bands
}

// formatThreshold keeps two decimals so 0.03*100 prints as 3.
func formatThreshold(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
