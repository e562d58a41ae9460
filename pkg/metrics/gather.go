package metrics

import (
	"fmt"
)

// Value returns the summed value of a metric family in the custom registry.
// Counters and gauges report their value, histograms their sample count.
// The name may omit the "pulsemap_playback_" prefix.
func Value(name string) (float64, error) {
	families, err := customRegistry.Gather()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrObserveFailed, err)
	}

	qualified := globalManager.namespace + "_" + globalManager.subsystem + "_" + name
	for _, mf := range families {
		if mf.GetName() != name && mf.GetName() != qualified {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			}
		}
		return total, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
}
