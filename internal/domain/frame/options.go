package frame

// Option applies a configuration option to the Compositor.
type Option func(*Compositor)

// WithNormalizer sets how blended values are normalized before coloring.
func WithNormalizer(n Normalizer) Option {
	return func(c *Compositor) {
		if n != nil {
			c.normalize = n
		}
	}
}

// WithElevationScale sets the linear factor from blended value to height.
func WithElevationScale(scale float64) Option {
	return func(c *Compositor) {
		if scale >= 0 {
			c.elevationScale = scale
		}
	}
}

// WithWindow sums each entity's values over the days-long window ending at
// the date instead of reading the single day.
func WithWindow(days int) Option {
	return func(c *Compositor) {
		if days > 0 {
			c.window = days
		}
	}
}
