package colorscale

import "github.com/okian/pulsemap/internal/domain/model"

// Option applies a configuration option to the Scale.
type Option func(*Scale)

// WithAlpha sets the alpha channel applied to every interpolated color.
func WithAlpha(alpha uint8) Option {
	return func(s *Scale) {
		s.alpha = alpha
	}
}

// WithNoDataColor sets the sentinel returned for absent values.
func WithNoDataColor(c model.RGBA) Option {
	return func(s *Scale) {
		s.noData = c
	}
}
