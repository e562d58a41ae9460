package values

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithRequirePopulation makes Build reject entities without a positive
// population and records for entities whose population is unknown.
func WithRequirePopulation(required bool) Option {
	return func(b *Builder) {
		b.requirePopulation = required
	}
}
