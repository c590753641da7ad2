package mastery

import "math"

const (
	// DefaultTrackingThreshold is the minimum number of attempts before a
	// topic's mastery bar is considered reliable.
	DefaultTrackingThreshold = 10
	// DefaultHalfLifeDays is the decay half-life used when none is configured.
	DefaultHalfLifeDays = 5.0
	// DefaultMasteryLimit requires a perfect decayed accuracy for mastery.
	DefaultMasteryLimit = 1.0
)

// Config holds the parameters of the mastery model. It is passed explicitly
// to every scoring call; nothing in this package reads ambient state.
type Config struct {
	// TrackingThreshold is the raw attempt count at which a topic becomes masterable.
	TrackingThreshold int `yaml:"tracking_threshold" json:"trackingThreshold" validate:"gte=0"`
	// HalfLifeDays is the exponential decay half-life. Values <= 0 fall back
	// to DefaultHalfLifeDays at scoring time.
	HalfLifeDays float64 `yaml:"half_life_days" json:"halfLifeDays" validate:"gte=0"`
	// MasteryLimit is the decayed accuracy required for mastery.
	MasteryLimit float64 `yaml:"mastery_limit" json:"masteryLimit" validate:"gt=0,lte=1"`
}

// DefaultConfig returns a Config with the default model parameters.
func DefaultConfig() Config {
	return Config{
		TrackingThreshold: DefaultTrackingThreshold,
		HalfLifeDays:      DefaultHalfLifeDays,
		MasteryLimit:      DefaultMasteryLimit,
	}
}

// Overrides carries server-supplied replacements for Config fields.
// A nil field leaves the corresponding value untouched.
type Overrides struct {
	TrackingThreshold *float64
	HalfLifeDays      *float64
}

// WithOverrides returns a copy of c with the non-nil overrides applied.
// Non-finite values are ignored and a negative threshold is floored to 0.
// A fractional threshold rounds up: counts are whole, so occurrences >= 7.5
// holds exactly when occurrences >= 8.
func (c Config) WithOverrides(o Overrides) Config {
	if o.TrackingThreshold != nil && isFinite(*o.TrackingThreshold) {
		c.TrackingThreshold = SafeCount(math.Ceil(*o.TrackingThreshold))
	}
	if o.HalfLifeDays != nil && isFinite(*o.HalfLifeDays) {
		c.HalfLifeDays = *o.HalfLifeDays
	}
	return c
}

// EffectiveHalfLife returns the half-life used for decay.
func (c Config) EffectiveHalfLife() float64 {
	if !isFinite(c.HalfLifeDays) || c.HalfLifeDays <= 0 {
		return DefaultHalfLifeDays
	}
	return c.HalfLifeDays
}

// DisplayTicks returns the denominator used for synthesized progress counters.
func (c Config) DisplayTicks() int {
	return max(1, c.TrackingThreshold)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
