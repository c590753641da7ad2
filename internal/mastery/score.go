package mastery

import (
	"math"
	"time"
)

// RawStats holds the server-supplied counters for a single topic.
type RawStats struct {
	Occurrences      int
	Correct          int
	LastQuizAttempts int
	LastQuizCorrect  int
	// LastReviewedAt is nil when the topic has never been reviewed.
	LastReviewedAt *time.Time
}

// Sanitize floors every counter at zero.
func (r RawStats) Sanitize() RawStats {
	r.Occurrences = max(0, r.Occurrences)
	r.Correct = max(0, r.Correct)
	r.LastQuizAttempts = max(0, r.LastQuizAttempts)
	r.LastQuizCorrect = max(0, r.LastQuizCorrect)
	return r
}

// Result is the outcome of scoring a topic.
type Result struct {
	BaseAccuracy float64
	DecayFactor  float64
	Accuracy     float64
	Masterable   bool
	Mastered     bool
}

// Score converts raw topic stats into a decayed accuracy and the
// masterable/mastered classification.
func Score(raw RawStats, now time.Time, cfg Config) Result {
	raw = raw.Sanitize()

	base := BaseAccuracy(raw)
	factor := 1.0
	if raw.LastReviewedAt != nil && !raw.LastReviewedAt.IsZero() {
		factor = DecayFactor(now.Sub(*raw.LastReviewedAt), cfg.EffectiveHalfLife())
	}

	accuracy := clamp(Round2(base*factor), 0, 1)
	return Result{
		BaseAccuracy: base,
		DecayFactor:  factor,
		Accuracy:     accuracy,
		Masterable:   raw.Occurrences >= cfg.TrackingThreshold,
		Mastered:     accuracy >= cfg.MasteryLimit,
	}
}

// BaseAccuracy returns the undecayed accuracy. The most recent quiz wins
// over lifetime counters whenever it has at least one attempt.
func BaseAccuracy(raw RawStats) float64 {
	raw = raw.Sanitize()
	if raw.LastQuizAttempts > 0 {
		if raw.LastQuizCorrect == raw.LastQuizAttempts {
			return 1
		}
		return clamp(float64(raw.LastQuizCorrect)/float64(raw.LastQuizAttempts), 0, 1)
	}
	if raw.Occurrences == 0 {
		return 0
	}
	return clamp(float64(raw.Correct)/float64(raw.Occurrences), 0, 1)
}

// DecayFactor returns 0.5^(days/halfLifeDays) for the elapsed time.
// Negative elapsed time (clock skew) counts as zero days.
func DecayFactor(elapsed time.Duration, halfLifeDays float64) float64 {
	if !isFinite(halfLifeDays) || halfLifeDays <= 0 {
		halfLifeDays = DefaultHalfLifeDays
	}
	days := math.Max(0, elapsed.Hours()/24)
	return math.Pow(0.5, days/halfLifeDays)
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SafeCount converts a possibly corrupt numeric value into a non-negative
// integer count. NaN, infinities and negatives become 0.
func SafeCount(v float64) int {
	if !isFinite(v) || v <= 0 {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(math.Floor(v))
}

// DisplayCounters synthesizes integer counters whose ratio reproduces
// accuracy on a bar of max(1, threshold) ticks.
func DisplayCounters(accuracy float64, cfg Config) (correct, occurrences int) {
	occurrences = cfg.DisplayTicks()
	correct = int(math.Round(accuracy * float64(occurrences)))
	return correct, occurrences
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
