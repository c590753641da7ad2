package progress

import (
	"fmt"
	"math"

	"github.com/abhisek/kgraph/internal/knowledgegraph"
	"github.com/abhisek/kgraph/internal/mastery"
)

// TrueMasterAccuracy is the accuracy at which a mastered topic earns the
// "TRUE master" message.
const TrueMasterAccuracy = 0.9

// Detail is the progress presentation for one topic. Node badges and the
// topic detail view both render from it.
type Detail struct {
	Title string
	State mastery.State
	// Locked is true while the topic has fewer raw attempts than the threshold.
	Locked bool
	// Remaining is the number of attempts still needed to unlock mastery.
	Remaining int
	// History is empty for locked topics.
	History string
	Message string
	// Fraction fills the progress bar, in [0, 1].
	Fraction float64
	Percent  int
	Color    string
}

// Present derives the progress bar and messaging for a node.
func Present(n knowledgegraph.TopicNode, cfg mastery.Config) Detail {
	d := Detail{
		Title: n.Label,
		State: n.State(),
	}

	if !n.Masterable {
		d.Locked = true
		d.Remaining = max(0, cfg.TrackingThreshold-n.RawOccurrences)
		d.Message = fmt.Sprintf("Attempt %d more questions to unlock mastery!", d.Remaining)
		d.Percent = LockedPercent(n.RawOccurrences, cfg.TrackingThreshold)
		d.Fraction = float64(d.Percent) / 100
	} else {
		d.Percent = percent(n.Accuracy)
		d.Fraction = clampUnit(n.Accuracy)
		d.History = fmt.Sprintf("Topic History: %d / %d (%d%% accuracy)",
			n.DisplayCorrect, n.DisplayOccurrences, d.Percent)
		if n.Mastered {
			title := ""
			if n.Accuracy >= TrueMasterAccuracy {
				title = "TRUE "
			}
			d.Message = fmt.Sprintf("You are a %smaster of this topic, well done!", title)
		} else {
			d.Message = fmt.Sprintf("Required for Mastery: %d%% accuracy", percent(cfg.MasteryLimit))
		}
	}

	d.Color = BandColor(d.Fraction)
	return d
}

// LockedPercent is the unlock progress, floored to a whole percent and
// capped at 100. A threshold of zero counts as fully unlocked.
func LockedPercent(occurrences, threshold int) int {
	if threshold <= 0 {
		return 100
	}
	p := int(math.Floor(float64(max(0, occurrences)) / float64(threshold) * 100))
	return min(100, max(0, p))
}

func percent(v float64) int {
	return int(math.Floor(clampUnit(v)*100 + 1e-9))
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
