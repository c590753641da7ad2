package mastery

// State is a topic's display state relative to the learner.
type State int

const (
	StateLocked   State = iota // Fewer raw attempts than the tracking threshold
	StateLearning              // Masterable but below the mastery limit
	StateMastered              // Decayed accuracy at or above the mastery limit
	StateInactive              // Disabled by the server
)

// Classify maps a topic's flags to its display state.
func Classify(active, masterable, mastered bool) State {
	switch {
	case !active:
		return StateInactive
	case !masterable:
		return StateLocked
	case mastered:
		return StateMastered
	default:
		return StateLearning
	}
}

// Icon returns the display icon for a state.
func (s State) Icon() string {
	switch s {
	case StateLocked:
		return "🔒"
	case StateLearning:
		return "❓"
	case StateMastered:
		return "👑"
	case StateInactive:
		return "⛔"
	default:
		return "?"
	}
}

// Label returns the display label for a state.
func (s State) Label() string {
	switch s {
	case StateLocked:
		return "Locked"
	case StateLearning:
		return "Learning"
	case StateMastered:
		return "Mastered"
	case StateInactive:
		return "Inactive"
	default:
		return "Unknown"
	}
}
