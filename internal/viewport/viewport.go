// Package viewport turns raw pointer gestures into a pan offset and a
// clamped zoom scale. Transitions are pure functions of (State, Event) so a
// recorded gesture always replays to the same transform.
package viewport

import "math"

const (
	MinScale = 0.5
	MaxScale = 2.0

	// GestureThreshold is the drag distance, in screen units, a single
	// pointer must travel before a gesture starts panning.
	GestureThreshold = 5.0
)

// Point is a screen or graph coordinate.
type Point struct {
	X float64
	Y float64
}

// Mode is the gesture state.
type Mode int

const (
	Idle Mode = iota
	Panning
	Pinching
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Panning:
		return "panning"
	case Pinching:
		return "pinching"
	default:
		return "unknown"
	}
}

// State is the viewport transform plus in-flight gesture tracking.
type State struct {
	Mode   Mode
	Offset Point
	Scale  float64

	CommittedOffset Point
	CommittedScale  float64
	// PinchBaseline is the touch distance recorded by the first pinch
	// sample of a gesture; zero means no baseline yet.
	PinchBaseline float64
}

// Initial returns the reset transform.
func Initial() State {
	return State{Scale: 1, CommittedScale: 1}
}

// Event is a gesture input.
type Event interface {
	isEvent()
}

// Move is a gesture sample. DX and DY are cumulative since the gesture
// started; Touches holds the current pointer positions.
type Move struct {
	DX      float64
	DY      float64
	Touches []Point
}

// Release ends the current gesture.
type Release struct{}

// Reset restores the initial transform regardless of gesture state.
type Reset struct{}

func (Move) isEvent()    {}
func (Release) isEvent() {}
func (Reset) isEvent()   {}

// Apply returns the state after ev.
func Apply(s State, ev Event) State {
	switch ev := ev.(type) {
	case Move:
		return applyMove(s, ev)
	case Release:
		s.CommittedOffset = s.Offset
		s.CommittedScale = s.Scale
		s.PinchBaseline = 0
		s.Mode = Idle
		return s
	case Reset:
		return Initial()
	default:
		return s
	}
}

func applyMove(s State, ev Move) State {
	if s.Mode == Idle {
		switch {
		case len(ev.Touches) >= 2:
			s.Mode = Pinching
		case math.Abs(ev.DX) > GestureThreshold || math.Abs(ev.DY) > GestureThreshold:
			s.Mode = Panning
		default:
			return s
		}
	}

	// A second finger landing mid-pan turns it into a pinch.
	if s.Mode == Panning && len(ev.Touches) >= 2 {
		s.Mode = Pinching
	}

	switch s.Mode {
	case Pinching:
		if len(ev.Touches) < 2 {
			return s
		}
		dist := distance(ev.Touches[0], ev.Touches[1])
		if s.PinchBaseline == 0 {
			if dist > 0 {
				s.PinchBaseline = dist
			}
			return s
		}
		s.Scale = ClampScale(s.CommittedScale * dist / s.PinchBaseline)
	case Panning:
		s.Offset = Point{X: s.CommittedOffset.X + ev.DX, Y: s.CommittedOffset.Y + ev.DY}
	}
	return s
}

// Zoom multiplies the committed scale by factor outside of a gesture.
// The result goes through the same clamp as a pinch.
func Zoom(s State, factor float64) State {
	if math.IsNaN(factor) || factor <= 0 {
		return s
	}
	s.Scale = ClampScale(s.CommittedScale * factor)
	s.CommittedScale = s.Scale
	return s
}

// Pan shifts the committed offset outside of a gesture.
func Pan(s State, dx, dy float64) State {
	s.Offset = Point{X: s.CommittedOffset.X + dx, Y: s.CommittedOffset.Y + dy}
	s.CommittedOffset = s.Offset
	return s
}

// ClampScale bounds v to [MinScale, MaxScale]. NaN maps to 1.
func ClampScale(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 1
	case v < MinScale:
		return MinScale
	case v > MaxScale:
		return MaxScale
	default:
		return v
	}
}

// GraphToScreen maps a graph coordinate to the screen through s.
func (s State) GraphToScreen(p Point) Point {
	return Point{X: p.X*s.Scale + s.Offset.X, Y: p.Y*s.Scale + s.Offset.Y}
}

// ScreenToGraph is the inverse of GraphToScreen.
func (s State) ScreenToGraph(p Point) Point {
	scale := s.Scale
	if scale == 0 {
		scale = 1
	}
	return Point{X: (p.X - s.Offset.X) / scale, Y: (p.Y - s.Offset.Y) / scale}
}

func distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
