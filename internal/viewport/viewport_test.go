package viewport

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func pinch(d float64) Move {
	return Move{Touches: []Point{{X: 0, Y: 0}, {X: d, Y: 0}}}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestApply_SmallDragStaysIdle(t *testing.T) {
	s := Apply(Initial(), Move{DX: 5, DY: -5})
	if s.Mode != Idle {
		t.Errorf("mode = %v, want idle", s.Mode)
	}
	if s.Offset != (Point{}) {
		t.Errorf("offset = %+v, want zero", s.Offset)
	}
}

func TestApply_PanFollowsCumulativeDelta(t *testing.T) {
	s := Initial()
	s = Apply(s, Move{DX: 6, DY: 0})
	if s.Mode != Panning {
		t.Fatalf("mode = %v, want panning", s.Mode)
	}
	s = Apply(s, Move{DX: 20, DY: -10})
	if s.Offset != (Point{X: 20, Y: -10}) {
		t.Errorf("offset = %+v", s.Offset)
	}

	s = Apply(s, Release{})
	if s.Mode != Idle || s.CommittedOffset != (Point{X: 20, Y: -10}) {
		t.Fatalf("after release: %+v", s)
	}

	// The second gesture is relative to the committed offset.
	s = Apply(s, Move{DX: 0, DY: 30})
	s = Apply(s, Move{DX: 5, DY: 40})
	if s.Offset != (Point{X: 25, Y: 30}) {
		t.Errorf("offset = %+v, want {25 30}", s.Offset)
	}
}

func TestApply_FirstPinchSampleOnlyRecordsBaseline(t *testing.T) {
	s := Apply(Initial(), pinch(100))
	if s.Mode != Pinching {
		t.Fatalf("mode = %v, want pinching", s.Mode)
	}
	if s.PinchBaseline != 100 {
		t.Errorf("baseline = %v, want 100", s.PinchBaseline)
	}
	if s.Scale != 1 {
		t.Errorf("scale = %v, want 1", s.Scale)
	}
}

func TestApply_PinchScale(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     float64
	}{
		{"one and a half", 150, 1.5},
		{"ten times clamps high", 1000, 2.0},
		{"shrink", 60, 0.6},
		{"tiny clamps low", 1, 0.5},
		{"unchanged", 100, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Apply(Initial(), pinch(100))
			s = Apply(s, pinch(tt.distance))
			if !almostEqual(s.Scale, tt.want) {
				t.Errorf("scale = %v, want %v", s.Scale, tt.want)
			}
		})
	}
}

func TestApply_PinchUsesCommittedScale(t *testing.T) {
	s := Initial()
	s = Apply(s, pinch(100))
	s = Apply(s, pinch(150))
	s = Apply(s, Release{})
	if s.CommittedScale != 1.5 || s.PinchBaseline != 0 {
		t.Fatalf("after release: %+v", s)
	}

	s = Apply(s, pinch(40))
	s = Apply(s, pinch(50))
	if !almostEqual(s.Scale, 1.875) {
		t.Errorf("scale = %v, want 1.875", s.Scale)
	}
}

func TestApply_ZeroDistanceBaselineIgnored(t *testing.T) {
	s := Apply(Initial(), pinch(0))
	if s.PinchBaseline != 0 {
		t.Fatalf("baseline = %v, want 0", s.PinchBaseline)
	}
	s = Apply(s, pinch(80))
	if s.PinchBaseline != 80 || s.Scale != 1 {
		t.Errorf("got baseline %v scale %v", s.PinchBaseline, s.Scale)
	}
}

func TestApply_SecondFingerTurnsPanIntoPinch(t *testing.T) {
	s := Apply(Initial(), Move{DX: 10})
	s = Apply(s, Move{DX: 12, Touches: []Point{{X: 0, Y: 0}, {X: 0, Y: 30}}})
	if s.Mode != Pinching {
		t.Errorf("mode = %v, want pinching", s.Mode)
	}
}

func TestApply_ResetFromAnyMode(t *testing.T) {
	for _, prep := range [][]Event{
		nil,
		{Move{DX: 50, DY: 50}},
		{pinch(100), pinch(180)},
		{pinch(100), pinch(180), Release{}},
	} {
		s := Initial()
		for _, ev := range prep {
			s = Apply(s, ev)
		}
		s = Apply(s, Reset{})
		if s != Initial() {
			t.Errorf("after reset: %+v", s)
		}
	}
}

func TestZoom(t *testing.T) {
	s := Zoom(Initial(), 1.25)
	if !almostEqual(s.Scale, 1.25) || s.CommittedScale != s.Scale {
		t.Fatalf("zoom in: %+v", s)
	}
	s = Zoom(s, 4)
	if s.Scale != MaxScale {
		t.Errorf("scale = %v, want %v", s.Scale, MaxScale)
	}
	if got := Zoom(s, -1); got != s {
		t.Errorf("negative factor changed state")
	}
	if got := Zoom(s, math.NaN()); got != s {
		t.Errorf("NaN factor changed state")
	}
}

func TestPan(t *testing.T) {
	s := Pan(Initial(), 3, -4)
	s = Pan(s, 1, 1)
	if s.Offset != (Point{X: 4, Y: -3}) || s.CommittedOffset != s.Offset {
		t.Errorf("got %+v", s)
	}
}

func TestScreenGraphRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := State{
			Offset: Point{X: rapid.Float64Range(-1000, 1000).Draw(t, "ox"), Y: rapid.Float64Range(-1000, 1000).Draw(t, "oy")},
			Scale:  rapid.Float64Range(MinScale, MaxScale).Draw(t, "scale"),
		}
		p := Point{X: rapid.Float64Range(-1e4, 1e4).Draw(t, "x"), Y: rapid.Float64Range(-1e4, 1e4).Draw(t, "y")}
		back := s.ScreenToGraph(s.GraphToScreen(p))
		if math.Abs(back.X-p.X) > 1e-6 || math.Abs(back.Y-p.Y) > 1e-6 {
			t.Fatalf("round trip %+v -> %+v", p, back)
		}
	})
}

func TestProperty_ScaleAlwaysInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := Initial()
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for range steps {
			switch rapid.IntRange(0, 3).Draw(t, "kind") {
			case 0:
				s = Apply(s, pinch(rapid.Float64Range(0, 2000).Draw(t, "dist")))
			case 1:
				s = Apply(s, Move{DX: rapid.Float64Range(-300, 300).Draw(t, "dx"), DY: rapid.Float64Range(-300, 300).Draw(t, "dy")})
			case 2:
				s = Apply(s, Release{})
			case 3:
				s = Zoom(s, rapid.Float64Range(0.01, 10).Draw(t, "factor"))
			}
			if s.Scale < MinScale || s.Scale > MaxScale {
				t.Fatalf("scale %v escaped [%v, %v]", s.Scale, MinScale, MaxScale)
			}
		}
	})
}

func TestController(t *testing.T) {
	c := NewController()
	c.Handle(pinch(10))
	c.Handle(pinch(15))
	c.Handle(Release{})
	if !almostEqual(c.State().Scale, 1.5) {
		t.Fatalf("scale = %v", c.State().Scale)
	}
	c.Pan(10, 0)
	c.Zoom(0.5)
	if got := c.ResetView(); got != Initial() {
		t.Errorf("reset = %+v", got)
	}
}
