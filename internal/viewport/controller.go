package viewport

// Controller holds a viewport State for a single screen visit. It is not
// safe for concurrent use.
type Controller struct {
	state State
}

// NewController returns a controller at the initial transform.
func NewController() *Controller {
	return &Controller{state: Initial()}
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// Handle applies ev and returns the new state.
func (c *Controller) Handle(ev Event) State {
	c.state = Apply(c.state, ev)
	return c.state
}

// Zoom scales the view by factor.
func (c *Controller) Zoom(factor float64) State {
	c.state = Zoom(c.state, factor)
	return c.state
}

// Pan moves the view by (dx, dy).
func (c *Controller) Pan(dx, dy float64) State {
	c.state = Pan(c.state, dx, dy)
	return c.state
}

// ResetView restores the initial transform.
func (c *Controller) ResetView() State {
	return c.Handle(Reset{})
}
