package core

import "time"

// Clock measures elapsed seconds since Start. The zero value is a stopped clock.
type Clock struct {
	now       func() time.Time
	startTime time.Time
	running   bool
	elapsed   float64
	last      float64
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Updates the provided clock. Should be called just before checking elapsed time.
// Has no effect on non-started clocks.
func (c *Clock) Update() {
	if c.running {
		c.elapsed = c.now().Sub(c.startTime).Seconds()
	}
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	if c.now == nil {
		c.now = time.Now
	}
	c.startTime = c.now()
	c.running = true
	c.elapsed = 0
	c.last = 0
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.running = false
}

// Elapsed returns the seconds between Start and the last Update.
func (c *Clock) Elapsed() float64 {
	return c.elapsed
}

// Tick updates the clock and returns the seconds since the previous Tick.
func (c *Clock) Tick() float64 {
	c.Update()
	delta := c.elapsed - c.last
	c.last = c.elapsed
	return delta
}
