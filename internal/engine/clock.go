package engine

import (
	"fmt"
	"time"

	"github.com/ncruces/go-strftime"
)

// epoch anchors clock formatting; only the time of day is ever shown.
var epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// Clock converts elapsed simulated time into game hours.
type Clock struct {
	StartHour      int
	HoursPerSecond float64 // Game hours per simulated second
	elapsed        time.Duration
}

// NewClock creates a clock at StartHour on day 0.
func NewClock(startHour int, hoursPerSecond float64) Clock {
	return Clock{StartHour: startHour, HoursPerSecond: hoursPerSecond}
}

// Advance moves the clock forward by dt of simulated time.
func (c *Clock) Advance(dt time.Duration) {
	c.elapsed += dt
}

// Elapsed returns the simulated time since start.
func (c *Clock) Elapsed() time.Duration { return c.elapsed }

// Hours returns the fractional game hours since midnight of day 0.
func (c *Clock) Hours() float64 {
	return float64(c.StartHour) + c.elapsed.Seconds()*c.HoursPerSecond
}

// Hour returns the hour of day, 0–23.
func (c *Clock) Hour() int {
	return int(c.Hours()) % 24
}

// Day returns the zero-based day number.
func (c *Clock) Day() int {
	return int(c.Hours()) / 24
}

// TimeOfDay formats the clock as HH:MM.
func (c *Clock) TimeOfDay() string {
	h := c.Hours()
	t := epoch.Add(time.Duration(h * float64(time.Hour)).Round(time.Second))
	return strftime.Format("%H:%M", t)
}

func (c *Clock) String() string {
	return fmt.Sprintf("Day %d, %s", c.Day()+1, c.TimeOfDay())
}
