package player

import "time"

// TimeClock tracks one player's cumulative play time and the length of
// its current inactivity stretch. A freshly joined dog stands still, so
// the clock starts inactive.
//
// Time advances only through Advance, driven by the game tick; the clock
// never reads the wall clock, which keeps request-driven time fully
// deterministic.
type TimeClock struct {
	playtime   time.Duration
	inactive   bool
	inactivity time.Duration
}

// NewTimeClock creates a clock for a player that has just logged in.
func NewTimeClock() *TimeClock {
	return &TimeClock{inactive: true}
}

// Advance adds delta to the play time, and to the inactivity stretch when
// the player is idle.
func (c *TimeClock) Advance(delta time.Duration) {
	c.playtime += delta
	if c.inactive {
		c.inactivity += delta
	}
}

// ObserveSpeed reports the dog's current speed state. A transition to
// moving resets the inactivity stretch; a transition to standing starts
// a new one.
func (c *TimeClock) ObserveSpeed(moving bool) {
	switch {
	case moving && c.inactive:
		c.inactive = false
		c.inactivity = 0
	case !moving && !c.inactive:
		c.inactive = true
		c.inactivity = 0
	}
}

// Inactivity returns the current inactivity stretch and whether the
// player is idle at all.
func (c *TimeClock) Inactivity() (time.Duration, bool) {
	if !c.inactive {
		return 0, false
	}
	return c.inactivity, true
}

// Playtime returns the cumulative play time.
func (c *TimeClock) Playtime() time.Duration {
	return c.playtime
}
