// Package lootgen decides how many new loot items a session should spawn
// per generation tick. Over long horizons the loot count trends toward one
// item per active dog.
package lootgen

import (
	"math"
	"time"
)

// Random01 returns a value in [0, 1]. Injected so tests are deterministic.
type Random01 func() float64

// Generator produces loot counts from elapsed time and the current session
// population. It never produces more items than the current shortage
// (dogs minus loot), so generation never raises a session's loot count
// above its dog count.
type Generator struct {
	period      time.Duration
	probability float64

	timeWithoutLoot time.Duration
	random          Random01
}

// New creates a generator. period is the base generation interval and
// probability is the chance of spawning one missing item per full period.
// random may be nil, in which case the draw is always 1.0 and the
// probability is never scaled down.
func New(period time.Duration, probability float64, random Random01) *Generator {
	if random == nil {
		random = func() float64 { return 1.0 }
	}
	return &Generator{
		period:      period,
		probability: probability,
		random:      random,
	}
}

// Period returns the base generation interval.
func (g *Generator) Period() time.Duration {
	return g.period
}

// Generate returns the number of items to spawn after delta has elapsed
// with lootCount items on the map and looterCount dogs in the session.
// The result is always within [0, max(0, looterCount-lootCount)].
func (g *Generator) Generate(delta time.Duration, lootCount, looterCount int) int {
	g.timeWithoutLoot += delta

	shortage := looterCount - lootCount
	if shortage <= 0 {
		return 0
	}

	ratio := float64(g.timeWithoutLoot) / float64(g.period)
	probability := clamp((1.0-math.Pow(1.0-g.probability, ratio))*g.random(), 0.0, 1.0)
	generated := int(math.Round(float64(shortage) * probability))
	if generated > 0 {
		g.timeWithoutLoot = 0
	}
	return generated
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
