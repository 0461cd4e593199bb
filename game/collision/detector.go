// Package collision implements the closest-approach test between moving
// gatherers and stationary items, and the chronological ordering of the
// resulting events within one simulation tick.
package collision

import (
	"sort"

	"github.com/artndx/game-server/game/geom"
)

// Item is a stationary collectable: a loot object or an office.
type Item struct {
	Position geom.Vec2
	Width    float64
}

// Gatherer is a moving circle travelling from Start to End during the tick.
type Gatherer struct {
	Start geom.Vec2
	End   geom.Vec2
	Width float64
}

// Event records that a gatherer reached an item. Proj is the normalized
// time of closest approach along the gatherer's segment: 0 at Start,
// 1 at End.
type Event struct {
	ItemIndex     int
	GathererIndex int
	SqDistance    float64
	Proj          float64
}

// Result carries the raw closest-approach measurements for one
// (segment, point) pair.
type Result struct {
	SqDistance float64
	Proj       float64
}

// Collected reports whether the approach came within the combined width
// and happened inside the segment.
func (r Result) Collected(collectRadius float64) bool {
	return r.Proj >= 0 && r.Proj <= 1 && r.SqDistance <= collectRadius*collectRadius
}

// TryCollectPoint measures the closest approach of the segment a->b to the
// point c. The segment must be non-degenerate: a == b has no defined
// projection and the caller filters such gatherers out beforehand.
func TryCollectPoint(a, b, c geom.Vec2) Result {
	ux := c.X - a.X
	uy := c.Y - a.Y
	vx := b.X - a.X
	vy := b.Y - a.Y
	uDotV := ux*vx + uy*vy
	uLen2 := ux*ux + uy*uy
	vLen2 := vx*vx + vy*vy

	return Result{
		SqDistance: uLen2 - (uDotV*uDotV)/vLen2,
		Proj:       uDotV / vLen2,
	}
}

// FindGatherEvents runs the collection test for every (gatherer, item) pair
// and returns the events sorted ascending by Proj. Ties are broken by
// (gatherer index, item index) so the ordering is deterministic.
// Gatherers that did not move produce no events.
func FindGatherEvents(gatherers []Gatherer, items []Item) []Event {
	var events []Event
	for gi, g := range gatherers {
		if g.Start == g.End {
			continue
		}
		for ii, item := range items {
			res := TryCollectPoint(g.Start, g.End, item.Position)
			if res.Collected(g.Width + item.Width) {
				events = append(events, Event{
					ItemIndex:     ii,
					GathererIndex: gi,
					SqDistance:    res.SqDistance,
					Proj:          res.Proj,
				})
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Proj != events[j].Proj {
			return events[i].Proj < events[j].Proj
		}
		if events[i].GathererIndex != events[j].GathererIndex {
			return events[i].GathererIndex < events[j].GathererIndex
		}
		return events[i].ItemIndex < events[j].ItemIndex
	})

	return events
}
