package model

import (
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/artndx/game-server/game/collision"
	"github.com/artndx/game-server/game/geom"
	"github.com/artndx/game-server/game/lootgen"
)

var (
	ErrMapNotFound     = errors.New("map not found")
	ErrDuplicateMap    = errors.New("map already exists")
	ErrDuplicateOffice = errors.New("duplicate office id")
)

// Collision widths per object class.
const (
	lootWidth   = 0
	dogWidth    = 0.6
	officeWidth = 0.5
)

// Game is the root of the world model: the loaded maps, the live sessions
// grouped by map id, the global defaults and the loot generator. All
// methods must be called from the core strand.
type Game struct {
	maps     []*Map
	mapIndex map[string]*Map
	sessions map[string][]*GameSession

	lootGen *lootgen.Generator
	rnd     *rand.Rand

	defaultDogSpeed    float64
	defaultBagCapacity int
	dogRetirementTime  time.Duration
}

// NewGame creates an empty game with the default simulation parameters.
// rnd drives loot placement and random spawn points; inject a seeded
// source to make tests deterministic.
func NewGame(rnd *rand.Rand) *Game {
	return &Game{
		mapIndex:           make(map[string]*Map),
		sessions:           make(map[string][]*GameSession),
		rnd:                rnd,
		defaultDogSpeed:    1.0,
		defaultBagCapacity: 3,
		dogRetirementTime:  60 * time.Second,
	}
}

// AddMap registers a map. Map ids must be unique.
func (g *Game) AddMap(m *Map) error {
	if _, ok := g.mapIndex[m.ID()]; ok {
		return ErrDuplicateMap
	}
	g.mapIndex[m.ID()] = m
	g.maps = append(g.maps, m)
	return nil
}

// Maps returns all maps in config order.
func (g *Game) Maps() []*Map { return g.maps }

// FindMap returns the map with the given id, or nil.
func (g *Game) FindMap(id string) *Map { return g.mapIndex[id] }

// SetLootGenerator configures loot generation.
func (g *Game) SetLootGenerator(period time.Duration, probability float64) {
	g.lootGen = lootgen.New(period, probability, g.rnd.Float64)
}

// LootGeneratePeriod returns the configured loot generation interval.
func (g *Game) LootGeneratePeriod() time.Duration {
	if g.lootGen == nil {
		return 0
	}
	return g.lootGen.Period()
}

// SetDefaultDogSpeed sets the dog speed used by maps without an override.
func (g *Game) SetDefaultDogSpeed(speed float64) { g.defaultDogSpeed = speed }

// DefaultDogSpeed returns the global dog speed.
func (g *Game) DefaultDogSpeed() float64 { return g.defaultDogSpeed }

// SetDefaultBagCapacity sets the bag capacity used by maps without an
// override.
func (g *Game) SetDefaultBagCapacity(cap int) { g.defaultBagCapacity = cap }

// DefaultBagCapacity returns the global bag capacity.
func (g *Game) DefaultBagCapacity() int { return g.defaultBagCapacity }

// SetDogRetirementTime sets how long a dog may stay inactive before it is
// retired.
func (g *Game) SetDogRetirementTime(d time.Duration) { g.dogRetirementTime = d }

// DogRetirementTime returns the inactivity threshold.
func (g *Game) DogRetirementTime() time.Duration { return g.dogRetirementTime }

// Rand returns the game's random source.
func (g *Game) Rand() *rand.Rand { return g.rnd }

// FindOrCreateSession returns the most recently added session for the
// map, creating one on first use.
func (g *Game) FindOrCreateSession(mapID string) (*GameSession, error) {
	m := g.FindMap(mapID)
	if m == nil {
		return nil, ErrMapNotFound
	}
	if list := g.sessions[mapID]; len(list) > 0 {
		return list[len(list)-1], nil
	}
	return g.AddSession(mapID)
}

// AddSession creates a fresh session on the map. FindOrCreateSession is
// the usual entry point; snapshot restore adds sessions directly.
func (g *Game) AddSession(mapID string) (*GameSession, error) {
	m := g.FindMap(mapID)
	if m == nil {
		return nil, ErrMapNotFound
	}
	session := NewGameSession(m)
	g.sessions[mapID] = append(g.sessions[mapID], session)
	return session, nil
}

// Sessions returns all live sessions grouped by map id.
func (g *Game) Sessions() map[string][]*GameSession { return g.sessions }

// DisconnectDog removes a retired dog from its session.
func (g *Game) DisconnectDog(session *GameSession, dogID int) {
	session.RemoveDog(dogID)
}

// GenerateLoot runs one loot-generation pass over every session.
func (g *Game) GenerateLoot(delta time.Duration) {
	if g.lootGen == nil {
		return
	}
	for _, sessions := range g.sessions {
		for _, session := range sessions {
			count := g.lootGen.Generate(delta, len(session.Loot()), len(session.Dogs()))
			session.SpawnLoot(count, g.rnd)
		}
	}
}

// Update advances every session by delta: dog movement first, then the
// tick's collection and delivery events. The collision segments are
// captured before movement so clamping cannot shorten them.
func (g *Game) Update(delta time.Duration) {
	seconds := delta.Seconds()
	for _, sessions := range g.sessions {
		for _, session := range sessions {
			segments := captureSegments(session.Dogs(), seconds)
			for _, dog := range session.Dogs() {
				roads := session.Map().FindRoadsByCoords(dog.Position())
				moveDog(dog, roads, seconds)
			}
			g.processGatherEvents(session, segments)
		}
	}
}

// captureSegments records each dog's movement segment for this tick.
func captureSegments(dogs []*Dog, seconds float64) []collision.Gatherer {
	segments := make([]collision.Gatherer, len(dogs))
	for i, dog := range dogs {
		start := dog.Position()
		segments[i] = collision.Gatherer{
			Start: start,
			End:   start.Add(dog.Speed().Scale(seconds)),
			Width: dogWidth,
		}
	}
	return segments
}

// moveDog advances one dog along its candidate roads. If the proposed
// position stays inside some road's half-width box the move is accepted
// as-is; otherwise the dog stops at the greatest clamped point.
//
// The greatest-clamp tie-break (lexicographic on x, then y) only matters
// at road intersections where two candidate clamps differ; it is kept as
// the documented behavior of the original server.
func moveDog(dog *Dog, roads []Road, seconds float64) {
	proposed := dog.Position().Add(dog.Speed().Scale(seconds))

	var (
		best     geom.Vec2
		hasClamp bool
	)
	for _, road := range roads {
		if road.Contains(proposed) {
			dog.SetPosition(proposed)
			return
		}

		start, end := road.Canonical()
		clamp := geom.Vec2{
			X: max(float64(start.X)-RoadOffset, min(float64(end.X)+RoadOffset, proposed.X)),
			Y: max(float64(start.Y)-RoadOffset, min(float64(end.Y)+RoadOffset, proposed.Y)),
		}
		if !hasClamp || best.Less(clamp) {
			best = clamp
			hasClamp = true
		}
	}

	if hasClamp {
		dog.SetPosition(best)
		dog.SetSpeed(geom.Vec2{})
		return
	}
	dog.SetPosition(proposed)
}

// gatherEvent tags a collision event with its kind so pickups and
// deliveries can be interleaved chronologically.
type gatherEvent struct {
	collision.Event
	pickup bool
}

// processGatherEvents resolves this tick's pickups and deliveries in
// non-decreasing proj order. Pickup events are placed before delivery
// events in the pre-sort stream, so a dog that collects and delivers at
// the exact same instant collects first.
func (g *Game) processGatherEvents(session *GameSession, segments []collision.Gatherer) {
	loot := session.Loot()
	items := make([]collision.Item, len(loot))
	for i, item := range loot {
		items[i] = collision.Item{Position: item.Pos, Width: lootWidth}
	}

	offices := session.Map().Offices()
	bases := make([]collision.Item, len(offices))
	for i, office := range offices {
		bases[i] = collision.Item{
			Position: geom.Vec2{X: float64(office.Position.X), Y: float64(office.Position.Y)},
			Width:    officeWidth,
		}
	}

	pickups := collision.FindGatherEvents(segments, items)
	deliveries := collision.FindGatherEvents(segments, bases)

	events := make([]gatherEvent, 0, len(pickups)+len(deliveries))
	for _, ev := range pickups {
		events = append(events, gatherEvent{Event: ev, pickup: true})
	}
	for _, ev := range deliveries {
		events = append(events, gatherEvent{Event: ev, pickup: false})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Proj < events[j].Proj
	})

	dogs := session.Dogs()
	capacity := session.Map().BagCapacity()
	picked := make(map[int]bool)
	for _, ev := range events {
		dog := dogs[ev.GathererIndex]
		if ev.pickup {
			if len(dog.Bag()) < capacity && !picked[ev.ItemIndex] {
				dog.Collect(loot[ev.ItemIndex])
				picked[ev.ItemIndex] = true
			}
			continue
		}
		dog.DeliverAll()
	}

	session.removeLootAt(picked)
}
