package model

import (
	"math/rand"
	"sort"

	"github.com/artndx/game-server/game/geom"
)

// Building is a decorative axis-aligned rectangle. The simulation ignores
// buildings; they are carried for map rendering only.
type Building struct {
	Bounds geom.Rect
}

// Office is a point where dogs convert bag contents into score.
type Office struct {
	ID       string
	Position geom.Point
	Offset   geom.Offset
}

// LootType describes one kind of collectable item. All fields except the
// score value are purely presentational; pointers preserve which optional
// fields were present in the map config.
type LootType struct {
	Name     *string
	File     *string
	Kind     *string
	Rotation *int
	Color    *string
	Scale    *float64
	Value    *int
}

// ScoreValue is the score credited when an item of this type is delivered.
func (lt LootType) ScoreValue() int {
	if lt.Value != nil {
		return *lt.Value
	}
	return 1
}

// roadIndex is an ordered lookup from an axis coordinate to the roads
// anchored on it. Vertical roads are keyed by x, horizontal ones by y.
type roadIndex struct {
	coords  []int
	byCoord map[int][]int
}

func (idx *roadIndex) add(coord, road int) {
	if idx.byCoord == nil {
		idx.byCoord = make(map[int][]int)
	}
	if _, ok := idx.byCoord[coord]; !ok {
		i := sort.SearchInts(idx.coords, coord)
		idx.coords = append(idx.coords, 0)
		copy(idx.coords[i+1:], idx.coords[i:])
		idx.coords[i] = coord
	}
	idx.byCoord[coord] = append(idx.byCoord[coord], road)
}

// candidates returns the road ids anchored on the lower-bound coordinate
// for v and on its immediate predecessor; when v lies past every
// coordinate, the last one is used instead.
func (idx *roadIndex) candidates(v float64) []int {
	if len(idx.coords) == 0 {
		return nil
	}
	i := sort.Search(len(idx.coords), func(i int) bool {
		return float64(idx.coords[i]) >= v
	})

	var result []int
	if i < len(idx.coords) {
		if i > 0 {
			result = append(result, idx.byCoord[idx.coords[i-1]]...)
		}
		result = append(result, idx.byCoord[idx.coords[i]]...)
	} else {
		result = append(result, idx.byCoord[idx.coords[len(idx.coords)-1]]...)
	}
	return result
}

// Map is the immutable per-map data: roads with their spatial index,
// buildings, offices, loot types and the per-map simulation parameters.
type Map struct {
	id   string
	name string

	roads       []Road
	verticals   roadIndex
	horizontals roadIndex

	buildings []Building
	offices   []Office
	officeIDs map[string]struct{}
	lootTypes []LootType

	dogSpeed    float64
	bagCapacity int
}

// NewMap creates an empty map with the given simulation parameters.
func NewMap(id, name string, dogSpeed float64, bagCapacity int) *Map {
	return &Map{
		id:          id,
		name:        name,
		officeIDs:   make(map[string]struct{}),
		dogSpeed:    dogSpeed,
		bagCapacity: bagCapacity,
	}
}

// ID returns the map identifier.
func (m *Map) ID() string { return m.id }

// Name returns the human-readable map name.
func (m *Map) Name() string { return m.name }

// Roads returns all roads in config order.
func (m *Map) Roads() []Road { return m.roads }

// Buildings returns all buildings in config order.
func (m *Map) Buildings() []Building { return m.buildings }

// Offices returns all offices in config order.
func (m *Map) Offices() []Office { return m.offices }

// LootTypes returns the ordered list of item kinds.
func (m *Map) LootTypes() []LootType { return m.lootTypes }

// DogSpeed returns the map's dog speed in units per second.
func (m *Map) DogSpeed() float64 { return m.dogSpeed }

// BagCapacity returns the number of items a dog's bag can hold.
func (m *Map) BagCapacity() int { return m.bagCapacity }

// AddRoad appends a road and indexes it by its orientation.
func (m *Map) AddRoad(road Road) {
	i := len(m.roads)
	m.roads = append(m.roads, road)
	if road.IsVertical() {
		m.verticals.add(road.Start().X, i)
	} else {
		m.horizontals.add(road.Start().Y, i)
	}
}

// AddBuilding appends a building.
func (m *Map) AddBuilding(b Building) {
	m.buildings = append(m.buildings, b)
}

// AddOffice appends an office. Duplicate office ids are rejected.
func (m *Map) AddOffice(o Office) error {
	if _, ok := m.officeIDs[o.ID]; ok {
		return ErrDuplicateOffice
	}
	m.officeIDs[o.ID] = struct{}{}
	m.offices = append(m.offices, o)
	return nil
}

// AddLootType appends an item kind.
func (m *Map) AddLootType(lt LootType) {
	m.lootTypes = append(m.lootTypes, lt)
}

// FindRoadsByCoords returns every road whose half-width box contains pos.
// Each orientation index is probed at the lower bound for the position's
// coordinate and at its predecessor, so the lookup stays logarithmic in
// the number of roads.
func (m *Map) FindRoadsByCoords(pos geom.Vec2) []Road {
	var result []Road
	for _, i := range m.verticals.candidates(pos.X) {
		if m.roads[i].Contains(pos) {
			result = append(result, m.roads[i])
		}
	}
	for _, i := range m.horizontals.candidates(pos.Y) {
		if m.roads[i].Contains(pos) {
			result = append(result, m.roads[i])
		}
	}
	return result
}

// FirstRoadPos returns the start of the first road, used as the spawn
// point when random spawning is disabled.
func (m *Map) FirstRoadPos() geom.Vec2 {
	start := m.roads[0].Start()
	return geom.Vec2{X: float64(start.X), Y: float64(start.Y)}
}

// RandomRoadPos picks a road uniformly, then a point uniformly along its
// axis.
func (m *Map) RandomRoadPos(rnd *rand.Rand) geom.Vec2 {
	road := m.roads[rnd.Intn(len(m.roads))]
	start, end := road.Canonical()
	if road.IsHorizontal() {
		x := float64(start.X) + rnd.Float64()*float64(end.X-start.X)
		return geom.Vec2{X: x, Y: float64(start.Y)}
	}
	y := float64(start.Y) + rnd.Float64()*float64(end.Y-start.Y)
	return geom.Vec2{X: float64(start.X), Y: y}
}

// RandomLootType picks an item kind uniformly.
func (m *Map) RandomLootType(rnd *rand.Rand) int {
	return rnd.Intn(len(m.lootTypes))
}
