package model

import "math/rand"

// GameSession is the unit of colocated simulation for one map. It owns the
// dogs playing on the map and the loot lying on its roads.
type GameSession struct {
	m           *Map
	dogs        []*Dog
	loot        []Loot
	lootCounter int
}

// NewGameSession creates an empty session on the given map.
func NewGameSession(m *Map) *GameSession {
	return &GameSession{m: m}
}

// Map returns the session's map.
func (s *GameSession) Map() *Map { return s.m }

// Dogs returns the session's dogs in join order.
func (s *GameSession) Dogs() []*Dog { return s.dogs }

// AddDog registers a dog in the session.
func (s *GameSession) AddDog(dog *Dog) {
	s.dogs = append(s.dogs, dog)
}

// RemoveDog removes the dog with the given id. Unknown ids are ignored.
func (s *GameSession) RemoveDog(id int) {
	for i, dog := range s.dogs {
		if dog.ID() == id {
			s.dogs = append(s.dogs[:i], s.dogs[i+1:]...)
			return
		}
	}
}

// Loot returns the live loot items.
func (s *GameSession) Loot() []Loot { return s.loot }

// SpawnLoot materializes count new items with random types and positions.
func (s *GameSession) SpawnLoot(count int, rnd *rand.Rand) {
	for i := 0; i < count; i++ {
		kind := s.m.RandomLootType(rnd)
		s.lootCounter++
		s.loot = append(s.loot, Loot{
			ID:    s.lootCounter,
			Type:  kind,
			Value: s.m.LootTypes()[kind].ScoreValue(),
			Pos:   s.m.RandomRoadPos(rnd),
		})
	}
}

// SetLoot replaces the live loot list, advancing the id counter past every
// restored id so future spawns stay unique.
func (s *GameSession) SetLoot(loot []Loot) {
	s.loot = loot
	for _, item := range loot {
		if item.ID > s.lootCounter {
			s.lootCounter = item.ID
		}
	}
}

// BumpLootCounter advances the id counter past id. Restoring a snapshot
// calls this for bagged items so their ids are never reissued.
func (s *GameSession) BumpLootCounter(id int) {
	if id > s.lootCounter {
		s.lootCounter = id
	}
}

// removeLootAt deletes the loot items at the given indices.
func (s *GameSession) removeLootAt(picked map[int]bool) {
	if len(picked) == 0 {
		return
	}
	kept := s.loot[:0]
	for i, item := range s.loot {
		if !picked[i] {
			kept = append(kept, item)
		}
	}
	s.loot = kept
}
