package model

import (
	"math/rand"
	"testing"
	"time"

	"github.com/artndx/game-server/game/geom"
)

func newTestGame(t *testing.T) *Game {
	t.Helper()
	return NewGame(rand.New(rand.NewSource(42)))
}

func intPtr(v int) *int { return &v }

// singleRoadGame builds a game with one horizontal road (0,0)..(10,0),
// dog speed 2 and bag capacity 3.
func singleRoadGame(t *testing.T) (*Game, *GameSession) {
	t.Helper()
	g := newTestGame(t)
	m := NewMap("m1", "Town", 2.0, 3)
	m.AddRoad(NewHorizontalRoad(geom.Point{X: 0, Y: 0}, 10))
	m.AddLootType(LootType{Value: intPtr(5)})
	if err := g.AddMap(m); err != nil {
		t.Fatalf("AddMap: %v", err)
	}
	session, err := g.FindOrCreateSession("m1")
	if err != nil {
		t.Fatalf("FindOrCreateSession: %v", err)
	}
	return g, session
}

func TestUpdate_ClampAtRoadEnd(t *testing.T) {
	g, session := singleRoadGame(t)

	dog := NewDog(0, "Pluto", geom.Vec2{X: 9.5, Y: 0}, geom.Vec2{X: 2, Y: 0}, East)
	session.AddDog(dog)

	g.Update(time.Second)

	if pos := dog.Position(); pos != (geom.Vec2{X: 10.4, Y: 0}) {
		t.Errorf("position = %v, want (10.4, 0)", pos)
	}
	if speed := dog.Speed(); !speed.IsZero() {
		t.Errorf("speed = %v, want (0, 0)", speed)
	}
}

func TestUpdate_ClampAtCornerIntersection(t *testing.T) {
	g := newTestGame(t)
	m := NewMap("corner", "Corner", 2.0, 3)
	m.AddRoad(NewHorizontalRoad(geom.Point{X: 0, Y: 0}, 10))
	m.AddRoad(NewVerticalRoad(geom.Point{X: 10, Y: 0}, 10))
	if err := g.AddMap(m); err != nil {
		t.Fatalf("AddMap: %v", err)
	}
	session, err := g.FindOrCreateSession("corner")
	if err != nil {
		t.Fatalf("FindOrCreateSession: %v", err)
	}

	dog := NewDog(0, "Rex", geom.Vec2{X: 9.9, Y: 0}, geom.Vec2{X: 2, Y: 0}, East)
	session.AddDog(dog)

	g.Update(time.Second)

	if pos := dog.Position(); pos != (geom.Vec2{X: 10.4, Y: 0}) {
		t.Errorf("position = %v, want (10.4, 0)", pos)
	}
	if speed := dog.Speed(); !speed.IsZero() {
		t.Errorf("speed = %v, want (0, 0)", speed)
	}
}

func TestUpdate_AcceptedMovePreservesSpeed(t *testing.T) {
	g, session := singleRoadGame(t)

	dog := NewDog(0, "Lucky", geom.Vec2{X: 1, Y: 0}, geom.Vec2{X: 2, Y: 0}, East)
	session.AddDog(dog)

	g.Update(time.Second)

	if pos := dog.Position(); pos != (geom.Vec2{X: 3, Y: 0}) {
		t.Errorf("position = %v, want (3, 0)", pos)
	}
	if speed := dog.Speed(); speed != (geom.Vec2{X: 2, Y: 0}) {
		t.Errorf("speed = %v, want (2, 0)", speed)
	}
}

func TestUpdate_DogStaysNearRoads(t *testing.T) {
	g, session := singleRoadGame(t)

	dog := NewDog(0, "Wanderer", geom.Vec2{X: 5, Y: 0}, geom.Vec2{}, North)
	session.AddDog(dog)

	moves := []geom.Vec2{{X: 2, Y: 0}, {X: 0, Y: 2}, {X: -2, Y: 0}, {X: 0, Y: -2}, {X: 2, Y: 2}}
	for _, speed := range moves {
		dog.SetSpeed(speed)
		g.Update(time.Second)

		if roads := session.Map().FindRoadsByCoords(dog.Position()); len(roads) == 0 {
			t.Fatalf("after moving with speed %v the dog at %v is on no road", speed, dog.Position())
		}
	}
}

func TestUpdate_PickupThenDeliver(t *testing.T) {
	g, session := singleRoadGame(t)
	if err := session.Map().AddOffice(Office{ID: "o1", Position: geom.Point{X: 5, Y: 0}}); err != nil {
		t.Fatalf("AddOffice: %v", err)
	}
	session.SetLoot([]Loot{{ID: 1, Type: 0, Value: 5, Pos: geom.Vec2{X: 2, Y: 0}}})

	dog := NewDog(0, "Courier", geom.Vec2{X: 0, Y: 0}, geom.Vec2{X: 10, Y: 0}, East)
	session.AddDog(dog)

	g.Update(time.Second)

	if got := len(dog.Bag()); got != 0 {
		t.Errorf("bag size = %d, want 0 (delivered)", got)
	}
	if got := dog.Score(); got != 5 {
		t.Errorf("score = %d, want 5", got)
	}
	if got := len(session.Loot()); got != 0 {
		t.Errorf("loot left on map = %d, want 0", got)
	}
}

func TestUpdate_BagCapacityLimitsPickups(t *testing.T) {
	g := newTestGame(t)
	m := NewMap("tight", "Tight", 2.0, 1)
	m.AddRoad(NewHorizontalRoad(geom.Point{X: 0, Y: 0}, 10))
	m.AddLootType(LootType{})
	if err := g.AddMap(m); err != nil {
		t.Fatalf("AddMap: %v", err)
	}
	session, err := g.FindOrCreateSession("tight")
	if err != nil {
		t.Fatalf("FindOrCreateSession: %v", err)
	}
	session.SetLoot([]Loot{
		{ID: 1, Type: 0, Value: 1, Pos: geom.Vec2{X: 2, Y: 0}},
		{ID: 2, Type: 0, Value: 1, Pos: geom.Vec2{X: 4, Y: 0}},
	})

	dog := NewDog(0, "Greedy", geom.Vec2{X: 0, Y: 0}, geom.Vec2{X: 10, Y: 0}, East)
	session.AddDog(dog)

	g.Update(time.Second)

	if got := len(dog.Bag()); got != 1 {
		t.Fatalf("bag size = %d, want 1 (capacity)", got)
	}
	if dog.Bag()[0].ID != 1 {
		t.Errorf("bagged loot id = %d, want 1 (the nearer item)", dog.Bag()[0].ID)
	}
	if got := len(session.Loot()); got != 1 {
		t.Errorf("loot left = %d, want 1", got)
	}
}

func TestUpdate_TwoDogsRaceForOneLoot(t *testing.T) {
	g, session := singleRoadGame(t)
	session.SetLoot([]Loot{{ID: 1, Type: 0, Value: 5, Pos: geom.Vec2{X: 6, Y: 0}}})

	near := NewDog(0, "Near", geom.Vec2{X: 4, Y: 0}, geom.Vec2{X: 8, Y: 0}, East)
	far := NewDog(1, "Far", geom.Vec2{X: 0, Y: 0}, geom.Vec2{X: 8, Y: 0}, East)
	session.AddDog(far)
	session.AddDog(near)

	g.Update(time.Second)

	if got := len(near.Bag()); got != 1 {
		t.Errorf("nearer dog bag size = %d, want 1", got)
	}
	if got := len(far.Bag()); got != 0 {
		t.Errorf("farther dog bag size = %d, want 0", got)
	}
}

func TestGenerateLoot_NeverOutnumbersDogs(t *testing.T) {
	g, session := singleRoadGame(t)
	g.SetLootGenerator(time.Second, 1.0)

	for i := 0; i < 3; i++ {
		session.AddDog(NewDog(i, "Dog", geom.Vec2{X: 0, Y: 0}, geom.Vec2{}, North))
	}

	for i := 0; i < 20; i++ {
		g.GenerateLoot(time.Second)
		if len(session.Loot()) > len(session.Dogs()) {
			t.Fatalf("loot count %d exceeds dog count %d", len(session.Loot()), len(session.Dogs()))
		}
	}
}

func TestFindOrCreateSession(t *testing.T) {
	g, session := singleRoadGame(t)

	again, err := g.FindOrCreateSession("m1")
	if err != nil {
		t.Fatalf("FindOrCreateSession: %v", err)
	}
	if again != session {
		t.Error("second lookup should return the same session")
	}

	if _, err := g.FindOrCreateSession("nope"); err != ErrMapNotFound {
		t.Errorf("unknown map error = %v, want ErrMapNotFound", err)
	}
}
