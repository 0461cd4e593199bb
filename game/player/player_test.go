package player

import (
	"math/rand"
	"testing"
	"time"

	"github.com/artndx/game-server/game/geom"
	"github.com/artndx/game-server/game/model"
)

func newTestSession(t *testing.T, mapID string) *model.GameSession {
	t.Helper()
	m := model.NewMap(mapID, "Test", 2.0, 3)
	m.AddRoad(model.NewHorizontalRoad(geom.Point{X: 0, Y: 0}, 10))
	return model.NewGameSession(m)
}

func TestAdd_TokenFormat(t *testing.T) {
	r := NewRegistry(rand.New(rand.NewSource(7)))
	session := newTestSession(t, "m1")
	dog := model.NewDog(0, "Spot", geom.Vec2{}, geom.Vec2{}, model.North)

	p, err := r.Add(0, "Spot", dog, session)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !IsValidToken(string(p.Token)) {
		t.Errorf("token %q does not match ^[0-9a-f]{32}$", p.Token)
	}
}

func TestTokens_AreUniqueAndRoundTrip(t *testing.T) {
	r := NewRegistry(rand.New(rand.NewSource(7)))
	session := newTestSession(t, "m1")

	seen := make(map[Token]bool)
	for i := 0; i < 50; i++ {
		dog := model.NewDog(i, "Dog", geom.Vec2{}, geom.Vec2{}, model.North)
		p, err := r.Add(i, "Dog", dog, session)
		if err != nil {
			t.Fatalf("Add #%d: %v", i, err)
		}
		if seen[p.Token] {
			t.Fatalf("token %q issued twice", p.Token)
		}
		seen[p.Token] = true

		if got := r.FindByToken(p.Token); got != p {
			t.Fatalf("FindByToken(%q) = %v, want the issued player", p.Token, got)
		}
	}
}

func TestAddWithToken_RejectsCollisions(t *testing.T) {
	r := NewRegistry(rand.New(rand.NewSource(7)))
	session := newTestSession(t, "m1")

	dog1 := model.NewDog(0, "A", geom.Vec2{}, geom.Vec2{}, model.North)
	dog2 := model.NewDog(1, "B", geom.Vec2{}, geom.Vec2{}, model.North)

	token := Token("0123456789abcdef0123456789abcdef")
	if _, err := r.AddWithToken(0, "A", token, dog1, session); err != nil {
		t.Fatalf("first AddWithToken: %v", err)
	}
	if _, err := r.AddWithToken(1, "B", token, dog2, session); err != ErrTokenCollision {
		t.Errorf("second AddWithToken error = %v, want ErrTokenCollision", err)
	}
}

func TestRemove_KeepsIndexesConsistent(t *testing.T) {
	r := NewRegistry(rand.New(rand.NewSource(7)))
	session := newTestSession(t, "m1")

	var players []*Player
	for i := 0; i < 3; i++ {
		dog := model.NewDog(i, "Dog", geom.Vec2{}, geom.Vec2{}, model.North)
		p, err := r.Add(i, "Dog", dog, session)
		if err != nil {
			t.Fatalf("Add #%d: %v", i, err)
		}
		players = append(players, p)
	}

	r.Remove(players[1])

	if got := r.FindByToken(players[1].Token); got != nil {
		t.Error("removed player still reachable by token")
	}
	if got := r.FindByDogAndMap(1, "m1"); got != nil {
		t.Error("removed player still reachable by dog and map")
	}
	if got := len(r.BySession(session)); got != 2 {
		t.Errorf("session has %d players, want 2", got)
	}
	for _, p := range r.BySession(session) {
		if p == players[1] {
			t.Error("removed player still listed in its session")
		}
	}

	// The remaining players stay reachable.
	if r.FindByToken(players[0].Token) != players[0] || r.FindByToken(players[2].Token) != players[2] {
		t.Error("surviving players lost their token mapping")
	}
}

func TestTimeClock_InactivityLifecycle(t *testing.T) {
	c := NewTimeClock()

	// A fresh clock is idle from login.
	c.Advance(30 * time.Second)
	if idle, ok := c.Inactivity(); !ok || idle != 30*time.Second {
		t.Fatalf("Inactivity() = %v, %v; want 30s, true", idle, ok)
	}

	// Starting to move resets the stretch.
	c.ObserveSpeed(true)
	c.Advance(10 * time.Second)
	if _, ok := c.Inactivity(); ok {
		t.Fatal("moving player reported as inactive")
	}

	// Stopping starts a fresh stretch.
	c.ObserveSpeed(false)
	c.Advance(5 * time.Second)
	if idle, ok := c.Inactivity(); !ok || idle != 5*time.Second {
		t.Fatalf("Inactivity() after stop = %v, %v; want 5s, true", idle, ok)
	}

	if got := c.Playtime(); got != 45*time.Second {
		t.Errorf("Playtime() = %v, want 45s", got)
	}
}

func TestTimeClock_RepeatedObservationsAreIdempotent(t *testing.T) {
	c := NewTimeClock()
	c.Advance(10 * time.Second)

	// Observing the same stationary state must not reset the stretch.
	c.ObserveSpeed(false)
	if idle, _ := c.Inactivity(); idle != 10*time.Second {
		t.Errorf("Inactivity() = %v, want 10s", idle)
	}
}
