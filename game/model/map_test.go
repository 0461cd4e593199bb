package model

import (
	"math/rand"
	"testing"

	"github.com/artndx/game-server/game/geom"
)

func crossMap(t *testing.T) *Map {
	t.Helper()
	m := NewMap("cross", "Cross", 2.0, 3)
	m.AddRoad(NewHorizontalRoad(geom.Point{X: 0, Y: 0}, 10))
	m.AddRoad(NewVerticalRoad(geom.Point{X: 0, Y: 0}, 10))
	return m
}

func TestRoadCanonical(t *testing.T) {
	road := NewHorizontalRoad(geom.Point{X: 10, Y: 0}, 0)

	if !road.IsInverted() {
		t.Fatal("road from (10,0) to (0,0) should be inverted")
	}

	start, end := road.Canonical()
	if start.X != 0 || end.X != 10 {
		t.Errorf("Canonical() = %v..%v, want 0..10 on x", start, end)
	}

	if !road.Contains(geom.Vec2{X: 5, Y: 0.2}) {
		t.Error("inverted road should contain points between its endpoints")
	}
}

func TestFindRoadsByCoords(t *testing.T) {
	m := crossMap(t)

	tests := []struct {
		name string
		pos  geom.Vec2
		want int
	}{
		{"on vertical only", geom.Vec2{X: 0.2, Y: 5}, 1},
		{"on horizontal only", geom.Vec2{X: 5, Y: 0.3}, 1},
		{"at the intersection", geom.Vec2{X: 0.1, Y: 0.2}, 2},
		{"far away", geom.Vec2{X: 20, Y: 20}, 0},
		{"past the last road", geom.Vec2{X: 5, Y: 0.39}, 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := m.FindRoadsByCoords(test.pos)
			if len(got) != test.want {
				t.Errorf("FindRoadsByCoords(%v) returned %d roads, want %d", test.pos, len(got), test.want)
			}
		})
	}
}

func TestFindRoadsByCoords_ChecksPredecessor(t *testing.T) {
	m := NewMap("rows", "Rows", 2.0, 3)
	m.AddRoad(NewHorizontalRoad(geom.Point{X: 0, Y: 0}, 10))
	m.AddRoad(NewHorizontalRoad(geom.Point{X: 0, Y: 5}, 10))

	// 4.5 lower-bounds to y=5 but lies within the half-width of neither
	// that road nor its predecessor at y=0.
	if got := m.FindRoadsByCoords(geom.Vec2{X: 5, Y: 4.5}); len(got) != 0 {
		t.Errorf("expected no roads at y=4.5, got %d", len(got))
	}
	if got := m.FindRoadsByCoords(geom.Vec2{X: 5, Y: 4.7}); len(got) != 1 {
		t.Errorf("expected the y=5 road at y=4.7, got %d roads", len(got))
	}
}

func TestRandomRoadPos_StaysOnRoad(t *testing.T) {
	m := crossMap(t)
	rnd := rand.New(rand.NewSource(1))

	for i := 0; i < 100; i++ {
		pos := m.RandomRoadPos(rnd)
		if len(m.FindRoadsByCoords(pos)) == 0 {
			t.Fatalf("RandomRoadPos returned %v, which is on no road", pos)
		}
	}
}

func TestAddOffice_RejectsDuplicates(t *testing.T) {
	m := crossMap(t)
	if err := m.AddOffice(Office{ID: "o1", Position: geom.Point{X: 1, Y: 0}}); err != nil {
		t.Fatalf("first AddOffice: %v", err)
	}
	if err := m.AddOffice(Office{ID: "o1", Position: geom.Point{X: 2, Y: 0}}); err == nil {
		t.Fatal("duplicate office id should be rejected")
	}
}
