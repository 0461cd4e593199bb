package collision

import (
	"math"
	"testing"

	"github.com/artndx/game-server/game/geom"
)

func TestTryCollectPoint(t *testing.T) {
	tests := []struct {
		name     string
		a, b, c  geom.Vec2
		wantProj float64
		wantSq   float64
	}{
		{
			name:     "point on the segment",
			a:        geom.Vec2{X: 0, Y: 0},
			b:        geom.Vec2{X: 10, Y: 0},
			c:        geom.Vec2{X: 2, Y: 0},
			wantProj: 0.2,
			wantSq:   0,
		},
		{
			name:     "point beside the segment",
			a:        geom.Vec2{X: 0, Y: 0},
			b:        geom.Vec2{X: 10, Y: 0},
			c:        geom.Vec2{X: 5, Y: 0.5},
			wantProj: 0.5,
			wantSq:   0.25,
		},
		{
			name:     "point behind the start",
			a:        geom.Vec2{X: 0, Y: 0},
			b:        geom.Vec2{X: 10, Y: 0},
			c:        geom.Vec2{X: -1, Y: 0},
			wantProj: -0.1,
			wantSq:   0,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res := TryCollectPoint(test.a, test.b, test.c)
			if math.Abs(res.Proj-test.wantProj) > 1e-9 {
				t.Errorf("Proj = %v, want %v", res.Proj, test.wantProj)
			}
			if math.Abs(res.SqDistance-test.wantSq) > 1e-9 {
				t.Errorf("SqDistance = %v, want %v", res.SqDistance, test.wantSq)
			}
		})
	}
}

func TestResultCollected(t *testing.T) {
	tests := []struct {
		name   string
		res    Result
		radius float64
		want   bool
	}{
		{"inside segment and radius", Result{SqDistance: 0.25, Proj: 0.5}, 0.6, true},
		{"too far", Result{SqDistance: 1.0, Proj: 0.5}, 0.6, false},
		{"before the start", Result{SqDistance: 0, Proj: -0.01}, 0.6, false},
		{"after the end", Result{SqDistance: 0, Proj: 1.01}, 0.6, false},
		{"exactly at the end", Result{SqDistance: 0, Proj: 1.0}, 0.6, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.res.Collected(test.radius); got != test.want {
				t.Errorf("Collected(%v) = %v, want %v", test.radius, got, test.want)
			}
		})
	}
}

func TestFindGatherEvents_SortedByProj(t *testing.T) {
	gatherers := []Gatherer{
		{Start: geom.Vec2{X: 0, Y: 0}, End: geom.Vec2{X: 10, Y: 0}, Width: 0.6},
	}
	items := []Item{
		{Position: geom.Vec2{X: 8, Y: 0}, Width: 0},
		{Position: geom.Vec2{X: 2, Y: 0}, Width: 0},
		{Position: geom.Vec2{X: 5, Y: 0}, Width: 0},
	}

	events := FindGatherEvents(gatherers, items)
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i-1].Proj > events[i].Proj {
			t.Fatalf("events out of order: proj[%d]=%v > proj[%d]=%v", i-1, events[i-1].Proj, i, events[i].Proj)
		}
	}
	if events[0].ItemIndex != 1 || events[1].ItemIndex != 2 || events[2].ItemIndex != 0 {
		t.Errorf("event item order = %d,%d,%d, want 1,2,0", events[0].ItemIndex, events[1].ItemIndex, events[2].ItemIndex)
	}
}

func TestFindGatherEvents_StationaryGathererIsSkipped(t *testing.T) {
	gatherers := []Gatherer{
		{Start: geom.Vec2{X: 2, Y: 0}, End: geom.Vec2{X: 2, Y: 0}, Width: 0.6},
	}
	items := []Item{{Position: geom.Vec2{X: 2, Y: 0}, Width: 0}}

	if events := FindGatherEvents(gatherers, items); len(events) != 0 {
		t.Errorf("stationary gatherer produced %d events, want 0", len(events))
	}
}

func TestFindGatherEvents_RespectsWidths(t *testing.T) {
	gatherers := []Gatherer{
		{Start: geom.Vec2{X: 0, Y: 0}, End: geom.Vec2{X: 10, Y: 0}, Width: 0.6},
	}

	// 0.55 off-axis: reachable by a dog (0.6) but not if the dog were thinner.
	items := []Item{{Position: geom.Vec2{X: 5, Y: 0.55}, Width: 0}}
	if events := FindGatherEvents(gatherers, items); len(events) != 1 {
		t.Fatalf("dog-width gatherer missed an item within 0.6")
	}

	gatherers[0].Width = 0.3
	if events := FindGatherEvents(gatherers, items); len(events) != 0 {
		t.Fatalf("narrow gatherer should not reach an item 0.55 away")
	}
}
