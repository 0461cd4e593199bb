package model

import "github.com/artndx/game-server/game/geom"

// RoadOffset is the half-width of every road: a position belongs to a road
// when it lies within this distance of the road's segment box.
const RoadOffset = 0.4

// Road is a strictly horizontal or strictly vertical segment with integer
// endpoints. A road is inverted when its start lies after its end on the
// road's axis; Canonical swaps the endpoints into ascending order.
type Road struct {
	start geom.Point
	end   geom.Point
}

// NewHorizontalRoad builds a road from start to (endX, start.Y).
func NewHorizontalRoad(start geom.Point, endX int) Road {
	return Road{start: start, end: geom.Point{X: endX, Y: start.Y}}
}

// NewVerticalRoad builds a road from start to (start.X, endY).
func NewVerticalRoad(start geom.Point, endY int) Road {
	return Road{start: start, end: geom.Point{X: start.X, Y: endY}}
}

// Start returns the road's first endpoint as loaded from the config.
func (r Road) Start() geom.Point {
	return r.start
}

// End returns the road's second endpoint as loaded from the config.
func (r Road) End() geom.Point {
	return r.end
}

// IsHorizontal reports whether the road runs along the X axis.
func (r Road) IsHorizontal() bool {
	return r.start.Y == r.end.Y
}

// IsVertical reports whether the road runs along the Y axis.
func (r Road) IsVertical() bool {
	return r.start.X == r.end.X
}

// IsInverted reports whether start lies after end on the road's axis.
func (r Road) IsInverted() bool {
	return r.start.X > r.end.X || r.start.Y > r.end.Y
}

// Canonical returns the endpoints in ascending order on the road's axis.
func (r Road) Canonical() (start, end geom.Point) {
	if r.IsInverted() {
		return r.end, r.start
	}
	return r.start, r.end
}

// Contains reports whether pos lies within the road's half-width box.
func (r Road) Contains(pos geom.Vec2) bool {
	start, end := r.Canonical()
	return float64(start.X)-RoadOffset <= pos.X && pos.X <= float64(end.X)+RoadOffset &&
		float64(start.Y)-RoadOffset <= pos.Y && pos.Y <= float64(end.Y)+RoadOffset
}
