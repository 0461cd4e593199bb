// Package config loads the map configuration file and builds the game
// model from it. Parse errors are returned to the caller and are fatal at
// startup.
package config

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/artndx/game-server/game/geom"
	"github.com/artndx/game-server/game/model"
)

// Road describes one road entry: x1 for horizontal roads, y1 for
// vertical ones.
type Road struct {
	X0 int  `json:"x0"`
	Y0 int  `json:"y0"`
	X1 *int `json:"x1,omitempty"`
	Y1 *int `json:"y1,omitempty"`
}

// Building describes one decorative rectangle.
type Building struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Office describes one delivery point.
type Office struct {
	ID      string `json:"id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	OffsetX int    `json:"offsetX"`
	OffsetY int    `json:"offsetY"`
}

// LootType describes one collectable kind. Every field is optional;
// pointers keep track of which fields the config actually carried.
type LootType struct {
	Name     *string  `json:"name,omitempty"`
	File     *string  `json:"file,omitempty"`
	Type     *string  `json:"type,omitempty"`
	Rotation *int     `json:"rotation,omitempty"`
	Color    *string  `json:"color,omitempty"`
	Scale    *float64 `json:"scale,omitempty"`
	Value    *int     `json:"value,omitempty"`
}

// Map describes one map document.
type Map struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	DogSpeed    *float64   `json:"dogSpeed,omitempty"`
	BagCapacity *int       `json:"bagCapacity,omitempty"`
	Roads       []Road     `json:"roads"`
	Buildings   []Building `json:"buildings"`
	Offices     []Office   `json:"offices"`
	LootTypes   []LootType `json:"lootTypes"`
}

// LootGenerator configures loot generation: period is in seconds.
type LootGenerator struct {
	Period      float64 `json:"period"`
	Probability float64 `json:"probability"`
}

// File is the top-level config document.
type File struct {
	DefaultDogSpeed     *float64       `json:"defaultDogSpeed,omitempty"`
	DefaultBagCapacity  *int           `json:"defaultBagCapacity,omitempty"`
	DogRetirementTime   *float64       `json:"dogRetirementTime,omitempty"`
	LootGeneratorConfig *LootGenerator `json:"lootGeneratorConfig,omitempty"`
	Maps                []Map          `json:"maps"`
}

// Load reads the config file and builds a game from it. rnd seeds the
// game's random source for loot placement and spawn points.
func Load(path string, rnd *rand.Rand) (*model.Game, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var doc File
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return Build(&doc, rnd)
}

// Build constructs a game from an already parsed config document.
func Build(doc *File, rnd *rand.Rand) (*model.Game, error) {
	game := model.NewGame(rnd)

	if doc.DefaultDogSpeed != nil {
		game.SetDefaultDogSpeed(*doc.DefaultDogSpeed)
	}
	if doc.DefaultBagCapacity != nil {
		game.SetDefaultBagCapacity(*doc.DefaultBagCapacity)
	}
	if doc.DogRetirementTime != nil {
		game.SetDogRetirementTime(time.Duration(*doc.DogRetirementTime * float64(time.Second)))
	}
	if doc.LootGeneratorConfig != nil {
		period := time.Duration(doc.LootGeneratorConfig.Period * float64(time.Second))
		game.SetLootGenerator(period, doc.LootGeneratorConfig.Probability)
	}

	for _, mapDoc := range doc.Maps {
		m, err := buildMap(mapDoc, game)
		if err != nil {
			return nil, fmt.Errorf("map %q: %w", mapDoc.ID, err)
		}
		if err := game.AddMap(m); err != nil {
			return nil, fmt.Errorf("map %q: %w", mapDoc.ID, err)
		}
	}

	return game, nil
}

func buildMap(doc Map, game *model.Game) (*model.Map, error) {
	speed := game.DefaultDogSpeed()
	if doc.DogSpeed != nil {
		speed = *doc.DogSpeed
	}
	capacity := game.DefaultBagCapacity()
	if doc.BagCapacity != nil {
		capacity = *doc.BagCapacity
	}

	m := model.NewMap(doc.ID, doc.Name, speed, capacity)

	for i, road := range doc.Roads {
		start := geom.Point{X: road.X0, Y: road.Y0}
		switch {
		case road.X1 != nil:
			m.AddRoad(model.NewHorizontalRoad(start, *road.X1))
		case road.Y1 != nil:
			m.AddRoad(model.NewVerticalRoad(start, *road.Y1))
		default:
			return nil, fmt.Errorf("road %d: neither x1 nor y1 given", i)
		}
	}

	for _, b := range doc.Buildings {
		m.AddBuilding(model.Building{Bounds: geom.Rect{
			Position: geom.Point{X: b.X, Y: b.Y},
			Size:     geom.Size{Width: b.W, Height: b.H},
		}})
	}

	for _, o := range doc.Offices {
		office := model.Office{
			ID:       o.ID,
			Position: geom.Point{X: o.X, Y: o.Y},
			Offset:   geom.Offset{DX: o.OffsetX, DY: o.OffsetY},
		}
		if err := m.AddOffice(office); err != nil {
			return nil, fmt.Errorf("office %q: %w", o.ID, err)
		}
	}

	for _, lt := range doc.LootTypes {
		m.AddLootType(model.LootType{
			Name:     lt.Name,
			File:     lt.File,
			Kind:     lt.Type,
			Rotation: lt.Rotation,
			Color:    lt.Color,
			Scale:    lt.Scale,
			Value:    lt.Value,
		})
	}

	return m, nil
}
