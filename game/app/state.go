package app

import (
	"encoding/gob"
	"fmt"
	"os"
	"time"

	"github.com/artndx/game-server/game/geom"
	"github.com/artndx/game-server/game/model"
	"github.com/artndx/game-server/game/player"
)

// snapshotVersion guards the on-disk format. A snapshot with a different
// version loads as empty state.
const snapshotVersion = 1

type playerRepr struct {
	ID    int
	Name  string
	Token string
}

type lootRepr struct {
	ID    int
	Type  int
	Value int
	X, Y  float64
}

type dogRepr struct {
	ID     int
	Name   string
	PosX   float64
	PosY   float64
	SpeedX float64
	SpeedY float64
	Dir    int
	Score  int
	Bag    []lootRepr
	Player playerRepr
}

type sessionRepr struct {
	Loot []lootRepr
	Dogs []dogRepr
}

type gameStateRepr struct {
	Version  int
	Sessions map[string][]sessionRepr
}

func lootToRepr(item model.Loot) lootRepr {
	return lootRepr{ID: item.ID, Type: item.Type, Value: item.Value, X: item.Pos.X, Y: item.Pos.Y}
}

func lootFromRepr(r lootRepr) model.Loot {
	return model.Loot{ID: r.ID, Type: r.Type, Value: r.Value, Pos: geom.Vec2{X: r.X, Y: r.Y}}
}

// SaveState snapshots the full live state to the configured file. The
// write goes to a temp file first and replaces the target atomically, so
// a reader never observes a torn snapshot. Failures are logged and
// swallowed.
func (a *Application) SaveState() {
	if a.opts.StateFile == "" {
		return
	}
	var repr *gameStateRepr
	a.strand.Do(func() {
		repr = a.buildSnapshot()
	})
	if err := writeSnapshot(a.opts.StateFile, repr); err != nil {
		a.log.Errorw("state save failed", "file", a.opts.StateFile, "err", err)
		return
	}
	a.log.Debugw("state saved", "file", a.opts.StateFile)
}

// saveOnTick accumulates tick time and snapshots once the configured
// save period has elapsed. Must run on the strand; the snapshot is built
// and written to the file while the strand is held.
func (a *Application) saveOnTick(delta time.Duration) {
	if a.opts.StateFile == "" || a.opts.SaveStatePeriod == nil {
		return
	}
	a.sinceSave += delta
	if a.sinceSave < *a.opts.SaveStatePeriod {
		return
	}
	a.sinceSave = 0

	if err := writeSnapshot(a.opts.StateFile, a.buildSnapshot()); err != nil {
		a.log.Errorw("state save failed", "file", a.opts.StateFile, "err", err)
	}
}

// buildSnapshot captures every session with its loot, dogs and their
// players. Must run on the strand.
func (a *Application) buildSnapshot() *gameStateRepr {
	repr := &gameStateRepr{
		Version:  snapshotVersion,
		Sessions: make(map[string][]sessionRepr),
	}
	for mapID, sessions := range a.game.Sessions() {
		for _, session := range sessions {
			var sr sessionRepr
			for _, item := range session.Loot() {
				sr.Loot = append(sr.Loot, lootToRepr(item))
			}
			for _, dog := range session.Dogs() {
				dr := dogRepr{
					ID:     dog.ID(),
					Name:   dog.Name(),
					PosX:   dog.Position().X,
					PosY:   dog.Position().Y,
					SpeedX: dog.Speed().X,
					SpeedY: dog.Speed().Y,
					Dir:    int(dog.Direction()),
					Score:  dog.Score(),
				}
				for _, item := range dog.Bag() {
					dr.Bag = append(dr.Bag, lootToRepr(item))
				}
				if p := a.players.FindByDogAndMap(dog.ID(), mapID); p != nil {
					dr.Player = playerRepr{ID: p.ID, Name: p.Name, Token: string(p.Token)}
				}
				sr.Dogs = append(sr.Dogs, dr)
			}
			repr.Sessions[mapID] = append(repr.Sessions[mapID], sr)
		}
	}
	return repr
}

func writeSnapshot(path string, repr *gameStateRepr) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(repr); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// LoadState restores sessions, dogs, players, tokens and clocks from the
// configured snapshot file. A missing or unreadable file leaves the state
// empty without raising.
func (a *Application) LoadState() {
	if a.opts.StateFile == "" {
		return
	}

	f, err := os.Open(a.opts.StateFile)
	if err != nil {
		if !os.IsNotExist(err) {
			a.log.Warnw("state file unreadable, starting empty", "file", a.opts.StateFile, "err", err)
		}
		return
	}
	defer f.Close()

	var repr gameStateRepr
	if err := gob.NewDecoder(f).Decode(&repr); err != nil {
		a.log.Warnw("state file corrupt, starting empty", "file", a.opts.StateFile, "err", err)
		return
	}
	if repr.Version != snapshotVersion {
		a.log.Warnw("state file has unknown version, starting empty",
			"file", a.opts.StateFile, "version", repr.Version)
		return
	}

	a.strand.Do(func() {
		a.restoreSnapshot(&repr)
	})
	a.log.Infow("state restored", "file", a.opts.StateFile)
}

// restoreSnapshot rebuilds the live state from a decoded snapshot. Must
// run on the strand.
func (a *Application) restoreSnapshot(repr *gameStateRepr) {
	for mapID, sessions := range repr.Sessions {
		for _, sr := range sessions {
			session, err := a.game.AddSession(mapID)
			if err != nil {
				a.log.Warnw("snapshot references unknown map, skipping", "map", mapID)
				continue
			}

			loot := make([]model.Loot, 0, len(sr.Loot))
			for _, lr := range sr.Loot {
				loot = append(loot, lootFromRepr(lr))
			}
			session.SetLoot(loot)

			for _, dr := range sr.Dogs {
				dog := model.NewDog(dr.ID, dr.Name,
					geom.Vec2{X: dr.PosX, Y: dr.PosY},
					geom.Vec2{X: dr.SpeedX, Y: dr.SpeedY},
					model.Direction(dr.Dir))
				dog.SetScore(dr.Score)

				bag := make([]model.Loot, 0, len(dr.Bag))
				for _, lr := range dr.Bag {
					bag = append(bag, lootFromRepr(lr))
					session.BumpLootCounter(lr.ID)
				}
				dog.SetBag(bag)
				session.AddDog(dog)

				p, err := a.players.AddWithToken(dr.Player.ID, dr.Player.Name,
					player.Token(dr.Player.Token), dog, session)
				if err != nil {
					a.log.Warnw("snapshot player not restorable, skipping",
						"player", dr.Player.ID, "err", err)
					session.RemoveDog(dog.ID())
					continue
				}
				a.clocks[p.ID] = player.NewTimeClock()
				if p.ID >= a.autoCounter {
					a.autoCounter = p.ID + 1
				}
				playersOnline.Inc()
			}
		}
	}
	a.updateGauges()
}
