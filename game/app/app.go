// Package app hosts the server's use-cases: joining, player actions,
// the game tick with retirement, loot generation, leaderboard queries and
// state snapshots. All core state is owned by a single strand; the HTTP
// layer and the tickers dispatch through it.
package app

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/artndx/game-server/game/geom"
	"github.com/artndx/game-server/game/model"
	"github.com/artndx/game-server/game/player"
)

var (
	ErrMapNotFound     = model.ErrMapNotFound
	ErrInvalidUserName = errors.New("invalid user name")
	ErrUnknownToken    = errors.New("unknown token")
)

var (
	playersOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_players_online",
		Help: "Number of players currently connected",
	})

	lootObjects = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_loot_objects",
		Help: "Number of loot items lying on all maps",
	})

	retiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_players_retired_total",
		Help: "Total number of players retired for inactivity",
	})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_duration_seconds",
		Help:    "Duration of one simulation tick",
		Buckets: prometheus.DefBuckets,
	})
)

// RetiredRecord is one leaderboard row.
type RetiredRecord struct {
	Name     string  `json:"name"`
	Score    int     `json:"score"`
	PlayTime float64 `json:"playTime"`
}

// LeaderboardStore persists retired players. Implementations block the
// caller but must never be invoked while the strand is held.
type LeaderboardStore interface {
	InsertRetired(ctx context.Context, rec RetiredRecord) error
	SelectTop(ctx context.Context, start, maxItems int) ([]RetiredRecord, error)
}

// StateListener receives the world state of a session after each tick.
// Used by the websocket feed; delivery failures never affect the tick.
type StateListener interface {
	BroadcastState(mapID string, state *StateResult)
}

// JoinResult is the response to a successful join.
type JoinResult struct {
	AuthToken string `json:"authToken"`
	PlayerID  int    `json:"playerId"`
}

// PlayerName is one entry of the player listing.
type PlayerName struct {
	Name string `json:"name"`
}

// BagItem is one collected item in a state response.
type BagItem struct {
	ID   int `json:"id"`
	Type int `json:"type"`
}

// PlayerState is one player's slice of the state response.
type PlayerState struct {
	Pos   [2]float64 `json:"pos"`
	Speed [2]float64 `json:"speed"`
	Dir   string     `json:"dir"`
	Bag   []BagItem  `json:"bag"`
	Score int        `json:"score"`
}

// LostObject is one loot item of the state response.
type LostObject struct {
	Type int        `json:"type"`
	Pos  [2]float64 `json:"pos"`
}

// StateResult is the full world state visible to one session's players.
type StateResult struct {
	Players     map[string]PlayerState `json:"players"`
	LostObjects map[string]LostObject  `json:"lostObjects"`
}

// Options configure the application behavior from the command line.
type Options struct {
	// TickPeriod enables automatic ticks; nil means time advances only
	// through the tick endpoint.
	TickPeriod *time.Duration
	// RandomizeSpawnPoints spawns dogs at random road points instead of
	// the first road's start.
	RandomizeSpawnPoints bool
	// StateFile enables snapshots when non-empty.
	StateFile string
	// SaveStatePeriod throttles tick-synchronous snapshots.
	SaveStatePeriod *time.Duration
}

// Application wires the game model, the player registry and the
// leaderboard store behind the core strand.
type Application struct {
	strand  Strand
	game    *model.Game
	players *player.Registry
	clocks  map[int]*player.TimeClock
	store   LeaderboardStore
	log     *zap.SugaredLogger
	opts    Options

	listener    StateListener
	autoCounter int
	sinceSave   time.Duration
}

// New creates the application and runs the initial loot fill.
func New(game *model.Game, store LeaderboardStore, log *zap.SugaredLogger, opts Options) *Application {
	a := &Application{
		game:    game,
		players: player.NewRegistry(game.Rand()),
		clocks:  make(map[int]*player.TimeClock),
		store:   store,
		log:     log,
		opts:    opts,
	}
	a.strand.Do(func() {
		a.game.GenerateLoot(0)
	})
	return a
}

// SetStateListener registers the per-tick state broadcast target.
func (a *Application) SetStateListener(l StateListener) {
	a.listener = l
}

// ManualTicks reports whether time advances through the tick endpoint.
func (a *Application) ManualTicks() bool {
	return a.opts.TickPeriod == nil
}

// Game returns the game model. Read it only through the strand.
func (a *Application) Game() *model.Game {
	return a.game
}

// Maps returns {id, name} pairs for every map, in config order.
func (a *Application) Maps() []map[string]string {
	var result []map[string]string
	a.strand.Do(func() {
		for _, m := range a.game.Maps() {
			result = append(result, map[string]string{"id": m.ID(), "name": m.Name()})
		}
	})
	return result
}

// FindMap returns the map with the given id, or nil.
func (a *Application) FindMap(id string) *model.Map {
	var m *model.Map
	a.strand.Do(func() {
		m = a.game.FindMap(id)
	})
	return m
}

// JoinGame registers a new player on the map and issues its token.
func (a *Application) JoinGame(userName, mapID string) (JoinResult, error) {
	var result JoinResult
	var err error
	a.strand.Do(func() {
		result, err = a.joinGame(userName, mapID)
	})
	return result, err
}

func (a *Application) joinGame(userName, mapID string) (JoinResult, error) {
	if userName == "" {
		return JoinResult{}, ErrInvalidUserName
	}
	if a.game.FindMap(mapID) == nil {
		return JoinResult{}, ErrMapNotFound
	}

	session, err := a.game.FindOrCreateSession(mapID)
	if err != nil {
		return JoinResult{}, err
	}

	pos := session.Map().FirstRoadPos()
	if a.opts.RandomizeSpawnPoints {
		pos = session.Map().RandomRoadPos(a.game.Rand())
	}

	id := a.autoCounter
	dog := model.NewDog(id, userName, pos, geom.Vec2{}, model.North)
	session.AddDog(dog)

	// A new dog raises the loot target: top the session up to one item
	// per dog.
	if deficit := len(session.Dogs()) - len(session.Loot()); deficit > 0 {
		session.SpawnLoot(deficit, a.game.Rand())
	}

	p, err := a.players.Add(id, userName, dog, session)
	if err != nil {
		session.RemoveDog(id)
		return JoinResult{}, err
	}
	a.clocks[p.ID] = player.NewTimeClock()
	a.autoCounter++

	playersOnline.Inc()
	a.log.Infow("player joined", "player", p.ID, "map", mapID, "name", userName)

	return JoinResult{AuthToken: string(p.Token), PlayerID: p.ID}, nil
}

// ListPlayers returns the names of every player sharing the requesting
// player's session, keyed by player id.
func (a *Application) ListPlayers(token player.Token) (map[string]PlayerName, error) {
	var result map[string]PlayerName
	var err error
	a.strand.Do(func() {
		p := a.players.FindByToken(token)
		if p == nil {
			err = ErrUnknownToken
			return
		}
		result = make(map[string]PlayerName)
		for _, other := range a.players.BySession(p.Session) {
			result[strconv.Itoa(other.ID)] = PlayerName{Name: other.Name}
		}
	})
	return result, err
}

// GameState returns the state of the requesting player's session.
func (a *Application) GameState(token player.Token) (*StateResult, error) {
	var result *StateResult
	var err error
	a.strand.Do(func() {
		p := a.players.FindByToken(token)
		if p == nil {
			err = ErrUnknownToken
			return
		}
		result = a.sessionState(p.Session)
	})
	return result, err
}

// sessionState renders one session's world state. Must run on the strand.
func (a *Application) sessionState(session *model.GameSession) *StateResult {
	result := &StateResult{
		Players:     make(map[string]PlayerState),
		LostObjects: make(map[string]LostObject),
	}
	for _, p := range a.players.BySession(session) {
		dog := p.Dog
		state := PlayerState{
			Pos:   [2]float64{dog.Position().X, dog.Position().Y},
			Speed: [2]float64{dog.Speed().X, dog.Speed().Y},
			Dir:   dog.Direction().String(),
			Bag:   make([]BagItem, 0, len(dog.Bag())),
			Score: dog.Score(),
		}
		for _, item := range dog.Bag() {
			state.Bag = append(state.Bag, BagItem{ID: item.ID, Type: item.Type})
		}
		result.Players[strconv.Itoa(p.ID)] = state
	}
	for _, item := range session.Loot() {
		result.LostObjects[strconv.Itoa(item.ID)] = LostObject{
			Type: item.Type,
			Pos:  [2]float64{item.Pos.X, item.Pos.Y},
		}
	}
	return result
}

// SetAction applies a move intent to the player's dog. An empty move
// stops the dog without changing its direction.
func (a *Application) SetAction(token player.Token, move string) error {
	var err error
	a.strand.Do(func() {
		p := a.players.FindByToken(token)
		if p == nil {
			err = ErrUnknownToken
			return
		}

		speed := p.Session.Map().DogSpeed()
		var velocity geom.Vec2
		switch move {
		case "U":
			velocity = geom.Vec2{Y: -speed}
			p.Dog.SetDirection(model.North)
		case "D":
			velocity = geom.Vec2{Y: speed}
			p.Dog.SetDirection(model.South)
		case "L":
			velocity = geom.Vec2{X: -speed}
			p.Dog.SetDirection(model.West)
		case "R":
			velocity = geom.Vec2{X: speed}
			p.Dog.SetDirection(model.East)
		case "":
			// Stop; direction stays as it was.
		}
		p.Dog.SetSpeed(velocity)
		if clock := a.clocks[p.ID]; clock != nil {
			clock.ObserveSpeed(!velocity.IsZero())
		}
	})
	return err
}

// Tick advances the world by delta: player clocks first, then retirement,
// then movement and collision resolution. Leaderboard writes for retired
// players happen after the strand is released so a slow database never
// blocks the simulation.
func (a *Application) Tick(ctx context.Context, delta time.Duration) {
	started := time.Now()

	var retired []RetiredRecord
	a.strand.Do(func() {
		retired = a.tick(delta)
	})
	tickDuration.Observe(time.Since(started).Seconds())

	for _, rec := range retired {
		if err := a.store.InsertRetired(ctx, rec); err != nil {
			// The player is gone either way; the leaderboard row is lost.
			a.log.Errorw("leaderboard insert failed", "name", rec.Name, "err", err)
		}
	}
}

// tick runs the strand-held part of a tick and returns the leaderboard
// rows of every player retired during it.
func (a *Application) tick(delta time.Duration) []RetiredRecord {
	var retired []RetiredRecord

	threshold := a.game.DogRetirementTime()
	for _, p := range a.players.All() {
		clock := a.clocks[p.ID]
		if clock == nil {
			continue
		}
		clock.Advance(delta)
		if idle, ok := clock.Inactivity(); ok && idle >= threshold {
			playTime := min(clock.Playtime().Seconds(), threshold.Seconds())
			retired = append(retired, RetiredRecord{
				Name:     p.Name,
				Score:    p.Dog.Score(),
				PlayTime: playTime,
			})
			a.disconnect(p)
		}
	}

	a.game.Update(delta)

	// Movement may have clamped dogs to a stop; report the resulting
	// speeds so inactivity clocks stay in sync.
	for _, p := range a.players.All() {
		if clock := a.clocks[p.ID]; clock != nil {
			clock.ObserveSpeed(!p.Dog.Speed().IsZero())
		}
	}

	a.saveOnTick(delta)
	a.broadcastStates()
	a.updateGauges()

	return retired
}

// disconnect removes the player from every index and its dog from the
// session. Must run on the strand.
func (a *Application) disconnect(p *player.Player) {
	a.players.Remove(p)
	delete(a.clocks, p.ID)
	a.game.DisconnectDog(p.Session, p.Dog.ID())

	playersOnline.Dec()
	retiredTotal.Inc()
	a.log.Infow("player retired", "player", p.ID, "name", p.Name, "score", p.Dog.Score())
}

// GenerateLoot runs one loot-generation pass over every session.
func (a *Application) GenerateLoot(delta time.Duration) {
	a.strand.Do(func() {
		a.game.GenerateLoot(delta)
		a.updateGauges()
	})
}

// Records returns one leaderboard page ordered by score, play time, name.
func (a *Application) Records(ctx context.Context, start, maxItems int) ([]RetiredRecord, error) {
	return a.store.SelectTop(ctx, start, maxItems)
}

// RunTickers blocks running the automatic game and loot tickers until ctx
// is cancelled. It returns immediately in manual tick mode.
func (a *Application) RunTickers(ctx context.Context) {
	if a.opts.TickPeriod == nil {
		return
	}

	gameTicker := NewTicker(*a.opts.TickPeriod, func(delta time.Duration) {
		a.Tick(ctx, delta)
	})

	lootPeriod := a.game.LootGeneratePeriod()
	if lootPeriod <= 0 {
		gameTicker.Run(ctx)
		return
	}
	lootTicker := NewTicker(lootPeriod, a.GenerateLoot)

	done := make(chan struct{})
	go func() {
		defer close(done)
		lootTicker.Run(ctx)
	}()
	gameTicker.Run(ctx)
	<-done
}

func (a *Application) broadcastStates() {
	if a.listener == nil {
		return
	}
	for mapID, sessions := range a.game.Sessions() {
		for _, session := range sessions {
			a.listener.BroadcastState(mapID, a.sessionState(session))
		}
	}
}

func (a *Application) updateGauges() {
	total := 0
	for _, sessions := range a.game.Sessions() {
		for _, session := range sessions {
			total += len(session.Loot())
		}
	}
	lootObjects.Set(float64(total))
}
