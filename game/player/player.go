// Package player maps players to dogs and sessions, issues authentication
// tokens and tracks per-player activity clocks.
package player

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"

	"github.com/artndx/game-server/game/model"
)

var (
	ErrTokenCollision  = errors.New("token collision")
	ErrDuplicatePlayer = errors.New("player already registered")
)

// Token authenticates one player: 32 lowercase hex characters.
type Token string

var tokenPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// IsValidToken reports whether s has the exact token format.
func IsValidToken(s string) bool {
	return tokenPattern.MatchString(s)
}

// Player ties a dog to its session and its authentication token. The dog
// is owned by the session and the player by the registry; the player only
// borrows the dog reference and is always removed before the dog.
type Player struct {
	ID      int
	Name    string
	Token   Token
	Dog     *model.Dog
	Session *model.GameSession
}

// dogMapKey identifies a player by its dog id and map id.
type dogMapKey struct {
	dogID int
	mapID string
}

// Registry owns all live players and keeps three indexes consistent:
// by (dog id, map id), by token and by session.
type Registry struct {
	rnd *rand.Rand

	byDogMap  map[dogMapKey]*Player
	byToken   map[Token]*Player
	bySession map[*model.GameSession][]*Player
}

// NewRegistry creates an empty registry. rnd drives token generation;
// inject a seeded source to make tests deterministic.
func NewRegistry(rnd *rand.Rand) *Registry {
	return &Registry{
		rnd:       rnd,
		byDogMap:  make(map[dogMapKey]*Player),
		byToken:   make(map[Token]*Player),
		bySession: make(map[*model.GameSession][]*Player),
	}
}

// Add registers a player and issues a fresh token for it.
func (r *Registry) Add(id int, name string, dog *model.Dog, session *model.GameSession) (*Player, error) {
	token, err := r.generateToken()
	if err != nil {
		return nil, err
	}
	return r.AddWithToken(id, name, token, dog, session)
}

// AddWithToken registers a player under a known token. Used when
// restoring a snapshot.
func (r *Registry) AddWithToken(id int, name string, token Token, dog *model.Dog, session *model.GameSession) (*Player, error) {
	key := dogMapKey{dogID: dog.ID(), mapID: session.Map().ID()}
	if _, ok := r.byDogMap[key]; ok {
		return nil, ErrDuplicatePlayer
	}
	if _, ok := r.byToken[token]; ok {
		return nil, ErrTokenCollision
	}

	p := &Player{ID: id, Name: name, Token: token, Dog: dog, Session: session}
	r.byDogMap[key] = p
	r.byToken[token] = p
	r.bySession[session] = append(r.bySession[session], p)
	return p, nil
}

// FindByToken returns the player owning the token, or nil.
func (r *Registry) FindByToken(token Token) *Player {
	return r.byToken[token]
}

// FindByDogAndMap returns the player owning the dog on the map, or nil.
func (r *Registry) FindByDogAndMap(dogID int, mapID string) *Player {
	return r.byDogMap[dogMapKey{dogID: dogID, mapID: mapID}]
}

// BySession returns the session's players in join order.
func (r *Registry) BySession(session *model.GameSession) []*Player {
	return r.bySession[session]
}

// All returns every live player. Iteration order is unspecified.
func (r *Registry) All() []*Player {
	result := make([]*Player, 0, len(r.byToken))
	for _, p := range r.byToken {
		result = append(result, p)
	}
	return result
}

// Remove deletes the player from all three indexes.
func (r *Registry) Remove(p *Player) {
	delete(r.byDogMap, dogMapKey{dogID: p.Dog.ID(), mapID: p.Session.Map().ID()})
	delete(r.byToken, p.Token)

	players := r.bySession[p.Session]
	for i, other := range players {
		if other == p {
			r.bySession[p.Session] = append(players[:i], players[i+1:]...)
			break
		}
	}
}

// generateToken concatenates two zero-padded 64-bit hex draws. The draw
// is retried on the rare collision with a live token.
func (r *Registry) generateToken() (Token, error) {
	for attempt := 0; attempt < 10; attempt++ {
		token := Token(fmt.Sprintf("%016x%016x", r.rnd.Uint64(), r.rnd.Uint64()))
		if _, ok := r.byToken[token]; !ok {
			return token, nil
		}
	}
	return "", ErrTokenCollision
}
