// Package api exposes the game through the HTTP/JSON surface: map
// listings, joining, player actions, world state, manual ticks and the
// leaderboard. It translates requests into application use-cases and maps
// the internal error taxonomy onto HTTP statuses and code strings.
package api
