package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/artndx/game-server/game/app"
	"github.com/artndx/game-server/game/player"
	"github.com/artndx/game-server/transport/websocket"
)

// Error code strings of the wire protocol.
const (
	codeMapNotFound     = "mapNotFound"
	codeInvalidArgument = "invalidArgument"
	codeInvalidToken    = "invalidToken"
	codeUnknownToken    = "unknownToken"
	codeInvalidMethod   = "invalidMethod"
	codeBadRequest      = "badRequest"
	codeInternalError   = "internalError"
)

// maxRecordsPageSize caps one leaderboard page.
const maxRecordsPageSize = 100

type ctxKey int

const tokenKey ctxKey = 0

// Options configure the HTTP surface.
type Options struct {
	// WWWRoot serves static files for every non-API path when non-empty.
	WWWRoot string
	// Hub receives websocket subscriptions when non-nil.
	Hub *websocket.Hub
}

// Server routes HTTP requests to application use-cases.
type Server struct {
	app  *app.Application
	log  *zap.SugaredLogger
	opts Options
}

// NewServer builds the HTTP surface around the application.
func NewServer(application *app.Application, log *zap.SugaredLogger, opts Options) *Server {
	return &Server{app: application, log: log, opts: opts}
}

// Router assembles all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeInvalidMethod, "Invalid method")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/maps", s.handleListMaps)
		r.Head("/maps", s.handleListMaps)
		r.Get("/maps/{id}", s.handleGetMap)
		r.Head("/maps/{id}", s.handleGetMap)

		r.Post("/game/join", s.handleJoin)
		r.Post("/game/tick", s.handleTick)
		r.Get("/game/records", s.handleRecords)
		r.Head("/game/records", s.handleRecords)

		r.Group(func(r chi.Router) {
			r.Use(s.authorize)
			r.Get("/game/players", s.handleListPlayers)
			r.Head("/game/players", s.handleListPlayers)
			r.Get("/game/state", s.handleGameState)
			r.Head("/game/state", s.handleGameState)
			r.Post("/game/player/action", s.handleAction)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	if s.opts.Hub != nil {
		r.Get("/ws", s.handleWebSocket)
	}

	if s.opts.WWWRoot != "" {
		fileServer := http.FileServer(http.Dir(s.opts.WWWRoot))
		r.NotFound(func(w http.ResponseWriter, req *http.Request) {
			if strings.HasPrefix(req.URL.Path, "/api/") {
				writeError(w, http.StatusBadRequest, codeBadRequest, "Bad request")
				return
			}
			fileServer.ServeHTTP(w, req)
		})
	} else {
		r.NotFound(func(w http.ResponseWriter, req *http.Request) {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Bad request")
		})
	}

	return r
}

// authorize validates the Authorization header format and stores the
// token in the request context. Any deviation from "Bearer <32 hex>" is
// an invalid token; whether the token is known is decided later, inside
// the strand, so a token deleted mid-request still reads as unknown.
func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		header := req.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			writeError(w, http.StatusUnauthorized, codeInvalidToken, "Authorization header is missing")
			return
		}
		token := header[len(prefix):]
		if !player.IsValidToken(token) {
			writeError(w, http.StatusUnauthorized, codeInvalidToken, "Invalid token format")
			return
		}
		ctx := context.WithValue(req.Context(), tokenKey, player.Token(token))
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func tokenFromContext(ctx context.Context) player.Token {
	token, _ := ctx.Value(tokenKey).(player.Token)
	return token
}

func (s *Server) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	mapID := req.URL.Query().Get("map")
	if mapID == "" || s.app.FindMap(mapID) == nil {
		writeError(w, http.StatusNotFound, codeMapNotFound, "Map not found")
		return
	}
	s.opts.Hub.ServeWS(w, req, mapID)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

// writeAppError maps a use-case error to its wire representation.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrMapNotFound):
		writeError(w, http.StatusNotFound, codeMapNotFound, "Map not found")
	case errors.Is(err, app.ErrInvalidUserName):
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "Invalid name")
	case errors.Is(err, app.ErrUnknownToken):
		writeError(w, http.StatusUnauthorized, codeUnknownToken, "Player token has not been found")
	default:
		s.log.Errorw("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "Internal error")
	}
}

// isJSONRequest checks the Content-Type the same way for every POST
// endpoint: absent or non-JSON content is an invalid argument.
func isJSONRequest(req *http.Request) bool {
	contentType := req.Header.Get("Content-Type")
	return contentType == "application/json" ||
		strings.HasPrefix(contentType, "application/json;")
}
