package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/artndx/game-server/game/app"
	"github.com/artndx/game-server/game/config"
	"github.com/artndx/game-server/game/model"
)

func (s *Server) handleListMaps(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Maps())
}

func (s *Server) handleGetMap(w http.ResponseWriter, req *http.Request) {
	m := s.app.FindMap(chi.URLParam(req, "id"))
	if m == nil {
		writeError(w, http.StatusNotFound, codeMapNotFound, "Map not found")
		return
	}
	writeJSON(w, http.StatusOK, mapDocument(m))
}

// mapDocument renders a map back into its config-file form, including
// only the optional loot-type fields the config carried.
func mapDocument(m *model.Map) config.Map {
	doc := config.Map{
		ID:        m.ID(),
		Name:      m.Name(),
		Roads:     make([]config.Road, 0, len(m.Roads())),
		Buildings: make([]config.Building, 0, len(m.Buildings())),
		Offices:   make([]config.Office, 0, len(m.Offices())),
		LootTypes: make([]config.LootType, 0, len(m.LootTypes())),
	}

	for _, road := range m.Roads() {
		entry := config.Road{X0: road.Start().X, Y0: road.Start().Y}
		if road.IsHorizontal() {
			x1 := road.End().X
			entry.X1 = &x1
		} else {
			y1 := road.End().Y
			entry.Y1 = &y1
		}
		doc.Roads = append(doc.Roads, entry)
	}

	for _, b := range m.Buildings() {
		doc.Buildings = append(doc.Buildings, config.Building{
			X: b.Bounds.Position.X,
			Y: b.Bounds.Position.Y,
			W: b.Bounds.Size.Width,
			H: b.Bounds.Size.Height,
		})
	}

	for _, o := range m.Offices() {
		doc.Offices = append(doc.Offices, config.Office{
			ID:      o.ID,
			X:       o.Position.X,
			Y:       o.Position.Y,
			OffsetX: o.Offset.DX,
			OffsetY: o.Offset.DY,
		})
	}

	for _, lt := range m.LootTypes() {
		doc.LootTypes = append(doc.LootTypes, config.LootType{
			Name:     lt.Name,
			File:     lt.File,
			Type:     lt.Kind,
			Rotation: lt.Rotation,
			Color:    lt.Color,
			Scale:    lt.Scale,
			Value:    lt.Value,
		})
	}

	return doc
}

type joinRequest struct {
	UserName string `json:"userName"`
	MapID    string `json:"mapId"`
}

func (s *Server) handleJoin(w http.ResponseWriter, req *http.Request) {
	if !isJSONRequest(req) {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "Content-Type: application/json expected")
		return
	}

	var body joinRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "Join game request parse error")
		return
	}

	result, err := s.app.JoinGame(body.UserName, body.MapID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListPlayers(w http.ResponseWriter, req *http.Request) {
	players, err := s.app.ListPlayers(tokenFromContext(req.Context()))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (s *Server) handleGameState(w http.ResponseWriter, req *http.Request) {
	state, err := s.app.GameState(tokenFromContext(req.Context()))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type actionRequest struct {
	Move string `json:"move"`
}

func (s *Server) handleAction(w http.ResponseWriter, req *http.Request) {
	if !isJSONRequest(req) {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "Invalid content type")
		return
	}

	var body actionRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "Failed to parse action")
		return
	}
	switch body.Move {
	case "U", "D", "L", "R", "":
	default:
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "Failed to parse action")
		return
	}

	if err := s.app.SetAction(tokenFromContext(req.Context()), body.Move); err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

type tickRequest struct {
	TimeDelta *int64 `json:"timeDelta"`
}

func (s *Server) handleTick(w http.ResponseWriter, req *http.Request) {
	if !s.app.ManualTicks() {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid endpoint")
		return
	}
	if !isJSONRequest(req) {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "Invalid content type - application/json is required")
		return
	}

	var body tickRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.TimeDelta == nil || *body.TimeDelta < 0 {
		writeError(w, http.StatusBadRequest, codeInvalidArgument, "Failed to parse tick request JSON")
		return
	}

	delta := time.Duration(*body.TimeDelta) * time.Millisecond
	s.app.Tick(req.Context(), delta)
	s.app.GenerateLoot(delta)
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleRecords(w http.ResponseWriter, req *http.Request) {
	start := 0
	maxItems := maxRecordsPageSize

	query := req.URL.Query()
	if raw := query.Get("start"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Incorrect start parameter")
			return
		}
		start = parsed
	}
	if raw := query.Get("maxItems"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 || parsed > maxRecordsPageSize {
			writeError(w, http.StatusBadRequest, codeBadRequest, "Incorrect maxItems parameter")
			return
		}
		maxItems = parsed
	}

	rows, err := s.app.Records(req.Context(), start, maxItems)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	if rows == nil {
		rows = []app.RetiredRecord{}
	}
	writeJSON(w, http.StatusOK, rows)
}
