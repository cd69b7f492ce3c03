package handlers

import (
	"cmp"
	"net/http"
	"slices"
	"strconv"

	"sunday-scrims/internal/a2s"
	"sunday-scrims/internal/match"

	"github.com/pocketbase/pocketbase/core"
)

const (
	defaultLadderLimit = 10
	maxLadderLimit     = 100
)

type assignment struct {
	SteamID string `json:"steamId"`
	Team    string `json:"team"`
	Rating  int    `json:"rating"`
}

type stateResponse struct {
	State       string       `json:"state"`
	Pending     int          `json:"pending"`
	Assignments []assignment `json:"assignments"`
}

// ServerStatus reports the last A2S query of the game server
type ServerStatus interface {
	Status() (a2s.Status, bool)
}

// RegisterRoutes adds the read-only scrims API to the PocketBase router on serve.
// server may be nil.
func RegisterRoutes(app core.App, engine *match.Engine, ladder Ladder, server ServerStatus) {
	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		BindRoutes(e, engine, ladder, server)
		return e.Next()
	})
}

// BindRoutes registers the scrims API on an already running serve event
func BindRoutes(e *core.ServeEvent, engine *match.Engine, ladder Ladder, server ServerStatus) {
	e.Router.GET("/api/scrims/state", func(re *core.RequestEvent) error {
		return re.JSON(http.StatusOK, engineState(engine))
	})

	e.Router.GET("/api/scrims/ladder", func(re *core.RequestEvent) error {
		limit := defaultLadderLimit
		if raw := re.Request.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				return re.BadRequestError("limit must be a positive integer", err)
			}
			limit = min(n, maxLadderLimit)
		}

		entries, err := ladder.TopRatings(re.Request.Context(), limit)
		if err != nil {
			return re.InternalServerError("Failed to load ladder", err)
		}
		return re.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"players": entries,
		})
	})

	e.Router.GET("/api/scrims/server", func(re *core.RequestEvent) error {
		if server == nil {
			return re.NotFoundError("Server queries are disabled", nil)
		}
		status, ok := server.Status()
		if !ok {
			return re.Error(http.StatusServiceUnavailable, "Server has not been queried yet", nil)
		}
		return re.JSON(http.StatusOK, status)
	})
}

func engineState(engine *match.Engine) stateResponse {
	resp := stateResponse{
		State:       engine.State().String(),
		Pending:     engine.Pending(),
		Assignments: []assignment{},
	}
	for id, team := range engine.Assignments() {
		resp.Assignments = append(resp.Assignments, assignment{
			SteamID: id.String(),
			Team:    team.String(),
			Rating:  int(engine.Rating(id)),
		})
	}
	slices.SortFunc(resp.Assignments, func(a, b assignment) int {
		return cmp.Compare(a.SteamID, b.SteamID)
	})
	return resp
}
