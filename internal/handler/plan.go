package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jmisilo/hackyeah-2025-sub000/internal/geo"
	"github.com/jmisilo/hackyeah-2025-sub000/internal/planner"
)

// pointJSON is a validated coordinate pair in a plan request.
type pointJSON struct {
	Lat float64 `json:"lat" binding:"required,gte=-90,lte=90"`
	Lon float64 `json:"lon" binding:"required,gte=-180,lte=180"`
}

// planRequestJSON is the request body for POST /api/v1/trips/plan.
type planRequestJSON struct {
	Start pointJSON `json:"start" binding:"required"`
	End   pointJSON `json:"end" binding:"required"`

	Modes []string `json:"modes" binding:"omitempty,dive,oneof=walking bus tram train"`

	Preferences struct {
		MinimizeWalking   bool `json:"minimize_walking"`
		MinimizeTransfers bool `json:"minimize_transfers"`
		MinimizeTime      bool `json:"minimize_time"`
		AvoidStairs       bool `json:"avoid_stairs"`
		PreferExpress     bool `json:"prefer_express"`
	} `json:"preferences"`

	MaxWalkingDistanceM float64 `json:"max_walking_distance_m" binding:"omitempty,gt=0"`
	MaxWalkingTimeMin   int     `json:"max_walking_time_min" binding:"omitempty,gt=0"`
}

// PlanTrip handles POST /api/v1/trips/plan
//
// Response 200: the plan response with the primary route, alternatives and
// warnings. A request for which no route exists still returns 200 — the
// failure is expressed as an error-severity warning with an empty route list.
// Response 400: malformed body or invalid coordinates.
func (h *Handler) PlanTrip(c *gin.Context) {
	var body planRequestJSON
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The planner only filters stops by class; walking is always available.
	modes := make([]string, 0, len(body.Modes))
	for _, m := range body.Modes {
		if m != "walking" {
			modes = append(modes, m)
		}
	}

	req := planner.PlanRequest{
		Start: geo.Point{Lat: body.Start.Lat, Lon: body.Start.Lon},
		End:   geo.Point{Lat: body.End.Lat, Lon: body.End.Lon},
		Modes: modes,
		Preferences: planner.Preferences{
			MinimizeWalking:   body.Preferences.MinimizeWalking,
			MinimizeTransfers: body.Preferences.MinimizeTransfers,
			MinimizeTime:      body.Preferences.MinimizeTime,
			AvoidStairs:       body.Preferences.AvoidStairs,
			PreferExpress:     body.Preferences.PreferExpress,
		},
		MaxWalkingDistanceM: body.MaxWalkingDistanceM,
		MaxWalkingTimeMin:   body.MaxWalkingTimeMin,
	}

	c.JSON(http.StatusOK, h.planner.Plan(c.Request.Context(), req))
}
