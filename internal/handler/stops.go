package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jmisilo/hackyeah-2025-sub000/internal/geo"
)

const (
	defaultRadiusMeters = 1000.0
	maxRadiusMeters     = 50_000.0
	defaultMaxWalkMin   = 15
)

// ListStopsNear handles GET /api/v1/stops/nearby
//
// Query params:
//   - lat     (required) float64 — WGS-84 latitude
//   - lon     (required) float64 — WGS-84 longitude
//   - radius  (optional) float64 — search radius in metres; default 1000
//   - classes (optional) string  — comma-separated class filter (bus,tram,train)
//
// Response 200:
//
//	[{"id":1,"name":"Dworzec Główny","lat":50.0647,"lon":19.945,"class":"mixed","distance_m":120.4,"walk_minutes":2}]
//
// Response 400: missing or invalid query parameters.
func (h *Handler) ListStopsNear(c *gin.Context) {
	lat, ok := parseRequiredFloat(c, "lat")
	if !ok {
		return
	}

	lon, ok := parseRequiredFloat(c, "lon")
	if !ok {
		return
	}

	radius := defaultRadiusMeters
	if raw := c.Query("radius"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "radius must be a positive number"})
			return
		}
		if v > maxRadiusMeters {
			c.JSON(http.StatusBadRequest, gin.H{"error": "radius must not exceed 50000 metres"})
			return
		}
		radius = v
	}

	var classes []string
	if raw := c.Query("classes"); raw != "" {
		classes = strings.Split(raw, ",")
	}

	// The walk-minutes ceiling is generous here: this endpoint serves map
	// display, not planning, so distance is the real limit.
	walkCeiling := geo.WalkingMinutes(radius)
	if walkCeiling < defaultMaxWalkMin {
		walkCeiling = defaultMaxWalkMin
	}

	stops := h.net.NearbyStops(geo.Point{Lat: lat, Lon: lon}, radius, walkCeiling, classes)

	type stopJSON struct {
		ID        int32   `json:"id"`
		Name      string  `json:"name"`
		Lat       float64 `json:"lat"`
		Lon       float64 `json:"lon"`
		Class     string  `json:"class"`
		DistanceM float64 `json:"distance_m"`
		WalkMin   int     `json:"walk_minutes"`
	}

	out := make([]stopJSON, len(stops))
	for i, s := range stops {
		out[i] = stopJSON{
			ID:        s.Stop.ID,
			Name:      s.Stop.Name,
			Lat:       s.Stop.Location.Lat,
			Lon:       s.Stop.Location.Lon,
			Class:     s.Stop.Class,
			DistanceM: s.Meters,
			WalkMin:   s.WalkMinutes,
		}
	}

	c.JSON(http.StatusOK, out)
}

// parseRequiredFloat extracts a required float64 query parameter.
// On failure it writes a 400 response and returns (0, false).
func parseRequiredFloat(c *gin.Context, name string) (float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " query parameter is required"})
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a valid number"})
		return 0, false
	}
	return v, true
}
