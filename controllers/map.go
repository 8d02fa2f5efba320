package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"community-help/models"
	"community-help/services"

	"github.com/gin-gonic/gin"
)

type MapController struct {
	maps *services.MapService
}

func NewMapController(maps *services.MapService) *MapController {
	return &MapController{maps: maps}
}

// Markers accepts either min_lat, min_lng, max_lat, max_lng or lat, lng,
// radius (metres), plus an optional status.
func (m *MapController) Markers(c *gin.Context) {
	q, err := markerQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	markers, err := m.maps.Markers(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"markers": markers, "count": len(markers)})
}

func markerQuery(c *gin.Context) (models.MarkerQuery, error) {
	var q models.MarkerQuery

	if raw := strings.TrimSpace(c.Query("status")); raw != "" && !strings.EqualFold(raw, "all") {
		st, err := models.ParseStatus(raw)
		if err != nil {
			return q, err
		}
		q.Status = st
	}

	box, err := floats(c, "min_lat", "min_lng", "max_lat", "max_lng")
	if err != nil {
		return q, err
	}
	near, err := floats(c, "lat", "lng", "radius")
	if err != nil {
		return q, err
	}
	if box != nil {
		q.Box = &models.BoundingBox{MinLat: box[0], MinLng: box[1], MaxLat: box[2], MaxLng: box[3]}
	}
	if near != nil {
		q.Near = &models.Circle{Lat: near[0], Lng: near[1], RadiusMeters: near[2]}
	}
	return q, nil
}

// floats parses all of keys or none of them.
func floats(c *gin.Context, keys ...string) ([]float64, error) {
	out := make([]float64, 0, len(keys))
	for _, k := range keys {
		raw := strings.TrimSpace(c.Query(k))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: not a number", k)
		}
		out = append(out, v)
	}
	switch len(out) {
	case 0:
		return nil, nil
	case len(keys):
		return out, nil
	}
	return nil, fmt.Errorf("%s must be given together", strings.Join(keys, ", "))
}
