package models

import (
	"fmt"
	"math"
	"strings"
)

const (
	// MaxRadiusMeters caps centre+radius marker queries.
	MaxRadiusMeters = 50_000
	// MaxMarkers caps the number of markers returned by one query.
	MaxMarkers = 500
)

type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

type Circle struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	RadiusMeters float64 `json:"radius"`
}

// MarkerQuery selects map markers. At most one of Box and Near is set;
// with neither, every report with coordinates matches.
type MarkerQuery struct {
	Box    *BoundingBox
	Near   *Circle
	Status Status
}

func ValidLatLng(lat, lng float64) bool {
	return !math.IsNaN(lat) && !math.IsNaN(lng) && lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

func (q MarkerQuery) Validate() error {
	if q.Box != nil && q.Near != nil {
		return fmt.Errorf("use either a bounding box or a radius, not both")
	}
	if b := q.Box; b != nil {
		if !ValidLatLng(b.MinLat, b.MinLng) || !ValidLatLng(b.MaxLat, b.MaxLng) {
			return fmt.Errorf("bounding box coordinates out of range")
		}
		if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
			return fmt.Errorf("bounding box minimum exceeds maximum")
		}
	}
	if c := q.Near; c != nil {
		if !ValidLatLng(c.Lat, c.Lng) {
			return fmt.Errorf("centre coordinates out of range")
		}
		if c.RadiusMeters <= 0 || c.RadiusMeters > MaxRadiusMeters {
			return fmt.Errorf("radius must be between 0 and %d metres", MaxRadiusMeters)
		}
	}
	if q.Status != "" && !q.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, q.Status)
	}
	return nil
}

// gridScale snaps query coordinates to three decimals, about 100 m.
const gridScale = 1000

// Snapped moves q onto the grid Key uses: box edges move outwards, the centre
// is rounded and the radius rounded up. Queries sharing a key then also run
// the same store query, and a snapped box never loses markers the original
// box covered.
func (q MarkerQuery) Snapped() MarkerQuery {
	if b := q.Box; b != nil {
		q.Box = &BoundingBox{
			MinLat: math.Max(-90, snapDown(b.MinLat)),
			MinLng: math.Max(-180, snapDown(b.MinLng)),
			MaxLat: math.Min(90, snapUp(b.MaxLat)),
			MaxLng: math.Min(180, snapUp(b.MaxLng)),
		}
	}
	if c := q.Near; c != nil {
		q.Near = &Circle{
			Lat:          math.Round(c.Lat*gridScale) / gridScale,
			Lng:          math.Round(c.Lng*gridScale) / gridScale,
			RadiusMeters: math.Ceil(c.RadiusMeters),
		}
	}
	return q
}

// The epsilon keeps values already on the grid, like 14.7*1000, in place.
func snapDown(v float64) float64 { return math.Floor(v*gridScale+1e-6) / gridScale }
func snapUp(v float64) float64   { return math.Ceil(v*gridScale-1e-6) / gridScale }

// Key is a stable cache key for the snapped form of q.
func (q MarkerQuery) Key() string {
	q = q.Snapped()
	var b strings.Builder
	switch {
	case q.Box != nil:
		fmt.Fprintf(&b, "box:%.3f,%.3f,%.3f,%.3f", q.Box.MinLat, q.Box.MinLng, q.Box.MaxLat, q.Box.MaxLng)
	case q.Near != nil:
		fmt.Fprintf(&b, "near:%.3f,%.3f,%.0f", q.Near.Lat, q.Near.Lng, q.Near.RadiusMeters)
	default:
		b.WriteString("all")
	}
	b.WriteString("|")
	if q.Status == "" {
		b.WriteString("any")
	} else {
		b.WriteString(strings.ReplaceAll(strings.ToLower(string(q.Status)), " ", "_"))
	}
	return b.String()
}

// StatusChangedEvent is published after every committed status write and
// after an assignment. An assignment has From == To.
type StatusChangedEvent struct {
	ReportID   string `json:"report_id"`
	From       Status `json:"from"`
	To         Status `json:"to"`
	By         string `json:"by"`
	Role       Role   `json:"role"`
	AssignedTo string `json:"assigned_to,omitempty"`
	Version    int64  `json:"version"`
	At         string `json:"at"`
}

const earthRadiusMeters = 6_371_008.8

// DistanceMeters is the great-circle distance between two points.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

func (c Circle) Contains(lat, lng float64) bool {
	return DistanceMeters(c.Lat, c.Lng, lat, lng) <= c.RadiusMeters
}

// Matches reports whether a marker at lat/lng with status st satisfies q.
func (q MarkerQuery) Matches(lat, lng float64, st Status) bool {
	if q.Status != "" && q.Status != st {
		return false
	}
	if q.Box != nil && !q.Box.Contains(lat, lng) {
		return false
	}
	if q.Near != nil && !q.Near.Contains(lat, lng) {
		return false
	}
	return true
}
