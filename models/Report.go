package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultCategory is used when the reporter does not pick one.
const DefaultCategory = "General"

// GeoPoint is a GeoJSON point; Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

func NewGeoPoint(lat, lng float64) *GeoPoint {
	return &GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

// StatusChange is one entry of a report's audit trail.
type StatusChange struct {
	From Status             `json:"from" bson:"from"`
	To   Status             `json:"to" bson:"to"`
	By   primitive.ObjectID `json:"by" bson:"by"`
	Role Role               `json:"role" bson:"role"`
	Note string             `json:"note,omitempty" bson:"note,omitempty"`
	At   time.Time          `json:"at" bson:"at"`
}

type Report struct {
	ID                 primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	UserID             primitive.ObjectID  `json:"user_id" bson:"user_id"`
	Title              string              `json:"title" bson:"title"`
	Description        string              `json:"description" bson:"description"`
	Category           string              `json:"category" bson:"category"`
	Location           string              `json:"location" bson:"location"`
	ImageURL           string              `json:"image_url" bson:"image_url"`
	Latitude           *float64            `json:"latitude" bson:"latitude"`
	Longitude          *float64            `json:"longitude" bson:"longitude"`
	Geo                *GeoPoint           `json:"-" bson:"geo,omitempty"`
	Status             Status              `json:"status" bson:"status"`
	AdminNotes         string              `json:"admin_notes,omitempty" bson:"admin_notes,omitempty"`
	PlanNotes          string              `json:"plan_notes,omitempty" bson:"plan_notes,omitempty"`
	RejectionReason    string              `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`
	ResolutionNotes    string              `json:"resolution_notes,omitempty" bson:"resolution_notes,omitempty"`
	ResolutionImageURL string              `json:"resolution_image_url,omitempty" bson:"resolution_image_url,omitempty"`
	AssignedTo         *primitive.ObjectID `json:"assigned_to,omitempty" bson:"assigned_to,omitempty"`
	Version            int64               `json:"version" bson:"version"`
	History            []StatusChange      `json:"history" bson:"history"`
	CreatedAt          time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at" bson:"updated_at"`
}

// HasLocation reports whether the report can be drawn on the map.
func (r *Report) HasLocation() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// AssignedToUser is true when the report is assigned to id.
func (r *Report) AssignedToUser(id primitive.ObjectID) bool {
	return r.AssignedTo != nil && *r.AssignedTo == id
}

// StatusUpdate is the set of fields written together with a status change.
// Zero values are left untouched in the stored document.
type StatusUpdate struct {
	From               Status
	To                 Status
	ExpectedVersion    int64
	By                 primitive.ObjectID
	Role               Role
	Note               string
	AdminNotes         string
	PlanNotes          string
	RejectionReason    string
	ResolutionNotes    string
	ResolutionImageURL string
	AssignTo           *primitive.ObjectID
	At                 time.Time
}

// Change returns the audit entry for u.
func (u StatusUpdate) Change() StatusChange {
	return StatusChange{From: u.From, To: u.To, By: u.By, Role: u.Role, Note: u.Note, At: u.At}
}

// ReportFilter narrows admin and worker listings.
type ReportFilter struct {
	UserID     *primitive.ObjectID
	Statuses   []Status
	AssignedTo *primitive.ObjectID
	// IncludeUnassigned widens an AssignedTo filter to reports with no assignee.
	IncludeUnassigned bool
	Limit             int64
	Offset            int64
}

// Stats counts reports per status.
type Stats struct {
	Total    int64            `json:"total"`
	ByStatus map[Status]int64 `json:"by_status"`
}

// NewStats returns Stats with every status present at zero.
func NewStats() Stats {
	s := Stats{ByStatus: make(map[Status]int64, len(AllStatuses))}
	for _, st := range AllStatuses {
		s.ByStatus[st] = 0
	}
	return s
}

// Marker is the reduced report shape drawn on the map.
type Marker struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Status    Status  `json:"status"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Resolved  bool    `json:"resolved"`
}

// MarkerFromReport returns false when r has no coordinates.
func MarkerFromReport(r Report) (Marker, bool) {
	if !r.HasLocation() {
		return Marker{}, false
	}
	return Marker{
		ID:        r.ID.Hex(),
		Title:     r.Title,
		Status:    r.Status,
		Latitude:  *r.Latitude,
		Longitude: *r.Longitude,
		Resolved:  r.Status == StatusResolved,
	}, true
}
