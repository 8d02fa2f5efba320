package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"community-help/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReportController serves the report endpoints for every role.
type ReportController struct {
	reports *services.ReportService
}

func NewReportController(reports *services.ReportService) *ReportController {
	return &ReportController{reports: reports}
}

// Create takes a multipart form: title, description, category, location,
// latitude, longitude and the photo in "image".
func (rc *ReportController) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if !parseMultipart(c) {
		return
	}

	input := services.CreateReportInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Category:    c.PostForm("category"),
		Location:    c.PostForm("location"),
	}
	var err error
	if input.Latitude, err = formFloat(c, "latitude"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitude: not a number"})
		return
	}
	if input.Longitude, err = formFloat(c, "longitude"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "longitude: not a number"})
		return
	}

	photo, done, err := formPhoto(c, "image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image"})
		return
	}
	defer done()

	report, err := rc.reports.Create(c.Request.Context(), actor, input, photo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

func (rc *ReportController) ListMine(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	reports, err := rc.reports.ListMine(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (rc *ReportController) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	view, err := rc.reports.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// formFloat returns nil for an absent field.
func formFloat(c *gin.Context, field string) (*float64, error) {
	raw := strings.TrimSpace(c.PostForm(field))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseWorkerID(raw string) (*primitive.ObjectID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	return &id, nil
}
