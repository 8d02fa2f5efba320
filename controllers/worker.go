package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func (rc *ReportController) Jobs(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	jobs, err := rc.reports.WorkerQueue(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (rc *ReportController) Start(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var input struct {
		ExpectedVersion int64 `json:"expected_version"`
	}
	if !bindOptionalJSON(c, &input) {
		return
	}

	report, err := rc.reports.Start(c.Request.Context(), actor, id, input.ExpectedVersion)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Resolve takes a multipart form: resolution_notes, expected_version and
// the proof photo in "image".
func (rc *ReportController) Resolve(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	if !parseMultipart(c) {
		return
	}

	var expected int64
	if raw := strings.TrimSpace(c.PostForm("expected_version")); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "expected_version: not a number"})
			return
		}
		expected = v
	}

	proof, done, err := formPhoto(c, "image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image"})
		return
	}
	defer done()

	report, err := rc.reports.Resolve(c.Request.Context(), actor, id, c.PostForm("resolution_notes"), proof, expected)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
