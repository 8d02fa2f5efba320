package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"community-help/models"
	"community-help/services"

	"github.com/gin-gonic/gin"
)

// ListAll serves the admin dashboard. status takes a comma separated list;
// "All" or nothing means no filter.
func (rc *ReportController) ListAll(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var statuses []models.Status
	for _, raw := range strings.Split(c.Query("status"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.EqualFold(raw, "all") {
			continue
		}
		st, err := models.ParseStatus(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		statuses = append(statuses, st)
	}

	limit, err := queryInt(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit: not a number"})
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset: not a number"})
		return
	}

	reports, err := rc.reports.ListAll(c.Request.Context(), actor, statuses, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "limit": effectiveLimit(limit), "offset": offset})
}

func (rc *ReportController) Stats(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	stats, err := rc.reports.Stats(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (rc *ReportController) Accept(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var input struct {
		PlanNotes       string `json:"plan_notes"`
		WorkerID        string `json:"worker_id"`
		ExpectedVersion int64  `json:"expected_version"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	workerID, err := parseWorkerID(input.WorkerID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid worker_id"})
		return
	}

	report, err := rc.reports.Accept(c.Request.Context(), actor, id, services.AcceptInput{
		PlanNotes:       input.PlanNotes,
		WorkerID:        workerID,
		ExpectedVersion: input.ExpectedVersion,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (rc *ReportController) Reject(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var input struct {
		Reason          string `json:"reason"`
		ExpectedVersion int64  `json:"expected_version"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	report, err := rc.reports.Reject(c.Request.Context(), actor, id, input.Reason, input.ExpectedVersion)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (rc *ReportController) Assign(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var input struct {
		WorkerID        string `json:"worker_id" binding:"required"`
		ExpectedVersion int64  `json:"expected_version"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "worker_id is required"})
		return
	}
	workerID, err := parseWorkerID(input.WorkerID)
	if err != nil || workerID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid worker_id"})
		return
	}

	report, err := rc.reports.Assign(c.Request.Context(), actor, id, *workerID, input.ExpectedVersion)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func queryInt(c *gin.Context, key string) (int64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func effectiveLimit(limit int64) int64 {
	if limit <= 0 {
		return services.DefaultListLimit
	}
	if limit > services.MaxListLimit {
		return services.MaxListLimit
	}
	return limit
}
