package controllers

import (
	"net/http"

	"community-help/models"

	"github.com/gin-gonic/gin"
)

// GetAllCategories lists the categories a report can be filed under.
func GetAllCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": models.ReportCategories, "default": models.DefaultCategory})
}
