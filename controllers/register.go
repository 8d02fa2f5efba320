package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Register creates a citizen account. The caller still has to log in.
func (a *AuthController) Register(c *gin.Context) {
	type RegisterInput struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
		return
	}

	user, err := a.auth.Register(c.Request.Context(), input.Name, input.Email, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Registration successful", "user": user})
}
