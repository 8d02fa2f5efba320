package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *AuthController) ChangePassword(c *gin.Context) {
	type PasswordInput struct {
		OldPassword     string `json:"old_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
		ConfirmPassword string `json:"confirm_password" binding:"required"`
	}

	var input PasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if input.NewPassword != input.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "New password and confirmation do not match"})
		return
	}

	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if err := a.auth.ChangePassword(c.Request.Context(), actor, input.OldPassword, input.NewPassword); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}
