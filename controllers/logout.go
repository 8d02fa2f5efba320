package controllers

import (
	"net/http"

	middlewares "community-help/middleware"

	"github.com/gin-gonic/gin"
)

func (a *AuthController) Logout(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middlewares.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   a.secureCookie,
		HttpOnly: true,
	})

	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
