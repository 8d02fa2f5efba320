package controllers

import (
	"net/http"
	"time"

	middlewares "community-help/middleware"
	"community-help/services"

	"github.com/gin-gonic/gin"
)

// AuthController serves registration, login and account endpoints.
type AuthController struct {
	auth         *services.AuthService
	tokenTTL     time.Duration
	secureCookie bool
}

func NewAuthController(auth *services.AuthService, tokenTTL time.Duration, secureCookie bool) *AuthController {
	return &AuthController{auth: auth, tokenTTL: tokenTTL, secureCookie: secureCookie}
}

func (a *AuthController) Login(c *gin.Context) {
	type LoginInput struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	token, user, err := a.auth.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	sameSite := http.SameSiteLaxMode
	if a.secureCookie {
		sameSite = http.SameSiteNoneMode
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middlewares.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.tokenTTL.Seconds()),
		Secure:   a.secureCookie,
		HttpOnly: true,
		SameSite: sameSite,
	})

	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "token": token, "user": user})
}
