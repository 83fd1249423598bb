package webserver

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// auth exchanges the configured admin token for a short-lived JWT.
func (s *Server) auth(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	if s.config.AdminToken == "" ||
		subtle.ConstantTimeCompare([]byte(req.Token), []byte(s.config.AdminToken)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "bad token"})
		return
	}

	jwtStr, err := issueJWT([]byte(s.config.JWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": jwtStr})
}

func issueJWT(secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "moderator",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	return token.SignedString(secret)
}
