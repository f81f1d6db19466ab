package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	applog "referral-shop/pkg/logger"
)

const (
	ctxUserID         = "user_id"
	ctxToken          = "token"
	ctxTokenExpiresAt = "token_expires_at"
)

// Denylist reports whether a token has been revoked
type Denylist interface {
	IsDenylisted(ctx context.Context, token string) (bool, error)
}

// AuthMiddleware validates JWT tokens and protects routes. denylist may be nil.
func AuthMiddleware(denylist Denylist) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := ExtractToken(c)
		if err != nil {
			abortUnauthorized(c, err.Error())
			return
		}

		claims, err := ValidateToken(tokenString)
		if err != nil {
			applog.Log.Debug("token validation failed", zap.Error(err))
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortUnauthorized(c, "Token expired. Please login again")
				return
			}
			abortUnauthorized(c, "Invalid token. Please login again")
			return
		}

		if denylist != nil {
			revoked, err := denylist.IsDenylisted(c.Request.Context(), tokenString)
			if err != nil {
				applog.Log.Error("denylist lookup failed", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"status":     "error",
					"statusCode": http.StatusInternalServerError,
					"message":    "Failed to check token status",
				})
				return
			}
			if revoked {
				abortUnauthorized(c, "Token has been revoked. Please login again")
				return
			}
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxToken, tokenString)
		if claims.ExpiresAt != nil {
			c.Set(ctxTokenExpiresAt, claims.ExpiresAt.Time)
		}

		c.Next()
	}
}

// ExtractToken pulls the bearer token out of the Authorization header
func ExtractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errors.New("No token provided. Please login")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("Invalid authorization header format. Expected: Bearer <token>")
	}

	return parts[1], nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"status":     "error",
		"statusCode": http.StatusUnauthorized,
		"message":    message,
	})
}

// GetUserID retrieves the user ID from the context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(ctxUserID)
	if !exists {
		return 0, false
	}

	id, ok := userID.(uint)
	return id, ok
}

// GetToken retrieves the raw bearer token and its expiry from the context
func GetToken(c *gin.Context) (string, time.Time, bool) {
	token := c.GetString(ctxToken)
	if token == "" {
		return "", time.Time{}, false
	}
	expiresAt, _ := c.Get(ctxTokenExpiresAt)
	exp, _ := expiresAt.(time.Time)
	return token, exp, true
}
