// Package middleware provides authentication middleware for the Gin web framework.
package middleware

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session keys for storing user information
const (
	// UserIDKey is the key used to store user ID in session
	UserIDKey = "user_id"
	// UsernameKey is the key used to store username in session
	UsernameKey = "username"
)

func sessionUserID(c *gin.Context) (userID int, ok bool) {
	session := sessions.Default(c)
	raw := session.Get(UserIDKey)
	if raw == nil {
		return 0, false
	}

	userID, ok = raw.(int)
	if !ok {
		// JSON numbers round-trip through some session stores as float64
		userIDFloat, floatOK := raw.(float64)
		if !floatOK {
			return 0, false
		}
		userID = int(userIDFloat)
	}
	return userID, true
}

func abortUnauthenticated(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{
		"error": "Authentication required",
		"code":  "UNAUTHORIZED",
	})
	c.Abort()
}

// RequireAuth returns a middleware that requires a valid session
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := sessionUserID(c)
		if !ok {
			abortUnauthenticated(c)
			return
		}

		username := sessions.Default(c).Get(UsernameKey)
		usernameStr, ok := username.(string)
		if !ok || usernameStr == "" {
			abortUnauthenticated(c)
			return
		}

		// Store user info in context for handlers to use
		c.Set(UserIDKey, userID)
		c.Set(UsernameKey, usernameStr)

		c.Next()
	}
}

// OptionalAuth returns a middleware that loads the session user into the
// request context when present but never rejects the request. Guest traffic
// passes through with no user set.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := sessionUserID(c); ok {
			c.Set(UserIDKey, userID)
			if username, usernameOK := sessions.Default(c).Get(UsernameKey).(string); usernameOK && username != "" {
				c.Set(UsernameKey, username)
			}
		}
		c.Next()
	}
}

// RequireAdmin returns a middleware that requires the session user to be the
// configured admin account.
func RequireAdmin(adminUsername string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := sessionUserID(c)
		if !ok {
			abortUnauthenticated(c)
			return
		}

		username, ok := sessions.Default(c).Get(UsernameKey).(string)
		if !ok || username == "" {
			abortUnauthenticated(c)
			return
		}

		if adminUsername == "" || username != adminUsername {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Admin access required",
				"code":  "FORBIDDEN",
			})
			c.Abort()
			return
		}

		c.Set(UserIDKey, userID)
		c.Set(UsernameKey, username)

		c.Next()
	}
}
