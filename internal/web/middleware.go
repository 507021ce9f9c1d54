package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const claimsKey = "authClaims"

// AuthClaims is the JWT payload the relay trusts. Tokens are issued by the
// studio's account service; this service only verifies them.
type AuthClaims struct {
	UserID  int64 `json:"user_id"`
	IsAdmin bool  `json:"is_admin"`
	jwt.RegisteredClaims
}

// ParseToken verifies an HS256 token string and returns its claims.
func ParseToken(tokenStr, secret string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AuthClaims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return token.Claims.(*AuthClaims), nil
}

// attachClaims parses the Authorization header when present and stores the
// claims on the context. It reports whether the request was aborted: a
// malformed or invalid token is rejected rather than downgraded to guest.
func attachClaims(c *gin.Context, secret string) bool {
	h := c.GetHeader("Authorization")
	if h == "" {
		return false
	}
	if !strings.HasPrefix(h, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "malformed authorization header"})
		return true
	}

	claims, err := ParseToken(strings.TrimPrefix(h, "Bearer "), secret)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid token"})
		return true
	}

	c.Set(claimsKey, claims)
	return false
}

// OptionalAuth accepts anonymous requests but still verifies a token when
// one is sent.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if attachClaims(c, secret) {
			return
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if attachClaims(c, secret) {
			return
		}
		if _, ok := ClaimsFrom(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing token"})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects authenticated requests whose token lacks the admin
// flag. Must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing token"})
			return
		}
		if !claims.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "admin access required"})
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the verified claims stored by the auth middleware.
func ClaimsFrom(c *gin.Context) (*AuthClaims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*AuthClaims)
	return claims, ok
}
