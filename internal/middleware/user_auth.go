package middleware

import (
	"errors"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperror"
	"storefront/internal/auth"
)

// Context keys set by the auth middlewares.
const (
	UserIDKey = "userId"
	ClaimsKey = "claims"
)

var errMalformedHeader = errors.New("authorization header is not a bearer token")

// UserAuth requires a valid bearer token. A missing token is 401, anything
// else wrong with it is 403.
func UserAuth(tokens *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			log.Println("[AUTH] [ERROR] missing token")
			abort(c, apperror.New(apperror.Unauthorized, "missing token"))
			return
		}

		if !authenticate(c, tokens, raw) {
			return
		}
		c.Next()
	}
}

// OptionalUserAuth lets anonymous requests through but rejects a token that
// is present and invalid.
func OptionalUserAuth(tokens *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			c.Next()
			return
		}

		if !authenticate(c, tokens, raw) {
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user set by UserAuth or OptionalUserAuth.
func UserID(c *gin.Context) (primitive.ObjectID, bool) {
	value, ok := c.Get(UserIDKey)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, ok := value.(primitive.ObjectID)
	return id, ok
}

func authenticate(c *gin.Context, tokens *auth.TokenIssuer, header string) bool {
	token, err := parseBearer(header)
	if err != nil {
		log.Println("[AUTH] [ERROR] invalid token format")
		abort(c, apperror.Wrap(apperror.Forbidden, "invalid token", err))
		return false
	}

	claims, err := tokens.Verify(token)
	if err != nil {
		log.Println("[AUTH] [ERROR] token validation failed:", err)
		abort(c, apperror.Wrap(apperror.Forbidden, "invalid token", err))
		return false
	}

	userID, err := claims.ObjectID()
	if err != nil {
		log.Println("[AUTH] [ERROR] invalid userId claim")
		abort(c, apperror.Wrap(apperror.Forbidden, "invalid token", err))
		return false
	}

	c.Set(UserIDKey, userID)
	c.Set(ClaimsKey, claims)
	return true
}

func parseBearer(header string) (string, error) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errMalformedHeader
	}
	return parts[1], nil
}

func abort(c *gin.Context, err *apperror.Error) {
	c.AbortWithStatusJSON(apperror.Status(err.Kind), gin.H{
		"success": false,
		"error":   err.Kind,
		"message": err.Message,
	})
}
