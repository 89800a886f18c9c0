package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront/internal/apperror"
	"storefront/internal/auth"
	"storefront/internal/middleware"
	"storefront/internal/models"
)

type SignupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func newUserResponse(user *models.User) userResponse {
	return userResponse{ID: user.ID.Hex(), Name: user.Name, Email: user.Email}
}

func Signup(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/signup"
		defer handlePanic(c, route)

		var req SignupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		token, user, err := svc.Signup(c.Request.Context(), req.Name, req.Email, req.Password)
		if err != nil {
			respondError(c, route, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"success":   true,
			"message":   "user registered",
			"token":     token,
			"expiresIn": int64(svc.Tokens().TTL().Seconds()),
			"user":      newUserResponse(user),
		})
	}
}

func Login(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/login"
		defer handlePanic(c, route)

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		token, user, err := svc.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"message":   "login successful",
			"token":     token,
			"expiresIn": int64(svc.Tokens().TTL().Seconds()),
			"user":      newUserResponse(user),
		})
	}
}

// Guest hands out a fresh session id for an anonymous cart.
func Guest() gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /auth/guest"
		defer handlePanic(c, route)

		id, err := uuid.NewRandom()
		if err != nil {
			respondError(c, route, apperror.Wrap(apperror.ServerError, "session generation failed", err))
			return
		}

		log.Printf("[%s] guest session issued", route)
		c.JSON(http.StatusCreated, gin.H{
			"success":   true,
			"sessionId": id.String(),
		})
	}
}

func GetMe(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /auth/me"
		defer handlePanic(c, route)

		userID, ok := middleware.UserID(c)
		if !ok {
			log.Println("[AUTH] [ERROR] userId missing in context")
			respondWithError(c, apperror.Unauthorized, route, "unauthorized")
			return
		}

		user, err := svc.Me(c.Request.Context(), userID)
		if err != nil {
			respondError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"user": gin.H{
				"id":        user.ID.Hex(),
				"name":      user.Name,
				"email":     user.Email,
				"createdAt": user.CreatedAt,
				"updatedAt": user.UpdatedAt,
			},
		})
	}
}
