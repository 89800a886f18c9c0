package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/apperror"
)

func handlePanic(c *gin.Context, route string) {
	if r := recover(); r != nil {
		log.Printf("[%s] panic recovered: %v", route, r)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   apperror.ServerError,
			"message": "internal server error",
		})
	}
}

// respondError writes err as a failure body. The wrapped cause is logged and
// never sent to the client.
func respondError(c *gin.Context, route string, err error) {
	kind := apperror.KindOf(err)
	status := apperror.Status(kind)
	if status >= http.StatusInternalServerError {
		log.Printf("[%s] returning error %d: %v", route, status, err)
	} else {
		log.Printf("[%s] returning error %d: %s", route, status, apperror.MessageOf(err))
	}
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   kind,
		"message": apperror.MessageOf(err),
	})
}

func respondWithError(c *gin.Context, kind apperror.Kind, route string, message string) {
	respondError(c, route, apperror.New(kind, message))
}
