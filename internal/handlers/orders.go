package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperror"
	"storefront/internal/database"
	"storefront/internal/middleware"
	"storefront/internal/models"
)

type OrderStore interface {
	Create(ctx context.Context, user *primitive.ObjectID, lines []database.OrderLine) (*models.Order, error)
	ListByUser(ctx context.Context, user primitive.ObjectID) ([]models.Order, error)
	FindForUser(ctx context.Context, user, id primitive.ObjectID) (*models.Order, error)
}

/* =========================
   REQUEST DTOs
========================= */

type createOrderItemRequest struct {
	Product  string `json:"product" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

type createOrderRequest struct {
	Products []createOrderItemRequest `json:"products" binding:"required,min=1,dive"`
}

/* =========================
   CREATE ORDER
========================= */

// CreateOrder records an order priced from the catalog. It runs behind
// OptionalUserAuth, so guests may order too.
func CreateOrder(orders OrderStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, route)

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		lines, err := buildOrderLines(req)
		if err != nil {
			respondError(c, route, err)
			return
		}

		var userID *primitive.ObjectID
		if id, ok := middleware.UserID(c); ok {
			userID = &id
		}

		order, err := orders.Create(c.Request.Context(), userID, lines)
		if err != nil {
			respondOrderError(c, route, err)
			return
		}

		if userID != nil {
			log.Println("[ORDER] [INFO] order created for user:", userID.Hex())
		} else {
			log.Println("[ORDER] [INFO] guest order created")
		}

		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"message": "order created",
			"order":   order,
		})
	}
}

/* =========================
   GET ORDERS
========================= */

func GetOrders(orders OrderStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders"
		defer handlePanic(c, route)

		userID, ok := middleware.UserID(c)
		if !ok {
			respondWithError(c, apperror.Unauthorized, route, "unauthorized")
			return
		}

		list, err := orders.ListByUser(c.Request.Context(), userID)
		if err != nil {
			respondError(c, route, apperror.Wrap(apperror.ServerError, "orders could not be fetched", err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"orders":  list,
		})
	}
}

func GetOrder(orders OrderStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id"
		defer handlePanic(c, route)

		userID, ok := middleware.UserID(c)
		if !ok {
			respondWithError(c, apperror.Unauthorized, route, "unauthorized")
			return
		}

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, apperror.BadRequest, route, "invalid order id")
			return
		}

		order, err := orders.FindForUser(c.Request.Context(), userID, orderID)
		if errors.Is(err, database.ErrOrderNotFound) {
			respondWithError(c, apperror.NotFound, route, "order not found")
			return
		}
		if err != nil {
			respondError(c, route, apperror.Wrap(apperror.ServerError, "order could not be fetched", err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"order":   order,
		})
	}
}

/* =========================
   HELPERS
========================= */

func buildOrderLines(req createOrderRequest) ([]database.OrderLine, error) {
	lines := make([]database.OrderLine, 0, len(req.Products))
	for _, item := range req.Products {
		productID, err := primitive.ObjectIDFromHex(item.Product)
		if err != nil {
			return nil, apperror.New(apperror.BadRequest, "invalid product id")
		}
		lines = append(lines, database.OrderLine{Product: productID, Quantity: item.Quantity})
	}
	return lines, nil
}

func respondOrderError(c *gin.Context, route string, err error) {
	var stockErr database.OutOfStockError
	if errors.As(err, &stockErr) {
		log.Printf("[%s] insufficient stock for %s", route, stockErr.ProductID.Hex())
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   apperror.Conflict,
			"message": "insufficient stock",
			"details": gin.H{
				"productId": stockErr.ProductID.Hex(),
				"available": stockErr.Available,
				"requested": stockErr.Requested,
			},
		})
		return
	}

	var notFoundErr database.ProductNotFoundError
	if errors.As(err, &notFoundErr) {
		log.Printf("[%s] unknown product %s", route, notFoundErr.ProductID.Hex())
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   apperror.BadRequest,
			"message": "product not found",
			"details": gin.H{
				"productId": notFoundErr.ProductID.Hex(),
			},
		})
		return
	}

	respondError(c, route, apperror.Wrap(apperror.ServerError, "order could not be created", err))
}
