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
	"storefront/internal/models"
)

// ProductReader is the read side of the catalog.
type ProductReader interface {
	List(ctx context.Context, q database.ProductQuery) ([]models.Product, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	Categories(ctx context.Context) ([]string, error)
}

/*
GET /products
- pagination is optional and only applied when both page and limit are set
- category and search narrow the listing
*/
func GetProducts(products ProductReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products"
		defer handlePanic(c, route)

		log.Printf(
			"[%s] hit page=%s limit=%s category=%s search=%s",
			route,
			c.Query("page"),
			c.Query("limit"),
			c.Query("category"),
			c.Query("search"),
		)

		q := database.ProductQuery{
			Category: c.Query("category"),
			Search:   c.Query("search"),
		}

		pageStr := c.Query("page")
		limitStr := c.Query("limit")
		if pageStr != "" && limitStr != "" {
			page, limit, err := parsePaginationParams(pageStr, limitStr)
			if err != nil {
				respondWithError(c, apperror.BadRequest, route, err.Error())
				return
			}
			q.Page, q.Limit = page, limit
		}

		list, err := products.List(c.Request.Context(), q)
		if err != nil {
			respondError(c, route, apperror.Wrap(apperror.ServerError, "products could not be fetched", err))
			return
		}

		log.Printf("[%s] returning %d products", route, len(list))
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"products": list,
		})
	}
}

func GetProduct(products ProductReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /product/:id"
		defer handlePanic(c, route)

		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, apperror.BadRequest, route, "invalid product id")
			return
		}

		product, err := products.FindByID(c.Request.Context(), id)
		if errors.Is(err, database.ErrProductNotFound) {
			respondWithError(c, apperror.NotFound, route, "product not found")
			return
		}
		if err != nil {
			respondError(c, route, apperror.Wrap(apperror.ServerError, "product could not be fetched", err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"product": product,
		})
	}
}

func GetCategories(products ProductReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /categories"
		defer handlePanic(c, route)

		log.Printf("[%s] hit", route)

		categories, err := products.Categories(c.Request.Context())
		if err != nil {
			respondError(c, route, apperror.Wrap(apperror.ServerError, "categories could not be fetched", err))
			return
		}

		log.Printf("[%s] returning %d categories", route, len(categories))
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"categories": categories,
		})
	}
}
