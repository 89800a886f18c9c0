package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/apperror"
	"storefront/internal/cart"
	"storefront/internal/middleware"
	"storefront/internal/models"
)

// CartOptions controls how cart owners are identified.
type CartOptions struct {
	// RequireAuth rejects a user field that is not backed by a bearer token.
	RequireAuth bool
}

// cartRequest is read from the JSON body with query parameters filling any
// field the body left empty.
type cartRequest struct {
	User      string   `json:"user" form:"user"`
	SessionID string   `json:"sessionId" form:"sessionId"`
	Name      string   `json:"name" form:"name"`
	Price     *float64 `json:"price" form:"price"`
	Image     string   `json:"image" form:"image"`
	Quantity  *int     `json:"quantity" form:"quantity"`
}

func (r *cartRequest) fillFrom(q cartRequest) {
	if r.User == "" {
		r.User = q.User
	}
	if r.SessionID == "" {
		r.SessionID = q.SessionID
	}
	if r.Name == "" {
		r.Name = q.Name
	}
	if r.Price == nil {
		r.Price = q.Price
	}
	if r.Image == "" {
		r.Image = q.Image
	}
	if r.Quantity == nil {
		r.Quantity = q.Quantity
	}
}

func bindCartRequest(c *gin.Context) (cartRequest, error) {
	var fromQuery cartRequest
	if err := c.ShouldBindQuery(&fromQuery); err != nil {
		return cartRequest{}, err
	}

	if c.Request.Body == nil || c.Request.Body == http.NoBody || c.Request.ContentLength == 0 {
		return fromQuery, nil
	}

	var req cartRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return cartRequest{}, err
	}
	req.fillFrom(fromQuery)
	return req, nil
}

// resolveCartKey decides whose cart a request addresses. A bearer token always
// wins; a user field that disagrees with it is forbidden.
func resolveCartKey(c *gin.Context, req cartRequest, opts CartOptions) (cart.Key, error) {
	user := strings.TrimSpace(req.User)

	if tokenUser, ok := middleware.UserID(c); ok {
		if user != "" && user != tokenUser.Hex() {
			return cart.Key{}, apperror.New(apperror.Forbidden, "user does not match token")
		}
		return cart.NewKey(tokenUser.Hex(), req.SessionID), nil
	}

	if user != "" && opts.RequireAuth {
		return cart.Key{}, apperror.New(apperror.Unauthorized, "a bearer token is required for user carts")
	}
	return cart.NewKey(user, req.SessionID), nil
}

type cartHandler func(c *gin.Context, route string, req cartRequest, key cart.Key)

func withCart(route string, opts CartOptions, next cartHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)

		req, err := bindCartRequest(c)
		if err != nil {
			respondValidationError(c, route, err)
			return
		}

		key, err := resolveCartKey(c, req, opts)
		if err != nil {
			respondError(c, route, err)
			return
		}

		next(c, route, req, key)
	}
}

func respondCart(c *gin.Context, status int, message string, data *models.Cart) {
	body := gin.H{
		"success": true,
		"data":    data,
	}
	if message != "" {
		body["message"] = message
	}
	c.JSON(status, body)
}

func AddToCart(engine *cart.Engine, opts CartOptions) gin.HandlerFunc {
	return withCart("POST /cart/add", opts, func(c *gin.Context, route string, req cartRequest, key cart.Key) {
		updated, err := engine.AddItem(c.Request.Context(), key, cart.ItemInput{
			Name:     req.Name,
			Price:    req.Price,
			Image:    req.Image,
			Quantity: req.Quantity,
		})
		if err != nil {
			respondError(c, route, err)
			return
		}
		log.Printf("[%s] %s now has %d lines", route, key, len(updated.Items))
		respondCart(c, http.StatusCreated, "item added to cart", updated)
	})
}

func GetCart(engine *cart.Engine, opts CartOptions) gin.HandlerFunc {
	return withCart("GET /cart", opts, func(c *gin.Context, route string, _ cartRequest, key cart.Key) {
		current, err := engine.Get(c.Request.Context(), key)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondCart(c, http.StatusOK, "", current)
	})
}

func UpdateCartItem(engine *cart.Engine, opts CartOptions) gin.HandlerFunc {
	return withCart("PUT /cart/update", opts, func(c *gin.Context, route string, req cartRequest, key cart.Key) {
		if strings.TrimSpace(req.Name) == "" || req.Quantity == nil {
			respondWithError(c, apperror.BadRequest, route, "name and quantity are required")
			return
		}
		updated, err := engine.UpdateQuantity(c.Request.Context(), key, req.Name, *req.Quantity)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondCart(c, http.StatusOK, "cart item updated", updated)
	})
}

func RemoveCartItem(engine *cart.Engine, opts CartOptions) gin.HandlerFunc {
	return withCart("DELETE /cart/remove", opts, func(c *gin.Context, route string, req cartRequest, key cart.Key) {
		updated, err := engine.RemoveItem(c.Request.Context(), key, req.Name)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondCart(c, http.StatusOK, "item removed from cart", updated)
	})
}

func ClearCart(engine *cart.Engine, opts CartOptions) gin.HandlerFunc {
	return withCart("DELETE /cart/clear", opts, func(c *gin.Context, route string, _ cartRequest, key cart.Key) {
		updated, err := engine.Clear(c.Request.Context(), key)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondCart(c, http.StatusOK, "cart cleared", updated)
	})
}

// MergeCart folds the guest cart named by sessionId into the user's cart.
// Both identities must be present, so the key resolution that normally
// prefers the user is bypassed.
func MergeCart(engine *cart.Engine, opts CartOptions) gin.HandlerFunc {
	return withCart("POST /cart/merge", opts, func(c *gin.Context, route string, req cartRequest, key cart.Key) {
		merged, err := engine.Merge(c.Request.Context(), key.User, req.SessionID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		if merged == nil {
			respondCart(c, http.StatusOK, "no guest cart to merge", nil)
			return
		}
		respondCart(c, http.StatusOK, "cart merged", merged)
	})
}

func CheckoutCart(engine *cart.Engine, opts CartOptions) gin.HandlerFunc {
	return withCart("POST /cart/checkout", opts, func(c *gin.Context, route string, _ cartRequest, key cart.Key) {
		ordered, err := engine.Checkout(c.Request.Context(), key)
		if err != nil {
			respondError(c, route, err)
			return
		}
		log.Printf("[%s] %s checked out cart %s", route, key, ordered.ID.Hex())
		respondCart(c, http.StatusOK, "checkout complete", ordered)
	})
}
