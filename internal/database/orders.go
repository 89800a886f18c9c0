package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderLine is a requested product and quantity. Prices always come from the
// catalog.
type OrderLine struct {
	Product  primitive.ObjectID
	Quantity int
}

type OutOfStockError struct {
	ProductID primitive.ObjectID
	Available int
	Requested int
}

func (e OutOfStockError) Error() string {
	return fmt.Sprintf("product %s out of stock: %d available, %d requested", e.ProductID.Hex(), e.Available, e.Requested)
}

type ProductNotFoundError struct {
	ProductID primitive.ObjectID
}

func (e ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID.Hex())
}

type OrderStore struct {
	client   *mongo.Client
	orders   *mongo.Collection
	products *mongo.Collection
	now      func() time.Time
}

func NewOrderStore(db *mongo.Database) *OrderStore {
	return &OrderStore{
		client:   db.Client(),
		orders:   db.Collection(ordersCollection),
		products: db.Collection(productsCollection),
		now:      time.Now,
	}
}

// Create prices each line from the catalog, decrements stock and inserts a
// pending order, all in one transaction. Lines naming the same product are
// combined first.
func (s *OrderStore) Create(ctx context.Context, user *primitive.ObjectID, lines []OrderLine) (*models.Order, error) {
	lines = combineLines(lines)
	if len(lines) == 0 {
		return nil, errors.New("at least one product is required")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	session, err := s.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	var order models.Order
	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		now := s.now()
		order = models.Order{
			ID:        primitive.NewObjectID(),
			User:      user,
			Products:  make([]models.OrderProduct, 0, len(lines)),
			Status:    models.OrderPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		total := decimal.Zero

		for _, line := range lines {
			var raw bson.M
			err := s.products.FindOne(sessCtx, bson.M{"_id": line.Product}).Decode(&raw)
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, ProductNotFoundError{ProductID: line.Product}
			}
			if err != nil {
				return nil, err
			}
			product, err := normalizeProductDocument(raw)
			if err != nil {
				return nil, err
			}

			if product.Stock < line.Quantity {
				return nil, OutOfStockError{
					ProductID: line.Product,
					Available: product.Stock,
					Requested: line.Quantity,
				}
			}

			filter := bson.M{
				"_id":   line.Product,
				"stock": bson.M{"$gte": line.Quantity},
			}
			update := bson.M{
				"$inc": bson.M{"stock": -line.Quantity},
				"$set": bson.M{"updatedAt": now},
			}
			res, err := s.products.UpdateOne(sessCtx, filter, update)
			if err != nil {
				return nil, err
			}
			if res.MatchedCount == 0 {
				return nil, OutOfStockError{
					ProductID: line.Product,
					Available: product.Stock,
					Requested: line.Quantity,
				}
			}

			order.Products = append(order.Products, models.OrderProduct{
				Product:  line.Product,
				Name:     product.Name,
				Quantity: line.Quantity,
				Price:    product.Price,
			})
			total = total.Add(decimal.NewFromFloat(product.Price).Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		order.TotalPrice = total.InexactFloat64()
		if _, err := s.orders.InsertOne(sessCtx, order); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByUser returns the user's orders, newest first.
func (s *OrderStore) ListByUser(ctx context.Context, user primitive.ObjectID) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.orders.Find(ctx, bson.M{"user": user}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// FindForUser returns the order only when it belongs to user.
func (s *OrderStore) FindForUser(ctx context.Context, user, id primitive.ObjectID) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var order models.Order
	err := s.orders.FindOne(ctx, bson.M{"_id": id, "user": user}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func combineLines(lines []OrderLine) []OrderLine {
	out := make([]OrderLine, 0, len(lines))
	index := make(map[primitive.ObjectID]int, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			continue
		}
		if i, ok := index[line.Product]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[line.Product] = len(out)
		out = append(out, line)
	}
	return out
}
