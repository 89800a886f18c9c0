package database

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

var ErrProductNotFound = errors.New("product not found")

// ProductQuery narrows a catalog listing. Page and Limit apply only when both
// are positive.
type ProductQuery struct {
	Category string
	Search   string
	Page     int64
	Limit    int64
}

type ProductStore struct {
	coll *mongo.Collection
}

func NewProductStore(db *mongo.Database) *ProductStore {
	return &ProductStore{coll: db.Collection(productsCollection)}
}

func (s *ProductStore) List(ctx context.Context, q ProductQuery) ([]models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if q.Page > 0 && q.Limit > 0 {
		opts.SetSkip((q.Page - 1) * q.Limit).SetLimit(q.Limit)
	}

	cursor, err := s.coll.Find(ctx, productFilter(q), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	return decodeProducts(ctx, cursor)
}

func (s *ProductStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var raw bson.M
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	product, err := normalizeProductDocument(raw)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func productFilter(q ProductQuery) bson.M {
	filter := bson.M{}
	if category := strings.TrimSpace(q.Category); category != "" {
		filter["category"] = category
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
	}
	return filter
}

// normalizeProductDocument accepts the legacy encodings still present in older
// catalog imports: numeric stock stored as int32, int64 or double, and a
// category stored as a one-element array.
func normalizeProductDocument(raw bson.M) (models.Product, error) {
	if val, ok := raw["category"]; ok {
		switch typed := val.(type) {
		case string:
		case []string:
			raw["category"] = ""
			if len(typed) > 0 {
				raw["category"] = typed[0]
			}
		case bson.A:
			raw["category"] = ""
			if len(typed) > 0 {
				if first, ok := typed[0].(string); ok {
					raw["category"] = first
				}
			}
		default:
			raw["category"] = ""
		}
	}

	if val, ok := raw["stock"]; ok {
		switch typed := val.(type) {
		case int32:
			raw["stock"] = int(typed)
		case int64:
			raw["stock"] = int(typed)
		case float64:
			raw["stock"] = int(typed)
		case int:
			raw["stock"] = typed
		default:
			raw["stock"] = 0
		}
	} else {
		raw["stock"] = 0
	}

	if stock, _ := raw["stock"].(int); stock < 0 {
		raw["stock"] = 0
	}

	data, err := bson.Marshal(raw)
	if err != nil {
		return models.Product{}, err
	}

	var p models.Product
	if err := bson.Unmarshal(data, &p); err != nil {
		return models.Product{}, err
	}

	p.InStock = p.Stock > 0

	return p, nil
}

func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]models.Product, error) {
	products := make([]models.Product, 0)

	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, err
		}

		product, err := normalizeProductDocument(raw)
		if err != nil {
			return nil, err
		}

		products = append(products, product)
	}

	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

// Categories returns the distinct non-empty categories in the catalog, sorted.
func (s *ProductStore) Categories(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	values, err := s.coll.Distinct(ctx, "category", bson.M{"category": bson.M{"$type": "string", "$ne": ""}})
	if err != nil {
		return nil, err
	}

	categories := make([]string, 0, len(values))
	for _, v := range values {
		if name, ok := v.(string); ok {
			categories = append(categories, name)
		}
	}
	sort.Strings(categories)
	return categories, nil
}
