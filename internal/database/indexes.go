package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

// ErrCartIndexes marks a failure to build the cart uniqueness indexes. The
// cart store relies on them to keep one active cart per owner.
var ErrCartIndexes = errors.New("cart indexes unavailable")

type indexStep struct {
	name     string
	ensure   func(*mongo.Database) error
	required error
}

var indexSteps = []indexStep{
	{name: "users", ensure: EnsureUserIndexes},
	{name: "products", ensure: EnsureProductIndexes},
	{name: "carts", ensure: EnsureCartIndexes, required: ErrCartIndexes},
	{name: "orders", ensure: EnsureOrderIndexes},
}

// EnsureIndexes creates every index the stores rely on. Every collection is
// attempted; failures are joined, and a cart failure matches ErrCartIndexes.
func EnsureIndexes(db *mongo.Database) error {
	return runIndexSteps(db, indexSteps)
}

func runIndexSteps(db *mongo.Database, steps []indexStep) error {
	var errs []error
	for _, step := range steps {
		if err := step.ensure(db); err != nil {
			if step.required != nil {
				err = fmt.Errorf("%w: %w", step.required, err)
			}
			errs = append(errs, fmt.Errorf("%s indexes: %w", step.name, err))
		}
	}
	return errors.Join(errs...)
}

func EnsureProductIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection(productsCollection).Indexes()

	categoryIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "category", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("category_createdAt"),
	}

	log.Println("EnsureProductIndexes: creating category_createdAt index")
	_, err := indexes.CreateOne(ctx, categoryIndex)
	if err != nil {
		log.Println("EnsureProductIndexes: category index error:", err)
		return err
	}
	log.Println("EnsureProductIndexes: category_createdAt index created")
	return nil
}

func EnsureUserIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection(usersCollection).Indexes()

	emailIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetName("email_unique").
			SetUnique(true),
	}

	log.Println("EnsureUserIndexes: creating email_unique index")
	_, err := indexes.CreateOne(ctx, emailIndex)
	if err != nil {
		log.Println("EnsureUserIndexes: email index error:", err)
		return err
	}
	log.Println("EnsureUserIndexes: email_unique index created")
	return nil
}

// EnsureCartIndexes allows at most one active cart per user and per session.
func EnsureCartIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection(cartsCollection).Indexes()

	cartIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user", Value: 1}},
			Options: options.Index().
				SetName("user_active_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"user":   bson.M{"$exists": true},
					"status": string(models.CartActive),
				}),
		},
		{
			Keys: bson.D{{Key: "sessionId", Value: 1}},
			Options: options.Index().
				SetName("session_active_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"sessionId": bson.M{"$exists": true},
					"status":    string(models.CartActive),
				}),
		},
	}

	log.Println("EnsureCartIndexes: creating user_active_unique and session_active_unique indexes")
	_, err := indexes.CreateMany(ctx, cartIndexes)
	if err != nil {
		log.Println("EnsureCartIndexes: cart index error:", err)
		return err
	}
	log.Println("EnsureCartIndexes: cart indexes created")
	return nil
}

func EnsureOrderIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection(ordersCollection).Indexes()

	userIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
		Options: options.Index().SetName("user_createdAt"),
	}

	log.Println("EnsureOrderIndexes: creating user_createdAt index")
	_, err := indexes.CreateOne(ctx, userIndex)
	if err != nil {
		log.Println("EnsureOrderIndexes: user index error:", err)
		return err
	}
	log.Println("EnsureOrderIndexes: user_createdAt index created")
	return nil
}
