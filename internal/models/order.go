package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// OrderProduct is a priced snapshot of one product at the time of ordering.
type OrderProduct struct {
	Product  primitive.ObjectID `bson:"product" json:"product"`
	Name     string             `bson:"name" json:"name"`
	Quantity int                `bson:"quantity" json:"quantity"`
	Price    float64            `bson:"price" json:"price"`
}

// Order defines the persisted order document. User is nil for guest orders.
type Order struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	User       *primitive.ObjectID `bson:"user" json:"user"`
	Products   []OrderProduct      `bson:"products" json:"products"`
	TotalPrice float64             `bson:"totalPrice" json:"totalPrice"`
	Status     OrderStatus         `bson:"status" json:"status"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time           `bson:"updatedAt" json:"updatedAt"`
}
