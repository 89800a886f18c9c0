package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CartStatus string

const (
	CartActive    CartStatus = "active"
	CartOrdered   CartStatus = "ordered"
	CartAbandoned CartStatus = "abandoned"
)

// CartItem is one line of a cart. Lines are identified by Name; Price is the
// value captured when the line was first added.
type CartItem struct {
	Name     string  `bson:"name" json:"name"`
	Price    float64 `bson:"price" json:"price"`
	Image    string  `bson:"image,omitempty" json:"image,omitempty"`
	Quantity int     `bson:"quantity" json:"quantity"`
}

// Cart is owned either by a user or by an anonymous session, never both.
// Revision increases by one on every successful write.
type Cart struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User       string             `bson:"user,omitempty" json:"user,omitempty"`
	SessionID  string             `bson:"sessionId,omitempty" json:"sessionId,omitempty"`
	Items      []CartItem         `bson:"items" json:"items"`
	TotalPrice float64            `bson:"totalPrice" json:"totalPrice"`
	Status     CartStatus         `bson:"status" json:"status"`
	Revision   int64              `bson:"revision" json:"revision"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Clone returns a copy that shares no item storage with c.
func (c Cart) Clone() Cart {
	out := c
	if c.Items != nil {
		out.Items = make([]CartItem, len(c.Items))
		copy(out.Items, c.Items)
	}
	return out
}
