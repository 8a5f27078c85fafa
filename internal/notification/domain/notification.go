package domain

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryOrderStatus Category = "order_status"
	CategoryPayment     Category = "payment"
	CategoryDelivery    Category = "order_delivery"
	CategoryLowStock    Category = "inventory_low_stock"
	CategoryOutOfStock  Category = "inventory_out_of_stock"
)

// Notification is a stored message for one recipient. OrderID is zero for
// messages not tied to an order (inventory alerts).
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	OrderID   int64     `json:"order_id,omitempty"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Category  Category  `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

func New(userID string, orderID int64, title, message string, category Category) Notification {
	return Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		OrderID:   orderID,
		Title:     title,
		Message:   message,
		Category:  category,
		CreatedAt: time.Now().UTC(),
	}
}
