package domain

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
)

// DefaultLowStockThreshold applies when a product has no threshold of its own.
const DefaultLowStockThreshold = 10

type StockLevel string

const (
	LevelOK  StockLevel = "ok"
	LevelLow StockLevel = "low"
	LevelOut StockLevel = "out"
)

type Product struct {
	ID                int64
	Name              string
	Price             decimal.Decimal
	StockQuantity     int
	LowStockThreshold int
	Images            []string
}

// Reservation is the outcome of an atomic stock decrement for one line item.
type Reservation struct {
	ProductID   int64
	ProductName string
	Quantity    int
	Remaining   int
	Threshold   int
	UnitPrice   decimal.Decimal
}

func (r Reservation) Level() StockLevel {
	return Classify(r.Remaining, r.Threshold)
}

// Classify grades remaining stock against a threshold. A non-positive
// threshold falls back to DefaultLowStockThreshold.
func Classify(quantity, threshold int) StockLevel {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	switch {
	case quantity <= 0:
		return LevelOut
	case quantity <= threshold:
		return LevelLow
	default:
		return LevelOK
	}
}
