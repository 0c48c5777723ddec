package ports

import (
	"context"
	"time"

	"stockcast/internal/modules/catalog/domain"
)

type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

type CreateProductInput struct {
	SellerID    string
	Name        string
	Description string
	Price       float64
	Quantity    int
	Category    string
}

type UpdateProductInput struct {
	Name        *string
	Description *string
	Price       *float64
	Quantity    *int
	Category    *string
}

type ProductFilter struct {
	SellerID string
	Category string
	Page     int
	Limit    int
}

type AppendEventInput struct {
	Type      domain.EventType
	SellerID  string
	ProductID *int64
	Payload   []byte
}

// Repository persists products and their event log. Mutations insert the
// corresponding lifecycle event in the same transaction as the product row,
// so the two share fate; AppendEvent inserts a standalone event in its own
// transaction and is used for secondary notifications.
type Repository interface {
	CreateProduct(ctx context.Context, input CreateProductInput, now time.Time) (domain.Product, domain.Event, error)
	UpdateProduct(ctx context.Context, sellerID string, productID int64, input UpdateProductInput, now time.Time) (domain.Product, domain.Event, error)
	DeleteProduct(ctx context.Context, sellerID string, productID int64, now time.Time) (domain.Event, error)
	GetProduct(ctx context.Context, sellerID string, productID int64) (domain.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, int64, error)

	AppendEvent(ctx context.Context, input AppendEventInput, now time.Time) (domain.Event, error)
	ListEvents(ctx context.Context, sellerID string, limit int) ([]domain.Event, error)
	// HasRecentDuplicate reports whether another event with the same type and
	// product as ev was inserted within window before ev.
	HasRecentDuplicate(ctx context.Context, ev domain.Event, window time.Duration) (bool, error)
}
