package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidProduct  = errors.New("invalid product")
	ErrProductNotFound = errors.New("product not found")
	ErrMissingSeller   = errors.New("missing seller id")
)

// Product is a single catalog entry owned by one seller.
type Product struct {
	ID          int64     `json:"id"`
	SellerID    string    `json:"sellerId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Quantity    int       `json:"quantity"`
	Category    string    `json:"category"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Validate checks the fields a mutation must always provide.
func (p Product) Validate() error {
	if strings.TrimSpace(p.SellerID) == "" {
		return ErrMissingSeller
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrInvalidProduct
	}
	if p.Price < 0 {
		return ErrInvalidProduct
	}
	if p.Quantity < 0 {
		return ErrInvalidProduct
	}
	return nil
}
