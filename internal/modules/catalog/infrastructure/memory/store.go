// Package memory implements the catalog repository over process memory. It
// backs tests and broker-less local runs; the contract, including the shared
// fate of a mutation and its lifecycle event, matches the postgres adapter.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"stockcast/internal/modules/catalog/domain"
	"stockcast/internal/modules/catalog/ports"
)

type Store struct {
	mu            sync.RWMutex
	products      map[int64]domain.Product
	events        []domain.Event
	nextProductID int64
	nextEventID   int64

	// FailEvents, when set, makes every event insert return the error. Test
	// hook for exercising the mutation/event shared-fate contract.
	FailEvents error
}

func NewStore() *Store {
	return &Store{products: make(map[int64]domain.Product)}
}

var _ ports.Repository = (*Store)(nil)

func (s *Store) CreateProduct(ctx context.Context, input ports.CreateProductInput, now time.Time) (domain.Product, domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product := domain.Product{
		ID:          s.nextProductID + 1,
		SellerID:    strings.TrimSpace(input.SellerID),
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price,
		Quantity:    input.Quantity,
		Category:    strings.TrimSpace(input.Category),
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}

	event, err := s.insertEventLocked(domain.EventProductCreated, product.SellerID, &product.ID, domain.ProductPayload(product), now)
	if err != nil {
		return domain.Product{}, domain.Event{}, err
	}
	s.nextProductID++
	s.products[product.ID] = product
	return product, event, nil
}

func (s *Store) UpdateProduct(ctx context.Context, sellerID string, productID int64, input ports.UpdateProductInput, now time.Time) (domain.Product, domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok || product.SellerID != sellerID {
		return domain.Product{}, domain.Event{}, domain.ErrProductNotFound
	}
	updated := applyUpdate(product, input, now)

	event, err := s.insertEventLocked(domain.EventProductUpdated, sellerID, &productID, domain.ProductPayload(updated), now)
	if err != nil {
		return domain.Product{}, domain.Event{}, err
	}
	s.products[productID] = updated
	return updated, event, nil
}

func (s *Store) DeleteProduct(ctx context.Context, sellerID string, productID int64, now time.Time) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[productID]
	if !ok || product.SellerID != sellerID {
		return domain.Event{}, domain.ErrProductNotFound
	}

	event, err := s.insertEventLocked(domain.EventProductDeleted, sellerID, nil, domain.DeletedPayload(productID, sellerID), now)
	if err != nil {
		return domain.Event{}, err
	}

	delete(s.products, productID)
	// Cascade: prior events referencing the product disappear with it.
	kept := s.events[:0]
	for _, ev := range s.events {
		if ev.ProductID != nil && *ev.ProductID == productID {
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return event, nil
}

func (s *Store) GetProduct(ctx context.Context, sellerID string, productID int64) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[productID]
	if !ok || product.SellerID != sellerID {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

func (s *Store) ListProducts(ctx context.Context, filter ports.ProductFilter) ([]domain.Product, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Product, 0, len(s.products))
	for _, product := range s.products {
		if filter.SellerID != "" && product.SellerID != filter.SellerID {
			continue
		}
		if filter.Category != "" && product.Category != filter.Category {
			continue
		}
		matched = append(matched, product)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := int64(len(matched))
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	start := (page - 1) * limit
	if start >= len(matched) {
		return []domain.Product{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *Store) AppendEvent(ctx context.Context, input ports.AppendEventInput, now time.Time) (domain.Event, error) {
	if !input.Type.Valid() {
		return domain.Event{}, domain.ErrInvalidEvent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if input.ProductID != nil {
		if _, ok := s.products[*input.ProductID]; !ok {
			return domain.Event{}, domain.ErrProductNotFound
		}
	}
	return s.insertEventLocked(input.Type, input.SellerID, input.ProductID, input.Payload, now)
}

func (s *Store) ListEvents(ctx context.Context, sellerID string, limit int) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Event, 0, limit)
	for i := len(s.events) - 1; i >= 0; i-- {
		if sellerID != "" && s.events[i].SellerID != sellerID {
			continue
		}
		out = append(out, s.events[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) HasRecentDuplicate(ctx context.Context, ev domain.Event, window time.Duration) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, candidate := range s.events {
		if !domain.SameOccurrence(ev, candidate) {
			continue
		}
		if domain.WithinWindow(ev, candidate, window) {
			return true, nil
		}
	}
	return false, nil
}

// EventCount reports the number of stored events, including suppressed ones.
func (s *Store) EventCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *Store) insertEventLocked(eventType domain.EventType, sellerID string, productID *int64, payload []byte, now time.Time) (domain.Event, error) {
	if s.FailEvents != nil {
		return domain.Event{}, s.FailEvents
	}
	s.nextEventID++
	event := domain.Event{
		ID:        s.nextEventID,
		Type:      eventType,
		SellerID:  sellerID,
		ProductID: productID,
		Payload:   payload,
		CreatedAt: now.UTC(),
	}
	s.events = append(s.events, event)
	return event, nil
}

func applyUpdate(product domain.Product, input ports.UpdateProductInput, now time.Time) domain.Product {
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = strings.TrimSpace(*input.Description)
	}
	if input.Price != nil {
		product.Price = *input.Price
	}
	if input.Quantity != nil {
		product.Quantity = *input.Quantity
	}
	if input.Category != nil {
		product.Category = strings.TrimSpace(*input.Category)
	}
	product.UpdatedAt = now.UTC()
	return product
}
