package application

import (
	"context"
	"log/slog"
	"strings"

	"stockcast/internal/modules/catalog/domain"
	"stockcast/internal/modules/catalog/ports"
)

// DefaultLowStockThreshold triggers a warning when quantity drops below it.
const DefaultLowStockThreshold = 5

// Service drives catalog mutations. Every mutation persists its lifecycle
// event in the same transaction as the product change and then announces it;
// low-stock warnings are evaluated afterwards and are best-effort.
type Service struct {
	Repo              ports.Repository
	Notifier          *Notifier
	Classifier        domain.Classifier
	Clock             ports.Clock
	LowStockThreshold int
}

func NewService(repo ports.Repository, notifier *Notifier, classifier domain.Classifier) *Service {
	return &Service{
		Repo:              repo,
		Notifier:          notifier,
		Classifier:        classifier,
		Clock:             ports.SystemClock{},
		LowStockThreshold: DefaultLowStockThreshold,
	}
}

func (s *Service) CreateProduct(ctx context.Context, input ports.CreateProductInput) (domain.Product, error) {
	candidate := domain.Product{
		SellerID: strings.TrimSpace(input.SellerID),
		Name:     strings.TrimSpace(input.Name),
		Price:    input.Price,
		Quantity: input.Quantity,
	}
	if err := candidate.Validate(); err != nil {
		return domain.Product{}, err
	}
	if strings.TrimSpace(input.Category) == "" && s.Classifier != nil {
		category, confidence := s.Classifier.Classify(input.Name + " " + input.Description)
		input.Category = category
		slog.Debug("product categorized",
			slog.String("category", category),
			slog.Float64("confidence", confidence))
	}

	product, event, err := s.Repo.CreateProduct(ctx, input, s.Clock.Now())
	if err != nil {
		return domain.Product{}, err
	}
	s.Notifier.Announce(ctx, event)
	s.evaluateStock(ctx, product)
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, sellerID string, productID int64, input ports.UpdateProductInput) (domain.Product, error) {
	if strings.TrimSpace(sellerID) == "" {
		return domain.Product{}, domain.ErrMissingSeller
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return domain.Product{}, domain.ErrInvalidProduct
	}
	if input.Price != nil && *input.Price < 0 {
		return domain.Product{}, domain.ErrInvalidProduct
	}
	if input.Quantity != nil && *input.Quantity < 0 {
		return domain.Product{}, domain.ErrInvalidProduct
	}

	product, event, err := s.Repo.UpdateProduct(ctx, sellerID, productID, input, s.Clock.Now())
	if err != nil {
		return domain.Product{}, err
	}
	s.Notifier.Announce(ctx, event)
	s.evaluateStock(ctx, product)
	return product, nil
}

func (s *Service) DeleteProduct(ctx context.Context, sellerID string, productID int64) error {
	if strings.TrimSpace(sellerID) == "" {
		return domain.ErrMissingSeller
	}
	event, err := s.Repo.DeleteProduct(ctx, sellerID, productID, s.Clock.Now())
	if err != nil {
		return err
	}
	s.Notifier.Announce(ctx, event)
	return nil
}

func (s *Service) GetProduct(ctx context.Context, sellerID string, productID int64) (domain.Product, error) {
	if strings.TrimSpace(sellerID) == "" {
		return domain.Product{}, domain.ErrMissingSeller
	}
	return s.Repo.GetProduct(ctx, sellerID, productID)
}

func (s *Service) ListProducts(ctx context.Context, filter ports.ProductFilter) ([]domain.Product, int64, error) {
	if strings.TrimSpace(filter.SellerID) == "" {
		return nil, 0, domain.ErrMissingSeller
	}
	return s.Repo.ListProducts(ctx, filter)
}

func (s *Service) ListEvents(ctx context.Context, sellerID string, limit int) ([]domain.Event, error) {
	if strings.TrimSpace(sellerID) == "" {
		return nil, domain.ErrMissingSeller
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.Repo.ListEvents(ctx, sellerID, limit)
}

// evaluateStock appends a LowStockWarning when quantity fell under the
// threshold. The warning is secondary: it commits on its own after the
// mutation, and a failed append is logged, never surfaced.
func (s *Service) evaluateStock(ctx context.Context, product domain.Product) {
	threshold := s.LowStockThreshold
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	if product.Quantity >= threshold {
		return
	}

	event, err := s.Repo.AppendEvent(ctx, ports.AppendEventInput{
		Type:      domain.EventLowStockWarning,
		SellerID:  product.SellerID,
		ProductID: &product.ID,
		Payload:   domain.LowStockPayload(product, threshold),
	}, s.Clock.Now())
	if err != nil {
		slog.Warn("low stock event append failed",
			slog.Int64("productId", product.ID),
			slog.String("sellerId", product.SellerID),
			slog.Any("error", err))
		return
	}
	s.Notifier.Announce(ctx, event)
}
