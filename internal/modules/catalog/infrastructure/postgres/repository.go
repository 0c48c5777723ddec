// Package postgres persists the catalog and its event log with gorm.
// Lifecycle events are inserted inside the transaction of the mutation that
// caused them; deleting a product cascades to every event referencing it.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"stockcast/internal/modules/catalog/domain"
	"stockcast/internal/modules/catalog/ports"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ ports.Repository = (*Repository)(nil)

type productModel struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SellerID    string    `gorm:"column:seller_id;index"`
	Name        string    `gorm:"column:name"`
	Description string    `gorm:"column:description"`
	Price       float64   `gorm:"column:price"`
	Quantity    int       `gorm:"column:quantity"`
	Category    string    `gorm:"column:category"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (productModel) TableName() string { return "products" }

type eventModel struct {
	ID        int64         `gorm:"column:id;primaryKey;autoIncrement"`
	Type      string        `gorm:"column:type;index:idx_events_dedup,priority:1"`
	SellerID  string        `gorm:"column:seller_id;index"`
	ProductID *int64        `gorm:"column:product_id;index:idx_events_dedup,priority:2"`
	Payload   []byte        `gorm:"column:payload;type:jsonb"`
	CreatedAt time.Time     `gorm:"column:created_at"`
	Product   *productModel `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
}

func (eventModel) TableName() string { return "events" }

// Migrate creates the catalog tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&productModel{}, &eventModel{})
}

func (r *Repository) CreateProduct(ctx context.Context, input ports.CreateProductInput, now time.Time) (domain.Product, domain.Event, error) {
	row := productModel{
		SellerID:    strings.TrimSpace(input.SellerID),
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price,
		Quantity:    input.Quantity,
		Category:    strings.TrimSpace(input.Category),
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}

	var eventRow eventModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		product := row.toDomain()
		eventRow = newEventRow(domain.EventProductCreated, product.SellerID, &row.ID, domain.ProductPayload(product), now)
		return tx.Create(&eventRow).Error
	})
	if err != nil {
		return domain.Product{}, domain.Event{}, translateError(err)
	}
	return row.toDomain(), eventRow.toDomain(), nil
}

func (r *Repository) UpdateProduct(ctx context.Context, sellerID string, productID int64, input ports.UpdateProductInput, now time.Time) (domain.Product, domain.Event, error) {
	var row productModel
	var eventRow eventModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND seller_id = ?", productID, sellerID).First(&row).Error; err != nil {
			return err
		}
		applyUpdate(&row, input, now)
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		eventRow = newEventRow(domain.EventProductUpdated, sellerID, &row.ID, domain.ProductPayload(row.toDomain()), now)
		return tx.Create(&eventRow).Error
	})
	if err != nil {
		return domain.Product{}, domain.Event{}, translateError(err)
	}
	return row.toDomain(), eventRow.toDomain(), nil
}

func (r *Repository) DeleteProduct(ctx context.Context, sellerID string, productID int64, now time.Time) (domain.Event, error) {
	var eventRow eventModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND seller_id = ?", productID, sellerID).Delete(&productModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		// The tombstone keeps product_id null so the row is not swept by the
		// cascade that just removed the product's earlier events.
		eventRow = newEventRow(domain.EventProductDeleted, sellerID, nil, domain.DeletedPayload(productID, sellerID), now)
		return tx.Create(&eventRow).Error
	})
	if err != nil {
		return domain.Event{}, translateError(err)
	}
	return eventRow.toDomain(), nil
}

func (r *Repository) GetProduct(ctx context.Context, sellerID string, productID int64) (domain.Product, error) {
	var row productModel
	err := r.db.WithContext(ctx).
		Where("id = ? AND seller_id = ?", productID, sellerID).
		First(&row).
		Error
	if err != nil {
		return domain.Product{}, translateError(err)
	}
	return row.toDomain(), nil
}

func (r *Repository) ListProducts(ctx context.Context, filter ports.ProductFilter) ([]domain.Product, int64, error) {
	tx := r.db.WithContext(ctx).Model(&productModel{})
	if strings.TrimSpace(filter.SellerID) != "" {
		tx = tx.Where("seller_id = ?", strings.TrimSpace(filter.SellerID))
	}
	if strings.TrimSpace(filter.Category) != "" {
		tx = tx.Where("category = ?", strings.TrimSpace(filter.Category))
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var rows []productModel
	if err := tx.Order("id ASC").Offset((page - 1) * limit).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	items := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toDomain())
	}
	return items, total, nil
}

func (r *Repository) AppendEvent(ctx context.Context, input ports.AppendEventInput, now time.Time) (domain.Event, error) {
	if !input.Type.Valid() {
		return domain.Event{}, domain.ErrInvalidEvent
	}
	row := newEventRow(input.Type, strings.TrimSpace(input.SellerID), input.ProductID, input.Payload, now)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Event{}, translateError(err)
	}
	return row.toDomain(), nil
}

func (r *Repository) ListEvents(ctx context.Context, sellerID string, limit int) ([]domain.Event, error) {
	tx := r.db.WithContext(ctx).Model(&eventModel{})
	if strings.TrimSpace(sellerID) != "" {
		tx = tx.Where("seller_id = ?", strings.TrimSpace(sellerID))
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var rows []eventModel
	if err := tx.Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Event, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toDomain())
	}
	return items, nil
}

func (r *Repository) HasRecentDuplicate(ctx context.Context, ev domain.Event, window time.Duration) (bool, error) {
	// Only strictly earlier events count, with ids breaking created_at ties.
	// A probe that also matched later inserts would let two concurrent
	// mutations suppress each other, delivering nothing.
	tx := r.db.WithContext(ctx).Model(&eventModel{}).
		Where("type = ?", string(ev.Type)).
		Where("created_at >= ?", ev.CreatedAt.Add(-window)).
		Where("created_at < ? OR (created_at = ? AND id < ?)", ev.CreatedAt, ev.CreatedAt, ev.ID)
	if ev.ProductID != nil {
		tx = tx.Where("product_id = ?", *ev.ProductID)
	} else {
		tx = tx.Where("product_id IS NULL").
			Where("payload->>'id' = ?", formatPayloadID(ev))
	}

	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func newEventRow(eventType domain.EventType, sellerID string, productID *int64, payload []byte, now time.Time) eventModel {
	return eventModel{
		Type:      string(eventType),
		SellerID:  sellerID,
		ProductID: productID,
		Payload:   payload,
		CreatedAt: now.UTC(),
	}
}

func applyUpdate(row *productModel, input ports.UpdateProductInput, now time.Time) {
	if input.Name != nil {
		row.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		row.Description = strings.TrimSpace(*input.Description)
	}
	if input.Price != nil {
		row.Price = *input.Price
	}
	if input.Quantity != nil {
		row.Quantity = *input.Quantity
	}
	if input.Category != nil {
		row.Category = strings.TrimSpace(*input.Category)
	}
	row.UpdatedAt = now.UTC()
}

func (m productModel) toDomain() domain.Product {
	return domain.Product{
		ID:          m.ID,
		SellerID:    m.SellerID,
		Name:        m.Name,
		Description: m.Description,
		Price:       m.Price,
		Quantity:    m.Quantity,
		Category:    m.Category,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func (m eventModel) toDomain() domain.Event {
	return domain.Event{
		ID:        m.ID,
		Type:      domain.EventType(m.Type),
		SellerID:  m.SellerID,
		ProductID: m.ProductID,
		Payload:   m.Payload,
		CreatedAt: m.CreatedAt,
	}
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrProductNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		// Foreign key violation: the referenced product vanished between the
		// mutation and a secondary append.
		return domain.ErrProductNotFound
	}
	return err
}

func formatPayloadID(ev domain.Event) string {
	var body struct {
		ID int64 `json:"id"`
	}
	_ = json.Unmarshal(ev.Payload, &body)
	return strconv.FormatInt(body.ID, 10)
}
