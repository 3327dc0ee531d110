package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/judyrop/tequilas-restaurant/models"
)

type OrderRepo struct {
	db *gorm.DB
}

// OrderFilter restricts orders to CreatedAt in [Since, Before). Nil bounds are open.
type OrderFilter struct {
	Since  *time.Time
	Before *time.Time
}

func (r *OrderRepo) withItems() *gorm.DB {
	return r.db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id") })
}

// Create writes the order and its items. Callers that need the read-then-write
// to be atomic run it inside Store.Transaction.
func (r *OrderRepo) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *OrderRepo) Get(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.withItems().WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepo) ListByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := r.withItems().WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	return orders, err
}

// List returns every order matching the filter, newest first.
func (r *OrderRepo) List(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	q := r.withItems().WithContext(ctx)
	if filter.Since != nil {
		q = q.Where("created_at >= ?", filter.Since.UTC())
	}
	if filter.Before != nil {
		q = q.Where("created_at < ?", filter.Before.UTC())
	}
	var orders []models.Order
	err := q.Order("created_at DESC, id DESC").Find(&orders).Error
	return orders, err
}
