package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/judyrop/tequilas-restaurant/models"
)

type CategoryRepo struct {
	db *gorm.DB
}

func (r *CategoryRepo) List(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.WithContext(ctx).Order("id").Find(&categories).Error
	return categories, err
}

func (r *CategoryRepo) Get(ctx context.Context, id uint, preload Preload) (*models.Category, error) {
	var category models.Category
	if err := preload.category(r.db.WithContext(ctx)).First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepo) Exists(ctx context.Context, id uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Category{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *CategoryRepo) Create(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Omit("Products").Create(category).Error
}

func (r *CategoryRepo) Save(ctx context.Context, category *models.Category) error {
	return r.db.WithContext(ctx).Omit("Products").Save(category).Error
}

func (r *CategoryRepo) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Category{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
