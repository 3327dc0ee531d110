package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/judyrop/tequilas-restaurant/models"
)

type IngredientRepo struct {
	db *gorm.DB
}

func (r *IngredientRepo) List(ctx context.Context) ([]models.Ingredient, error) {
	var ingredients []models.Ingredient
	err := r.db.WithContext(ctx).Order("name").Find(&ingredients).Error
	return ingredients, err
}

func (r *IngredientRepo) Get(ctx context.Context, id uint, preload Preload) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	if err := preload.ingredient(r.db.WithContext(ctx)).First(&ingredient, id).Error; err != nil {
		return nil, err
	}
	return &ingredient, nil
}

// FindByName matches case-insensitively.
func (r *IngredientRepo) FindByName(ctx context.Context, name string) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	if err := r.db.WithContext(ctx).Where("name_key = ?", models.NameKey(name)).First(&ingredient).Error; err != nil {
		return nil, err
	}
	return &ingredient, nil
}

// NameKeys returns the folded names of every ingredient.
func (r *IngredientRepo) NameKeys(ctx context.Context) (map[string]struct{}, error) {
	var keys []string
	if err := r.db.WithContext(ctx).Model(&models.Ingredient{}).Pluck("name_key", &keys).Error; err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, nil
}

// ExistingIDs returns the subset of ids that name an ingredient.
func (r *IngredientRepo) ExistingIDs(ctx context.Context, ids []uint) (map[uint]struct{}, error) {
	found := make(map[uint]struct{}, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var existing []uint
	if err := r.db.WithContext(ctx).Model(&models.Ingredient{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
		return nil, err
	}
	for _, id := range existing {
		found[id] = struct{}{}
	}
	return found, nil
}

func (r *IngredientRepo) Create(ctx context.Context, ingredient *models.Ingredient) error {
	return r.db.WithContext(ctx).Omit("Products").Create(ingredient).Error
}

func (r *IngredientRepo) Save(ctx context.Context, ingredient *models.Ingredient) error {
	return r.db.WithContext(ctx).Omit("Products").Save(ingredient).Error
}

func (r *IngredientRepo) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Ingredient{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UsageCount is the number of products linked to the ingredient.
func (r *IngredientRepo) UsageCount(ctx context.Context, id uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ProductIngredient{}).Where("ingredient_id = ?", id).Count(&n).Error
	return n, err
}
