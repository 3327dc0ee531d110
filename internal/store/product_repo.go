package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/judyrop/tequilas-restaurant/models"
)

type ProductRepo struct {
	db *gorm.DB
}

func (r *ProductRepo) List(ctx context.Context, preload Preload) ([]models.Product, error) {
	var products []models.Product
	err := preload.product(r.db.WithContext(ctx)).Order("id").Find(&products).Error
	return products, err
}

// Get returns gorm.ErrRecordNotFound when no product has the id.
func (r *ProductRepo) Get(ctx context.Context, id uint, preload Preload) (*models.Product, error) {
	var product models.Product
	if err := preload.product(r.db.WithContext(ctx)).First(&product, id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads the products with the given ids in one query, keyed by id.
// Ids with no product are absent from the map.
func (r *ProductRepo) FindByIDs(ctx context.Context, ids []uint) (map[uint]models.Product, error) {
	found := make(map[uint]models.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	for _, p := range products {
		found[p.ID] = p
	}
	return found, nil
}

// Create inserts the product row only; ingredient links are managed with
// SetIngredients and AddIngredients.
func (r *ProductRepo) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(product).Error
}

func (r *ProductRepo) Save(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(product).Error
}

// Delete removes the product and its ingredient links.
func (r *ProductRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductIngredient{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Product{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// AddIngredients links the ingredients to the product. Pairs that already
// exist are left as they are.
func (r *ProductRepo) AddIngredients(ctx context.Context, productID uint, ingredientIDs []uint) error {
	if len(ingredientIDs) == 0 {
		return nil
	}
	rows := make([]models.ProductIngredient, 0, len(ingredientIDs))
	for _, id := range ingredientIDs {
		rows = append(rows, models.ProductIngredient{ProductID: productID, IngredientID: id})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// SetIngredients replaces the product's ingredient links with ingredientIDs.
func (r *ProductRepo) SetIngredients(ctx context.Context, productID uint, ingredientIDs []uint) error {
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&models.ProductIngredient{}).Error; err != nil {
		return err
	}
	return r.AddIngredients(ctx, productID, ingredientIDs)
}

func (r *ProductRepo) CountByCategory(ctx context.Context, categoryID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("category_id = ?", categoryID).Count(&n).Error
	return n, err
}
