package store

import "gorm.io/gorm"

// Preload selects which related rows are loaded with an entity. Options
// combine with |.
type Preload uint8

const (
	// WithCategory loads Product.Category.
	WithCategory Preload = 1 << iota
	// WithIngredients loads Product.Ingredients.
	WithIngredients
	// WithProducts loads Ingredient.Products or Category.Products, each with its category.
	WithProducts
)

func (p Preload) has(o Preload) bool {
	return p&o != 0
}

func (p Preload) product(q *gorm.DB) *gorm.DB {
	if p.has(WithCategory) {
		q = q.Preload("Category")
	}
	if p.has(WithIngredients) {
		q = q.Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("ingredients.name") })
	}
	return q
}

func (p Preload) ingredient(q *gorm.DB) *gorm.DB {
	if p.has(WithProducts) {
		q = q.Preload("Products", func(db *gorm.DB) *gorm.DB { return db.Order("products.id") }).
			Preload("Products.Category")
	}
	return q
}

func (p Preload) category(q *gorm.DB) *gorm.DB {
	if p.has(WithProducts) {
		q = q.Preload("Products", func(db *gorm.DB) *gorm.DB { return db.Order("products.id") })
	}
	return q
}
