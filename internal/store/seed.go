package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/judyrop/tequilas-restaurant/models"
)

type seedProduct struct {
	name, description, price, category string
	stock                              int
	ingredients                        []string
}

var (
	seedCategories = []models.Category{
		{Name: "Veg", Description: "Delicious vegetarian meals"},
		{Name: "Non-Veg", Description: "Tasty non-vegetarian dishes"},
		{Name: "Fast Food", Description: "Quick and satisfying fast food items"},
		{Name: "Beverages", Description: "Cold drinks, juices, and more"},
		{Name: "Desserts", Description: "Sweet treats to finish your meal"},
	}
	seedIngredients = []models.Ingredient{
		{Name: "Mozzarella Cheese", Description: "Creamy and melty cheese"},
		{Name: "Tomato Sauce", Description: "Rich and tangy sauce"},
		{Name: "Beef Patty", Description: "Grilled ground beef"},
		{Name: "Lettuce", Description: "Fresh green lettuce"},
		{Name: "French Fries", Description: "Crispy potato fries"},
	}
	seedProducts = []seedProduct{
		{"Classic Cheese Pizza", "Cheesy goodness with tomato base", "9.99", "Veg", 20,
			[]string{"Mozzarella Cheese", "Tomato Sauce", "Lettuce"}},
		{"Double Beef Burger", "Two juicy patties with cheese", "11.99", "Non-Veg", 15,
			[]string{"Beef Patty", "Tomato Sauce", "Lettuce"}},
		{"Coca Cola", "Chilled fizzy drink", "1.99", "Beverages", 50, nil},
		{"Chocolate Cake", "Rich and moist cake slice", "4.99", "Desserts", 10, nil},
		{"Loaded Fries", "Fries topped with cheese and jalapenos", "5.49", "Fast Food", 25,
			[]string{"French Fries", "Mozzarella Cheese"}},
	}
)

// SeedCatalog loads the starter menu into an empty catalog. It returns false
// without writing anything when categories already exist.
func (s *Store) SeedCatalog(ctx context.Context) (bool, error) {
	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.Category{}).Count(&existing).Error; err != nil {
		return false, err
	}
	if existing > 0 {
		return false, nil
	}

	err := s.Transaction(ctx, func(tx *Store) error {
		categoryIDs := make(map[string]uint, len(seedCategories))
		for _, c := range seedCategories {
			c := c
			if err := tx.Categories.Create(ctx, &c); err != nil {
				return fmt.Errorf("seed category %s: %w", c.Name, err)
			}
			categoryIDs[c.Name] = c.ID
		}

		ingredientIDs := make(map[string]uint, len(seedIngredients))
		for _, i := range seedIngredients {
			i := i
			existing, err := tx.Ingredients.FindByName(ctx, i.Name)
			if err == nil {
				ingredientIDs[i.Name] = existing.ID
				continue
			}
			if err := tx.Ingredients.Create(ctx, &i); err != nil {
				return fmt.Errorf("seed ingredient %s: %w", i.Name, err)
			}
			ingredientIDs[i.Name] = i.ID
		}

		for _, sp := range seedProducts {
			p := models.Product{
				Name:        sp.name,
				Description: sp.description,
				Price:       decimal.RequireFromString(sp.price),
				Stock:       sp.stock,
				CategoryID:  categoryIDs[sp.category],
			}
			if err := tx.Products.Create(ctx, &p); err != nil {
				return fmt.Errorf("seed product %s: %w", p.Name, err)
			}
			ids := make([]uint, 0, len(sp.ingredients))
			for _, name := range sp.ingredients {
				ids = append(ids, ingredientIDs[name])
			}
			if err := tx.Products.AddIngredients(ctx, p.ID, ids); err != nil {
				return fmt.Errorf("seed product %s ingredients: %w", p.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
