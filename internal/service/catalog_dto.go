package service

import (
	"github.com/shopspring/decimal"

	"github.com/judyrop/tequilas-restaurant/models"
)

const unknownCategory = "Unknown"

type ProductDTO struct {
	ProductID    uint            `json:"productId"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	ImageURL     string          `json:"imageUrl"`
	CategoryID   uint            `json:"categoryId"`
	CategoryName string          `json:"categoryName"`
}

type ProductDetailDTO struct {
	ProductDTO
	Ingredients []IngredientDTO `json:"ingredients"`
}

type IngredientDTO struct {
	IngredientID uint   `json:"ingredientId"`
	Name         string `json:"name"`
	Description  string `json:"description"`
}

type IngredientDetailDTO struct {
	IngredientDTO
	Products []ProductDTO `json:"products"`
}

type ProductRef struct {
	ProductID   uint   `json:"productId"`
	ProductName string `json:"productName"`
}

type IngredientUsage struct {
	IngredientID   uint         `json:"ingredientId"`
	IngredientName string       `json:"ingredientName"`
	IsInUse        bool         `json:"isInUse"`
	ProductCount   int          `json:"productCount"`
	Products       []ProductRef `json:"products"`
}

type SkippedIngredient struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type BulkIngredientResult struct {
	TotalProcessed     int                 `json:"totalProcessed"`
	SuccessCount       int                 `json:"successCount"`
	SkippedCount       int                 `json:"skippedCount"`
	CreatedIngredients []IngredientDTO     `json:"createdIngredients"`
	SkippedIngredients []SkippedIngredient `json:"skippedIngredients"`
}

type CategoryDTO struct {
	CategoryID  uint   `json:"categoryId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type CategoryDetailDTO struct {
	CategoryDTO
	Products []ProductDTO `json:"products"`
}

func toProductDTO(p models.Product) ProductDTO {
	name := unknownCategory
	if p.Category != nil {
		name = p.Category.Name
	}
	return ProductDTO{
		ProductID:    p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        p.Price,
		Stock:        p.Stock,
		ImageURL:     p.ImageURL,
		CategoryID:   p.CategoryID,
		CategoryName: name,
	}
}

func toProductDetailDTO(p models.Product) ProductDetailDTO {
	dto := ProductDetailDTO{ProductDTO: toProductDTO(p), Ingredients: make([]IngredientDTO, 0, len(p.Ingredients))}
	for _, i := range p.Ingredients {
		dto.Ingredients = append(dto.Ingredients, toIngredientDTO(i))
	}
	return dto
}

func toIngredientDTO(i models.Ingredient) IngredientDTO {
	return IngredientDTO{IngredientID: i.ID, Name: i.Name, Description: i.Description}
}

func toIngredientDetailDTO(i models.Ingredient) IngredientDetailDTO {
	dto := IngredientDetailDTO{IngredientDTO: toIngredientDTO(i), Products: make([]ProductDTO, 0, len(i.Products))}
	for _, p := range i.Products {
		dto.Products = append(dto.Products, toProductDTO(p))
	}
	return dto
}

func toCategoryDTO(c models.Category) CategoryDTO {
	return CategoryDTO{CategoryID: c.ID, Name: c.Name, Description: c.Description}
}

func toCategoryDetailDTO(c models.Category) CategoryDetailDTO {
	dto := CategoryDetailDTO{CategoryDTO: toCategoryDTO(c), Products: make([]ProductDTO, 0, len(c.Products))}
	for _, p := range c.Products {
		p.Category = &c
		dto.Products = append(dto.Products, toProductDTO(p))
	}
	return dto
}
