package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Category struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:100;not null"`
	Description string `gorm:"size:500"`
	Products    []Product
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Product struct {
	ID          uint            `gorm:"primaryKey"`
	Name        string          `gorm:"size:100;not null"`
	Description string          `gorm:"size:1000"`
	Price       decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Stock       int             `gorm:"not null;default:0"`
	CategoryID  uint            `gorm:"not null;index"`
	Category    *Category
	ImageURL    string       `gorm:"size:500"`
	Ingredients []Ingredient `gorm:"many2many:product_ingredients;"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Ingredient struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:100;not null"`
	// NameKey is the case-folded name; uniqueness of ingredient names is enforced on it.
	NameKey     string    `gorm:"size:100;not null;uniqueIndex"`
	Description string    `gorm:"size:500"`
	Products    []Product `gorm:"many2many:product_ingredients;"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (i *Ingredient) BeforeSave(tx *gorm.DB) error {
	i.NameKey = NameKey(i.Name)
	return nil
}

// ProductIngredient is the join row between a product and one of its ingredients.
type ProductIngredient struct {
	ProductID    uint `gorm:"primaryKey"`
	IngredientID uint `gorm:"primaryKey;index"`
}

// NameKey folds a display name into the form used for case-insensitive uniqueness.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type Order struct {
	ID            uint            `gorm:"primaryKey"`
	UserID        uint            `gorm:"not null;index"`
	CreatedAt     time.Time       `gorm:"not null;index"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	FullName      string          `gorm:"size:100;not null"`
	Address       string          `gorm:"size:200;not null"`
	ContactNumber string          `gorm:"size:20;not null"`
	PaymentMethod string          `gorm:"size:50;not null"`
	Items         []OrderItem     `gorm:"constraint:OnDelete:CASCADE"`
}

// OrderItem carries the unit price captured when the order was placed. ProductID is a
// plain column with no foreign key so that catalog deletes never touch order history.
type OrderItem struct {
	ID        uint            `gorm:"primaryKey"`
	OrderID   uint            `gorm:"not null;index"`
	ProductID uint            `gorm:"not null;index"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(10,2);not null"`
}

// LineTotal is quantity times the captured unit price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
