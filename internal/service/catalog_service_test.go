package service

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/judyrop/tequilas-restaurant/internal/apperr"
	"github.com/judyrop/tequilas-restaurant/internal/images"
	"github.com/judyrop/tequilas-restaurant/internal/store"
	"github.com/judyrop/tequilas-restaurant/internal/store/storetest"
	"github.com/judyrop/tequilas-restaurant/models"
)

type CatalogServiceSuite struct {
	suite.Suite
	db    *gorm.DB
	store *store.Store
	fs    afero.Fs
	svc   *CatalogService
	ctx   context.Context

	veg *models.Category
}

func TestCatalogServiceSuite(t *testing.T) {
	suite.Run(t, new(CatalogServiceSuite))
}

func (s *CatalogServiceSuite) SetupTest() {
	s.db = storetest.Open(s.T())
	s.store = store.New(s.db)
	s.fs = afero.NewMemMapFs()
	s.svc = NewCatalogService(s.store, images.NewStore(s.fs, "wwwroot"), zerolog.Nop())
	s.ctx = context.Background()
	s.veg = storetest.CreateCategory(s.T(), s.db, "Veg")
}

func (s *CatalogServiceSuite) imageExists(url string) bool {
	ok, err := afero.Exists(s.fs, "wwwroot/images/"+strings.TrimPrefix(url, images.URLPrefix))
	s.Require().NoError(err)
	return ok
}

func (s *CatalogServiceSuite) TestIngredientNamesAreUniqueIgnoringCase() {
	_, err := s.svc.CreateIngredient(s.ctx, IngredientInput{Name: "Basil"})
	s.Require().NoError(err)

	_, err = s.svc.CreateIngredient(s.ctx, IngredientInput{Name: "basil"})
	s.True(apperr.Is(err, apperr.KindConflict))

	other, err := s.svc.CreateIngredient(s.ctx, IngredientInput{Name: "Oregano"})
	s.Require().NoError(err)
	_, err = s.svc.UpdateIngredient(s.ctx, other.IngredientID, IngredientInput{Name: "BASIL"})
	s.True(apperr.Is(err, apperr.KindConflict))

	renamed, err := s.svc.UpdateIngredient(s.ctx, other.IngredientID, IngredientInput{Name: "oregano", Description: "dried"})
	s.Require().NoError(err)
	s.Equal("oregano", renamed.Name)
}

func (s *CatalogServiceSuite) TestDeleteIngredientInUse() {
	basil := storetest.CreateIngredient(s.T(), s.db, "Basil")
	pizza := storetest.CreateProduct(s.T(), s.db, s.veg.ID, "Pizza", "9.99")
	_, err := s.svc.AssignIngredients(s.ctx, pizza.ID, []uint{basil.ID})
	s.Require().NoError(err)

	err = s.svc.DeleteIngredient(s.ctx, basil.ID)
	s.Require().True(apperr.Is(err, apperr.KindConflict))
	s.Contains(err.Error(), "1 product(s)")

	usage, err := s.svc.IngredientUsage(s.ctx, basil.ID)
	s.Require().NoError(err)
	s.True(usage.IsInUse)
	s.Equal(1, usage.ProductCount)
	s.Equal([]ProductRef{{ProductID: pizza.ID, ProductName: "Pizza"}}, usage.Products)

	s.Require().NoError(s.svc.DeleteProduct(s.ctx, pizza.ID))
	s.NoError(s.svc.DeleteIngredient(s.ctx, basil.ID))
	s.True(apperr.Is(s.svc.DeleteIngredient(s.ctx, basil.ID), apperr.KindNotFound))
}

func (s *CatalogServiceSuite) TestDeleteIngredientLinkedDuringDelete() {
	basil := storetest.CreateIngredient(s.T(), s.db, "Basil")
	pizza := storetest.CreateProduct(s.T(), s.db, s.veg.ID, "Pizza", "9.99")

	// link the ingredient between the usage check and the delete
	s.Require().NoError(s.db.Callback().Delete().Before("gorm:delete").Register("test:link_basil", func(tx *gorm.DB) {
		if tx.Statement.Table != "ingredients" {
			return
		}
		tx.Session(&gorm.Session{NewDB: true}).
			Exec("INSERT INTO product_ingredients (product_id, ingredient_id) VALUES (?, ?)", pizza.ID, basil.ID)
	}))

	err := s.svc.DeleteIngredient(s.ctx, basil.ID)
	s.Require().True(apperr.Is(err, apperr.KindConflict), "got %v", err)
	s.Contains(err.Error(), "Basil")

	s.Require().NoError(s.db.Callback().Delete().Remove("test:link_basil"))
	_, err = s.svc.GetIngredient(s.ctx, basil.ID)
	s.NoError(err)
}

func (s *CatalogServiceSuite) TestIngredientDeleteErr() {
	err := ingredientDeleteErr(gorm.ErrForeignKeyViolated, "Basil", 4)
	s.True(apperr.Is(err, apperr.KindConflict))

	err = ingredientDeleteErr(gorm.ErrRecordNotFound, "Basil", 4)
	s.True(apperr.Is(err, apperr.KindNotFound))
	s.Contains(err.Error(), "Ingredient with ID 4 not found")
}

func (s *CatalogServiceSuite) TestBulkCreateIngredients() {
	storetest.CreateIngredient(s.T(), s.db, "Basil")

	res, err := s.svc.BulkCreateIngredients(s.ctx, []IngredientInput{
		{Name: "Tomato"}, {Name: "basil"}, {Name: "  "}, {Name: "tomato "}, {Name: "Olive", Description: "green"},
	})
	s.Require().NoError(err)
	s.Equal(5, res.TotalProcessed)
	s.Equal(2, res.SuccessCount)
	s.Equal(3, res.SkippedCount)
	s.Equal("Tomato", res.CreatedIngredients[0].Name)
	s.Equal("Olive", res.CreatedIngredients[1].Name)
	s.Equal("basil", res.SkippedIngredients[0].Name)
	s.Equal("name is required", res.SkippedIngredients[1].Reason)

	list, err := s.svc.ListIngredients(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 3)

	_, err = s.svc.BulkCreateIngredients(s.ctx, nil)
	s.True(apperr.Is(err, apperr.KindValidation))
}

func (s *CatalogServiceSuite) TestProductLifecycleWithImages() {
	basil := storetest.CreateIngredient(s.T(), s.db, "Basil")
	cheese := storetest.CreateIngredient(s.T(), s.db, "Cheese")

	created, err := s.svc.CreateProduct(s.ctx, ProductInput{
		Name: " Margherita ", Price: decimal.RequireFromString("9.99"), Stock: 5,
		CategoryID: s.veg.ID, IngredientIDs: []uint{cheese.ID, basil.ID, basil.ID},
	}, &Upload{Name: "pizza.jpg", Body: strings.NewReader("jpg")})
	s.Require().NoError(err)
	s.Equal("Margherita", created.Name)
	s.Equal("Veg", created.CategoryName)
	s.Len(created.Ingredients, 2)
	firstImage := created.ImageURL
	s.True(s.imageExists(firstImage))

	updated, err := s.svc.UpdateProduct(s.ctx, created.ProductID, ProductInput{
		Name: "Margherita", Price: decimal.RequireFromString("10.50"), Stock: 4,
		CategoryID: s.veg.ID, IngredientIDs: []uint{cheese.ID},
	}, &Upload{Name: "new.png", Body: strings.NewReader("png")})
	s.Require().NoError(err)
	s.Equal("10.5", updated.Price.String())
	s.Require().Len(updated.Ingredients, 1)
	s.Equal("Cheese", updated.Ingredients[0].Name)
	s.NotEqual(firstImage, updated.ImageURL)
	s.False(s.imageExists(firstImage))
	s.True(s.imageExists(updated.ImageURL))

	kept, err := s.svc.UpdateProduct(s.ctx, created.ProductID, ProductInput{
		Name: "Margherita", Price: decimal.RequireFromString("10.50"), CategoryID: s.veg.ID,
	}, nil)
	s.Require().NoError(err)
	s.Equal(updated.ImageURL, kept.ImageURL)
	s.Empty(kept.Ingredients)

	s.Require().NoError(s.svc.DeleteProduct(s.ctx, created.ProductID))
	s.False(s.imageExists(updated.ImageURL))
	_, err = s.svc.GetProduct(s.ctx, created.ProductID)
	s.True(apperr.Is(err, apperr.KindNotFound))
}

func (s *CatalogServiceSuite) TestCreateProductRejectsBadReferences() {
	_, err := s.svc.CreateProduct(s.ctx, ProductInput{
		Name: "Ghost", Price: decimal.NewFromInt(1), CategoryID: 77,
	}, nil)
	var ae *apperr.Error
	s.Require().ErrorAs(err, &ae)
	s.Equal(apperr.KindValidation, ae.Kind)
	s.Contains(ae.Fields, "categoryId")

	_, err = s.svc.CreateProduct(s.ctx, ProductInput{
		Name: "Ghost", Price: decimal.NewFromInt(1), CategoryID: s.veg.ID, IngredientIDs: []uint{5, 6},
	}, nil)
	s.Require().ErrorAs(err, &ae)
	s.Equal([]string{"5", "6"}, ae.Details)

	_, err = s.svc.CreateProduct(s.ctx, ProductInput{
		Name: "", Price: decimal.NewFromInt(-1), Stock: -1, CategoryID: s.veg.ID,
	}, nil)
	s.Require().ErrorAs(err, &ae)
	s.Contains(ae.Fields, "name")
	s.Contains(ae.Fields, "price")
	s.Contains(ae.Fields, "stock")

	_, err = s.svc.CreateProduct(s.ctx, ProductInput{
		Name: "Ghost", Price: decimal.NewFromInt(1), CategoryID: s.veg.ID,
	}, &Upload{Name: "ghost.exe", Body: strings.NewReader("MZ")})
	s.Require().ErrorAs(err, &ae)
	s.Contains(ae.Fields, "imageFile")

	products, err := s.svc.ListProducts(s.ctx)
	s.Require().NoError(err)
	s.Empty(products)
}

func (s *CatalogServiceSuite) TestAssignIngredientsIsIdempotent() {
	basil := storetest.CreateIngredient(s.T(), s.db, "Basil")
	pizza := storetest.CreateProduct(s.T(), s.db, s.veg.ID, "Pizza", "9.99")

	for range 2 {
		got, err := s.svc.AssignIngredients(s.ctx, pizza.ID, []uint{basil.ID, basil.ID})
		s.Require().NoError(err)
		s.Len(got.Ingredients, 1)
	}

	_, err := s.svc.AssignIngredients(s.ctx, 999, []uint{basil.ID})
	s.True(apperr.Is(err, apperr.KindNotFound))
	_, err = s.svc.AssignIngredients(s.ctx, pizza.ID, []uint{999})
	s.True(apperr.Is(err, apperr.KindValidation))

	detail, err := s.svc.GetIngredient(s.ctx, basil.ID)
	s.Require().NoError(err)
	s.Require().Len(detail.Products, 1)
	s.Equal("Veg", detail.Products[0].CategoryName)
}

func (s *CatalogServiceSuite) TestCategories() {
	bev, err := s.svc.CreateCategory(s.ctx, CategoryInput{Name: "Beverages"})
	s.Require().NoError(err)
	storetest.CreateProduct(s.T(), s.db, bev.CategoryID, "Cola", "1.99")

	err = s.svc.DeleteCategory(s.ctx, bev.CategoryID)
	s.True(apperr.Is(err, apperr.KindConflict))

	detail, err := s.svc.GetCategory(s.ctx, bev.CategoryID)
	s.Require().NoError(err)
	s.Require().Len(detail.Products, 1)
	s.Equal("Beverages", detail.Products[0].CategoryName)

	renamed, err := s.svc.UpdateCategory(s.ctx, s.veg.ID, CategoryInput{Name: "Vegetarian"})
	s.Require().NoError(err)
	s.Equal("Vegetarian", renamed.Name)

	s.NoError(s.svc.DeleteCategory(s.ctx, s.veg.ID))
	list, err := s.svc.ListCategories(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 1)

	_, err = s.svc.CreateCategory(s.ctx, CategoryInput{})
	s.True(apperr.Is(err, apperr.KindValidation))
}

func (s *CatalogServiceSuite) TestFixImageURLs() {
	bare := storetest.CreateProduct(s.T(), s.db, s.veg.ID, "Pizza", "9.99")
	bare.ImageURL = "pizza.jpg"
	s.Require().NoError(s.store.Products.Save(s.ctx, bare))
	good := storetest.CreateProduct(s.T(), s.db, s.veg.ID, "Cola", "1.99")
	good.ImageURL = "/images/cola.jpg"
	s.Require().NoError(s.store.Products.Save(s.ctx, good))

	n, err := s.svc.FixImageURLs(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	got, err := s.svc.GetProduct(s.ctx, bare.ID)
	s.Require().NoError(err)
	s.Equal("/images/pizza.jpg", got.ImageURL)
}
