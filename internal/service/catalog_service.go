package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/judyrop/tequilas-restaurant/internal/apperr"
	"github.com/judyrop/tequilas-restaurant/internal/images"
	"github.com/judyrop/tequilas-restaurant/internal/store"
	"github.com/judyrop/tequilas-restaurant/models"
)

type ProductInput struct {
	Name          string          `json:"name" validate:"required,max=100"`
	Description   string          `json:"description" validate:"max=1000"`
	Price         decimal.Decimal `json:"price"`
	Stock         int             `json:"stock" validate:"gte=0"`
	CategoryID    uint            `json:"categoryId" validate:"required"`
	IngredientIDs []uint          `json:"ingredientIds"`
}

type IngredientInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

type CategoryInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
}

// Upload is an image attached to a product create or update.
type Upload struct {
	Name string
	Body io.Reader
}

// CatalogService manages products, ingredients and categories together with
// product images.
type CatalogService struct {
	store  *store.Store
	images *images.Store
	log    zerolog.Logger
}

func NewCatalogService(s *store.Store, img *images.Store, log zerolog.Logger) *CatalogService {
	return &CatalogService{store: s, images: img, log: log}
}

// ---- products ----

func (s *CatalogService) ListProducts(ctx context.Context) ([]ProductDTO, error) {
	products, err := s.store.Products.List(ctx, store.WithCategory)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load products")
	}
	dtos := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, toProductDTO(p))
	}
	return dtos, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*ProductDetailDTO, error) {
	p, err := s.store.Products.Get(ctx, id, store.WithCategory|store.WithIngredients)
	if err != nil {
		return nil, lookupErr(err, "Product", id)
	}
	dto := toProductDetailDTO(*p)
	return &dto, nil
}

// CreateProduct stores the product, its ingredient set and the optional image.
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput, img *Upload) (*ProductDetailDTO, error) {
	if err := s.checkProduct(ctx, &in); err != nil {
		return nil, err
	}
	imageURL, err := s.saveImage(img)
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		CategoryID:  in.CategoryID,
		ImageURL:    imageURL,
	}
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.Products.Create(ctx, product); err != nil {
			return err
		}
		return tx.Products.SetIngredients(ctx, product.ID, in.IngredientIDs)
	})
	if err != nil {
		s.discardImage(imageURL)
		return nil, apperr.Internal(err, "failed to create product")
	}
	s.log.Info().Uint("product_id", product.ID).Str("name", product.Name).Msg("product created")
	return s.GetProduct(ctx, product.ID)
}

// UpdateProduct replaces the product's fields and ingredient set. A new image
// replaces the stored one, which is removed once the update commits.
func (s *CatalogService) UpdateProduct(ctx context.Context, id uint, in ProductInput, img *Upload) (*ProductDetailDTO, error) {
	product, err := s.store.Products.Get(ctx, id, 0)
	if err != nil {
		return nil, lookupErr(err, "Product", id)
	}
	if err := s.checkProduct(ctx, &in); err != nil {
		return nil, err
	}
	imageURL, err := s.saveImage(img)
	if err != nil {
		return nil, err
	}

	oldImage := product.ImageURL
	product.Name = in.Name
	product.Description = in.Description
	product.Price = in.Price
	product.Stock = in.Stock
	product.CategoryID = in.CategoryID
	product.Category = nil
	if imageURL != "" {
		product.ImageURL = imageURL
	}
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.Products.Save(ctx, product); err != nil {
			return err
		}
		return tx.Products.SetIngredients(ctx, product.ID, in.IngredientIDs)
	})
	if err != nil {
		s.discardImage(imageURL)
		return nil, apperr.Internal(err, "failed to update product")
	}
	if imageURL != "" && oldImage != "" {
		s.discardImage(oldImage)
	}
	return s.GetProduct(ctx, product.ID)
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id uint) error {
	product, err := s.store.Products.Get(ctx, id, 0)
	if err != nil {
		return lookupErr(err, "Product", id)
	}
	if err := s.store.Products.Delete(ctx, id); err != nil {
		return lookupErr(err, "Product", id)
	}
	s.discardImage(product.ImageURL)
	s.log.Info().Uint("product_id", id).Msg("product deleted")
	return nil
}

// AssignIngredients links the ingredients to the product. Existing links are kept.
func (s *CatalogService) AssignIngredients(ctx context.Context, productID uint, ingredientIDs []uint) (*ProductDetailDTO, error) {
	if _, err := s.store.Products.Get(ctx, productID, 0); err != nil {
		return nil, lookupErr(err, "Product", productID)
	}
	if len(ingredientIDs) == 0 {
		return nil, apperr.ValidationFields(map[string]string{"ingredientIds": "must contain at least 1 item(s)"})
	}
	ingredientIDs = distinct(ingredientIDs)
	if err := s.checkIngredientIDs(ctx, ingredientIDs); err != nil {
		return nil, err
	}
	if err := s.store.Products.AddIngredients(ctx, productID, ingredientIDs); err != nil {
		return nil, apperr.Internal(err, "failed to assign ingredients")
	}
	return s.GetProduct(ctx, productID)
}

// FixImageURLs prefixes bare image file names with the public image path and
// returns how many products changed.
func (s *CatalogService) FixImageURLs(ctx context.Context) (int, error) {
	products, err := s.store.Products.List(ctx, 0)
	if err != nil {
		return 0, apperr.Internal(err, "failed to load products")
	}
	fixed := 0
	for i := range products {
		p := &products[i]
		if p.ImageURL == "" || strings.HasPrefix(p.ImageURL, "/") || strings.Contains(p.ImageURL, "://") {
			continue
		}
		p.ImageURL = images.URLPrefix + p.ImageURL
		if err := s.store.Products.Save(ctx, p); err != nil {
			return fixed, apperr.Internal(err, "failed to update product %d", p.ID)
		}
		fixed++
	}
	return fixed, nil
}

func (s *CatalogService) checkProduct(ctx context.Context, in *ProductInput) error {
	trimSpace(&in.Name, &in.Description)
	fields := fieldErrors(in)
	if in.Price.IsNegative() {
		fields["price"] = "must be at least 0"
	}
	if err := invalid(fields); err != nil {
		return err
	}
	ok, err := s.store.Categories.Exists(ctx, in.CategoryID)
	if err != nil {
		return apperr.Internal(err, "failed to load category")
	}
	if !ok {
		return apperr.ValidationFields(map[string]string{"categoryId": fmt.Sprintf("category with ID %d does not exist", in.CategoryID)})
	}
	in.IngredientIDs = distinct(in.IngredientIDs)
	return s.checkIngredientIDs(ctx, in.IngredientIDs)
}

func (s *CatalogService) checkIngredientIDs(ctx context.Context, ids []uint) error {
	found, err := s.store.Ingredients.ExistingIDs(ctx, ids)
	if err != nil {
		return apperr.Internal(err, "failed to load ingredients")
	}
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, fmt.Sprint(id))
		}
	}
	if len(missing) > 0 {
		return apperr.Validation("ingredients with IDs [%s] not found", strings.Join(missing, ", ")).WithDetails(missing...)
	}
	return nil
}

func (s *CatalogService) saveImage(img *Upload) (string, error) {
	if img == nil || s.images == nil {
		return "", nil
	}
	url, err := s.images.Save(img.Name, img.Body)
	if errors.Is(err, images.ErrUnsupportedType) {
		return "", apperr.ValidationFields(map[string]string{"imageFile": "must be a jpg, jpeg, png, gif or webp image"})
	}
	if err != nil {
		return "", apperr.Internal(err, "failed to store image")
	}
	return url, nil
}

func (s *CatalogService) discardImage(url string) {
	if url == "" || s.images == nil {
		return
	}
	if err := s.images.Remove(url); err != nil {
		s.log.Warn().Err(err).Str("image", url).Msg("could not remove image")
	}
}

// ---- ingredients ----

func (s *CatalogService) ListIngredients(ctx context.Context) ([]IngredientDTO, error) {
	ingredients, err := s.store.Ingredients.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load ingredients")
	}
	dtos := make([]IngredientDTO, 0, len(ingredients))
	for _, i := range ingredients {
		dtos = append(dtos, toIngredientDTO(i))
	}
	return dtos, nil
}

func (s *CatalogService) GetIngredient(ctx context.Context, id uint) (*IngredientDetailDTO, error) {
	i, err := s.store.Ingredients.Get(ctx, id, store.WithProducts)
	if err != nil {
		return nil, lookupErr(err, "Ingredient", id)
	}
	dto := toIngredientDetailDTO(*i)
	return &dto, nil
}

// CreateIngredient rejects a name already taken, ignoring case.
func (s *CatalogService) CreateIngredient(ctx context.Context, in IngredientInput) (*IngredientDTO, error) {
	trimSpace(&in.Name, &in.Description)
	if err := invalid(fieldErrors(in)); err != nil {
		return nil, err
	}
	if err := s.checkNameFree(ctx, in.Name, 0); err != nil {
		return nil, err
	}
	ingredient := &models.Ingredient{Name: in.Name, Description: in.Description}
	if err := s.store.Ingredients.Create(ctx, ingredient); err != nil {
		return nil, ingredientWriteErr(err, in.Name)
	}
	dto := toIngredientDTO(*ingredient)
	return &dto, nil
}

func (s *CatalogService) UpdateIngredient(ctx context.Context, id uint, in IngredientInput) (*IngredientDTO, error) {
	ingredient, err := s.store.Ingredients.Get(ctx, id, 0)
	if err != nil {
		return nil, lookupErr(err, "Ingredient", id)
	}
	trimSpace(&in.Name, &in.Description)
	if err := invalid(fieldErrors(in)); err != nil {
		return nil, err
	}
	if err := s.checkNameFree(ctx, in.Name, id); err != nil {
		return nil, err
	}
	ingredient.Name = in.Name
	ingredient.Description = in.Description
	if err := s.store.Ingredients.Save(ctx, ingredient); err != nil {
		return nil, ingredientWriteErr(err, in.Name)
	}
	dto := toIngredientDTO(*ingredient)
	return &dto, nil
}

// DeleteIngredient refuses while any product still uses the ingredient.
func (s *CatalogService) DeleteIngredient(ctx context.Context, id uint) error {
	return s.store.Transaction(ctx, func(tx *store.Store) error {
		ingredient, err := tx.Ingredients.Get(ctx, id, 0)
		if err != nil {
			return lookupErr(err, "Ingredient", id)
		}
		n, err := tx.Ingredients.UsageCount(ctx, id)
		if err != nil {
			return apperr.Internal(err, "failed to check ingredient usage")
		}
		if n > 0 {
			return apperr.Conflict("cannot delete ingredient '%s': it is used by %d product(s)", ingredient.Name, n)
		}
		if err := tx.Ingredients.Delete(ctx, id); err != nil {
			return ingredientDeleteErr(err, ingredient.Name, id)
		}
		return nil
	})
}

// ingredientDeleteErr reports a link that appeared after the usage check as a conflict.
func ingredientDeleteErr(err error, name string, id uint) error {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return apperr.Conflict("cannot delete ingredient '%s': it is used by a product", name)
	}
	return lookupErr(err, "Ingredient", id)
}

func (s *CatalogService) IngredientUsage(ctx context.Context, id uint) (*IngredientUsage, error) {
	ingredient, err := s.store.Ingredients.Get(ctx, id, store.WithProducts)
	if err != nil {
		return nil, lookupErr(err, "Ingredient", id)
	}
	usage := &IngredientUsage{
		IngredientID:   ingredient.ID,
		IngredientName: ingredient.Name,
		IsInUse:        len(ingredient.Products) > 0,
		ProductCount:   len(ingredient.Products),
		Products:       make([]ProductRef, 0, len(ingredient.Products)),
	}
	for _, p := range ingredient.Products {
		usage.Products = append(usage.Products, ProductRef{ProductID: p.ID, ProductName: p.Name})
	}
	return usage, nil
}

// BulkCreateIngredients creates each row independently. Rows that are blank,
// too long or whose name already exists are skipped with a reason.
func (s *CatalogService) BulkCreateIngredients(ctx context.Context, rows []IngredientInput) (*BulkIngredientResult, error) {
	if len(rows) == 0 {
		return nil, apperr.ValidationFields(map[string]string{"ingredients": "must contain at least 1 item(s)"})
	}
	taken, err := s.store.Ingredients.NameKeys(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load ingredients")
	}

	res := &BulkIngredientResult{
		TotalProcessed:     len(rows),
		CreatedIngredients: []IngredientDTO{},
		SkippedIngredients: []SkippedIngredient{},
	}
	skip := func(name, reason string) {
		res.SkippedIngredients = append(res.SkippedIngredients, SkippedIngredient{Name: name, Reason: reason})
	}
	for _, row := range rows {
		trimSpace(&row.Name, &row.Description)
		key := models.NameKey(row.Name)
		switch {
		case row.Name == "":
			skip(row.Name, "name is required")
			continue
		case utf8.RuneCountInString(row.Name) > 100:
			skip(row.Name, "name must be at most 100 characters")
			continue
		case utf8.RuneCountInString(row.Description) > 500:
			skip(row.Name, "description must be at most 500 characters")
			continue
		}
		if _, dup := taken[key]; dup {
			skip(row.Name, "an ingredient with this name already exists")
			continue
		}
		ingredient := &models.Ingredient{Name: row.Name, Description: row.Description}
		if err := s.store.Ingredients.Create(ctx, ingredient); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				skip(row.Name, "an ingredient with this name already exists")
			} else {
				s.log.Error().Err(err).Str("name", row.Name).Msg("bulk ingredient create failed")
				skip(row.Name, "could not be created")
			}
			continue
		}
		taken[key] = struct{}{}
		res.CreatedIngredients = append(res.CreatedIngredients, toIngredientDTO(*ingredient))
	}
	res.SuccessCount = len(res.CreatedIngredients)
	res.SkippedCount = len(res.SkippedIngredients)
	return res, nil
}

func (s *CatalogService) checkNameFree(ctx context.Context, name string, self uint) error {
	existing, err := s.store.Ingredients.FindByName(ctx, name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Internal(err, "failed to load ingredients")
	}
	if existing.ID != self {
		return apperr.Conflict("ingredient '%s' already exists", existing.Name)
	}
	return nil
}

func ingredientWriteErr(err error, name string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict("ingredient '%s' already exists", name)
	}
	return apperr.Internal(err, "failed to save ingredient")
}

// ---- categories ----

func (s *CatalogService) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	categories, err := s.store.Categories.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load categories")
	}
	dtos := make([]CategoryDTO, 0, len(categories))
	for _, c := range categories {
		dtos = append(dtos, toCategoryDTO(c))
	}
	return dtos, nil
}

func (s *CatalogService) GetCategory(ctx context.Context, id uint) (*CategoryDetailDTO, error) {
	c, err := s.store.Categories.Get(ctx, id, store.WithProducts)
	if err != nil {
		return nil, lookupErr(err, "Category", id)
	}
	dto := toCategoryDetailDTO(*c)
	return &dto, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, in CategoryInput) (*CategoryDTO, error) {
	trimSpace(&in.Name, &in.Description)
	if err := invalid(fieldErrors(in)); err != nil {
		return nil, err
	}
	c := &models.Category{Name: in.Name, Description: in.Description}
	if err := s.store.Categories.Create(ctx, c); err != nil {
		return nil, apperr.Internal(err, "failed to create category")
	}
	dto := toCategoryDTO(*c)
	return &dto, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, id uint, in CategoryInput) (*CategoryDTO, error) {
	c, err := s.store.Categories.Get(ctx, id, 0)
	if err != nil {
		return nil, lookupErr(err, "Category", id)
	}
	trimSpace(&in.Name, &in.Description)
	if err := invalid(fieldErrors(in)); err != nil {
		return nil, err
	}
	c.Name = in.Name
	c.Description = in.Description
	if err := s.store.Categories.Save(ctx, c); err != nil {
		return nil, apperr.Internal(err, "failed to update category")
	}
	dto := toCategoryDTO(*c)
	return &dto, nil
}

// DeleteCategory refuses while products still belong to the category.
func (s *CatalogService) DeleteCategory(ctx context.Context, id uint) error {
	c, err := s.store.Categories.Get(ctx, id, 0)
	if err != nil {
		return lookupErr(err, "Category", id)
	}
	n, err := s.store.Products.CountByCategory(ctx, id)
	if err != nil {
		return apperr.Internal(err, "failed to check category usage")
	}
	if n > 0 {
		return apperr.Conflict("cannot delete category '%s': it has %d product(s)", c.Name, n)
	}
	if err := s.store.Categories.Delete(ctx, id); err != nil {
		return lookupErr(err, "Category", id)
	}
	return nil
}

func distinct(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
