package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/shopspring/decimal"

	"github.com/judyrop/tequilas-restaurant/internal/apperr"
	"github.com/judyrop/tequilas-restaurant/internal/service"
)

// ---- products ----

func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.Catalog.ListProducts(c.Request.Context())
	h.respond(c, http.StatusOK, products, err)
}

func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	product, err := h.Catalog.GetProduct(c.Request.Context(), id)
	h.respond(c, http.StatusOK, product, err)
}

func (h *Handler) CreateProduct(c *gin.Context) {
	in, upload, ok := h.productInput(c)
	if !ok {
		return
	}
	defer closeUpload(upload)
	product, err := h.Catalog.CreateProduct(c.Request.Context(), in, upload)
	h.respond(c, http.StatusCreated, product, err)
}

func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	in, upload, ok := h.productInput(c)
	if !ok {
		return
	}
	defer closeUpload(upload)
	product, err := h.Catalog.UpdateProduct(c.Request.Context(), id, in, upload)
	h.respond(c, http.StatusOK, product, err)
}

func (h *Handler) DeleteProduct(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	h.respond(c, http.StatusNoContent, nil, h.Catalog.DeleteProduct(c.Request.Context(), id))
}

func (h *Handler) AssignIngredients(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	var req struct {
		IngredientIDs []uint `json:"ingredientIds"`
	}
	if !h.bindJSON(c, &req) {
		return
	}
	product, err := h.Catalog.AssignIngredients(c.Request.Context(), id, req.IngredientIDs)
	h.respond(c, http.StatusOK, product, err)
}

func (h *Handler) FixImageURLs(c *gin.Context) {
	n, err := h.Catalog.FixImageURLs(c.Request.Context())
	h.respond(c, http.StatusOK, gin.H{"fixedCount": n}, err)
}

// productInput reads a product from a JSON body or from a multipart form with
// an optional imageFile part.
func (h *Handler) productInput(c *gin.Context) (service.ProductInput, *service.Upload, bool) {
	var in service.ProductInput
	if c.ContentType() == binding.MIMEJSON {
		return in, nil, h.bindJSON(c, &in)
	}

	fields := map[string]string{}
	in.Name = c.PostForm("name")
	in.Description = c.PostForm("description")
	if raw := strings.TrimSpace(c.PostForm("price")); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			fields["price"] = "must be a number"
		}
		in.Price = price
	}
	if raw := strings.TrimSpace(c.PostForm("stock")); raw != "" {
		stock, err := strconv.Atoi(raw)
		if err != nil {
			fields["stock"] = "must be an integer"
		}
		in.Stock = stock
	}
	if raw := strings.TrimSpace(c.PostForm("categoryId")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			fields["categoryId"] = "must be a positive integer"
		}
		in.CategoryID = uint(id)
	}
	for _, v := range c.PostFormArray("ingredientIds") {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 64)
			if err != nil || id == 0 {
				fields["ingredientIds"] = "must be positive integers"
				continue
			}
			in.IngredientIDs = append(in.IngredientIDs, uint(id))
		}
	}
	if len(fields) > 0 {
		writeError(c, h.Log, apperr.ValidationFields(fields))
		return in, nil, false
	}

	header, err := c.FormFile("imageFile")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return in, nil, true
	}
	if err != nil {
		badRequest(c, h.Log, "imageFile", "could not read upload")
		return in, nil, false
	}
	f, err := header.Open()
	if err != nil {
		writeError(c, h.Log, apperr.Internal(err, "failed to read upload"))
		return in, nil, false
	}
	return in, &service.Upload{Name: header.Filename, Body: f}, true
}

func closeUpload(u *service.Upload) {
	if u == nil {
		return
	}
	if cl, ok := u.Body.(io.Closer); ok {
		cl.Close()
	}
}

// ---- ingredients ----

func (h *Handler) ListIngredients(c *gin.Context) {
	ingredients, err := h.Catalog.ListIngredients(c.Request.Context())
	h.respond(c, http.StatusOK, ingredients, err)
}

func (h *Handler) GetIngredient(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	ingredient, err := h.Catalog.GetIngredient(c.Request.Context(), id)
	h.respond(c, http.StatusOK, ingredient, err)
}

func (h *Handler) CreateIngredient(c *gin.Context) {
	var in service.IngredientInput
	if !h.bindJSON(c, &in) {
		return
	}
	ingredient, err := h.Catalog.CreateIngredient(c.Request.Context(), in)
	h.respond(c, http.StatusCreated, ingredient, err)
}

func (h *Handler) UpdateIngredient(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	var in service.IngredientInput
	if !h.bindJSON(c, &in) {
		return
	}
	ingredient, err := h.Catalog.UpdateIngredient(c.Request.Context(), id, in)
	h.respond(c, http.StatusOK, ingredient, err)
}

func (h *Handler) DeleteIngredient(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	h.respond(c, http.StatusNoContent, nil, h.Catalog.DeleteIngredient(c.Request.Context(), id))
}

func (h *Handler) IngredientUsage(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	usage, err := h.Catalog.IngredientUsage(c.Request.Context(), id)
	h.respond(c, http.StatusOK, usage, err)
}

// BulkCreateIngredients takes a JSON array of ingredients.
func (h *Handler) BulkCreateIngredients(c *gin.Context) {
	var rows []service.IngredientInput
	if !h.bindJSON(c, &rows) {
		return
	}
	res, err := h.Catalog.BulkCreateIngredients(c.Request.Context(), rows)
	h.respond(c, http.StatusOK, res, err)
}

// ---- categories ----

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.Catalog.ListCategories(c.Request.Context())
	h.respond(c, http.StatusOK, categories, err)
}

func (h *Handler) GetCategory(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	category, err := h.Catalog.GetCategory(c.Request.Context(), id)
	h.respond(c, http.StatusOK, category, err)
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var in service.CategoryInput
	if !h.bindJSON(c, &in) {
		return
	}
	category, err := h.Catalog.CreateCategory(c.Request.Context(), in)
	h.respond(c, http.StatusCreated, category, err)
}

func (h *Handler) UpdateCategory(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	var in service.CategoryInput
	if !h.bindJSON(c, &in) {
		return
	}
	category, err := h.Catalog.UpdateCategory(c.Request.Context(), id, in)
	h.respond(c, http.StatusOK, category, err)
}

func (h *Handler) DeleteCategory(c *gin.Context) {
	id, ok := h.id(c)
	if !ok {
		return
	}
	h.respond(c, http.StatusNoContent, nil, h.Catalog.DeleteCategory(c.Request.Context(), id))
}
