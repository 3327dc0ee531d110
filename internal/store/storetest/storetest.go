// Package storetest provides migrated sqlite databases for tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/judyrop/tequilas-restaurant/internal/store"
	"github.com/judyrop/tequilas-restaurant/models"
)

// Open returns a migrated database in a file under t.TempDir. It is closed
// when the test ends.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := store.Open("sqlite", filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// CreateUser stores a user holding roles and returns it with Roles loaded.
func CreateUser(t testing.TB, db *gorm.DB, name string, roles ...string) *models.User {
	t.Helper()
	s := store.New(db)
	user := &models.User{UserName: name, Email: name + "@example.com"}
	require.NoError(t, s.Users.Create(t.Context(), user))
	for _, r := range roles {
		role, err := s.Users.EnsureRole(t.Context(), r)
		require.NoError(t, err)
		require.NoError(t, s.Users.AddRole(t.Context(), user, role))
	}
	user, err := s.Users.FindByID(t.Context(), user.ID)
	require.NoError(t, err)
	return user
}

func CreateCategory(t testing.TB, db *gorm.DB, name string) *models.Category {
	t.Helper()
	c := &models.Category{Name: name}
	require.NoError(t, store.New(db).Categories.Create(t.Context(), c))
	return c
}

func CreateProduct(t testing.TB, db *gorm.DB, categoryID uint, name, price string) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Price: decimal.RequireFromString(price), Stock: 10, CategoryID: categoryID}
	require.NoError(t, store.New(db).Products.Create(t.Context(), p))
	return p
}

func CreateIngredient(t testing.TB, db *gorm.DB, name string) *models.Ingredient {
	t.Helper()
	i := &models.Ingredient{Name: name}
	require.NoError(t, store.New(db).Ingredients.Create(t.Context(), i))
	return i
}
