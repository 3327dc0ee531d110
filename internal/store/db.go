package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/judyrop/tequilas-restaurant/internal/logger"
	"github.com/judyrop/tequilas-restaurant/models"
)

// Open connects to postgres (dsn is a libpq keyword string) or sqlite (dsn is
// a file path). Timestamps are written in UTC.
func Open(driver, dsn string, log zerolog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dialector = sqlite.Open(dsn + sep + "_foreign_keys=on")
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger: gormlogger.New(logger.GormWriter{Log: log}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	return db, nil
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&models.Product{}, "Ingredients", &models.ProductIngredient{}); err != nil {
		return fmt.Errorf("setup product ingredients: %w", err)
	}
	if err := db.SetupJoinTable(&models.Ingredient{}, "Products", &models.ProductIngredient{}); err != nil {
		return fmt.Errorf("setup ingredient products: %w", err)
	}
	if err := db.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.Category{},
		&models.Ingredient{},
		&models.Product{},
		&models.ProductIngredient{},
		&models.Order{},
		&models.OrderItem{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Store groups the per-aggregate repositories over one connection or transaction.
type Store struct {
	db          *gorm.DB
	Products    *ProductRepo
	Ingredients *IngredientRepo
	Categories  *CategoryRepo
	Orders      *OrderRepo
	Users       *UserRepo
}

func New(db *gorm.DB) *Store {
	return &Store{
		db:          db,
		Products:    &ProductRepo{db: db},
		Ingredients: &IngredientRepo{db: db},
		Categories:  &CategoryRepo{db: db},
		Orders:      &OrderRepo{db: db},
		Users:       &UserRepo{db: db},
	}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn against a Store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
