package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"gorm.io/gorm"

	"github.com/judyrop/tequilas-restaurant/internal/api"
	"github.com/judyrop/tequilas-restaurant/internal/auth"
	"github.com/judyrop/tequilas-restaurant/internal/config"
	"github.com/judyrop/tequilas-restaurant/internal/images"
	"github.com/judyrop/tequilas-restaurant/internal/logger"
	"github.com/judyrop/tequilas-restaurant/internal/service"
	"github.com/judyrop/tequilas-restaurant/internal/store"
	"github.com/judyrop/tequilas-restaurant/models"
)

const serviceName = "tequilas-restaurant"

// App is everything SetupRouter needs. OIDC is nil when external sign-in is off.
type App struct {
	DB     *gorm.DB
	Config *config.Config
	Log    zerolog.Logger
	Files  afero.Fs
	OIDC   auth.IDTokenVerifier
}

func main() {
	loader := config.NewLoader(os.Getenv("CONFIG_FILE"))
	cfg, err := loader.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(serviceName, cfg.LogLevel, cfg.LogFormat)

	dsn := cfg.PostgresDSN()
	if cfg.DbDriver == "sqlite" {
		dsn = cfg.SqlitePath
	}
	db, err := store.Open(cfg.DbDriver, dsn, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := store.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	ctx := context.Background()
	if cfg.SeedCatalog {
		seeded, err := store.New(db).SeedCatalog(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to seed catalog")
		}
		if seeded {
			log.Info().Msg("catalog seeded")
		}
	}
	if err := service.NewIdentityService(store.New(db), nil, nil, log).EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure admin account")
	}

	app := App{DB: db, Config: cfg, Log: log, Files: afero.NewOsFs()}
	if cfg.OidcEnabled() {
		verifier, err := initOIDC(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to set up oidc")
		}
		app.OIDC = verifier
	}

	loader.Watch(func(c *config.Config) {
		lvl := logger.SetLevel(c.LogLevel)
		log.Info().Str("level", lvl.String()).Msg("configuration reloaded")
	}, func(err error) {
		log.Warn().Err(err).Msg("configuration reload rejected")
	})

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           SetupRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	stop, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-stop.Done()

	shutdownCtx, done := context.WithTimeout(ctx, 10*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}

func initOIDC(ctx context.Context, cfg *config.Config) (auth.IDTokenVerifier, error) {
	verifier, err := auth.NewOIDCVerifier(ctx, cfg.OidcIssuer, cfg.OidcClientID)
	if err != nil {
		return nil, err
	}
	return verifier, nil
}

func SetupRouter(app App) *gin.Engine {
	cfg := app.Config
	st := store.New(app.DB)
	tokens := auth.NewTokenIssuer([]byte(cfg.JwtKey), cfg.JwtIssuer, cfg.JwtAudience, cfg.TokenTTL())
	imgs := images.NewStore(app.Files, cfg.StaticDir)
	h := &api.Handler{
		Orders:   service.NewOrderService(st, app.Log),
		Catalog:  service.NewCatalogService(st, imgs, app.Log),
		Identity: service.NewIdentityService(st, tokens, app.OIDC, app.Log),
		Log:      app.Log,
	}

	r := gin.New()
	r.Use(api.RequestID(), api.Recovery(app.Log))
	if origins := cfg.AllowedOrigins(); len(origins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	r.Use(api.ParseClaims(tokens, app.Log), api.AccessLog(app.Log))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if err := st.Ping(c.Request.Context()); err != nil {
			app.Log.Error().Err(err).Msg("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Uploaded product images
	r.StaticFS("/images", imgs.FileSystem())

	v := r.Group("/api")
	authed := api.RequireAuth()
	adminOnly := api.RequireRole(models.RoleAdmin)

	v.POST("/auth/register", h.Register)
	v.POST("/auth/login", h.Login)
	v.POST("/auth/login/oidc", h.LoginWithIDToken)
	v.GET("/auth/me", authed, h.Me)

	// Storefront
	v.GET("/products", h.ListProducts)
	v.GET("/products/:id", h.GetProduct)
	v.GET("/categories", h.ListCategories)
	v.GET("/categories/:id", h.GetCategory)
	v.GET("/ingredients", h.ListIngredients)

	// Orders
	v.POST("/orders", authed, h.CreateOrder)
	v.GET("/orders/mine", authed, h.MyOrders)
	v.GET("/orders/:id", authed, h.OrderByID)
	v.GET("/orders", authed, adminOnly, h.AllOrders)

	// Back office
	adm := v.Group("/admin", authed, adminOnly)
	adm.GET("/products", h.ListProducts)
	adm.GET("/products/:id", h.GetProduct)
	adm.POST("/products", h.CreateProduct)
	adm.PUT("/products/:id", h.UpdateProduct)
	adm.DELETE("/products/:id", h.DeleteProduct)
	adm.POST("/products/:id/ingredients", h.AssignIngredients)
	adm.POST("/products/fix-image-urls", h.FixImageURLs)

	adm.GET("/ingredients", h.ListIngredients)
	adm.GET("/ingredients/:id", h.GetIngredient)
	adm.GET("/ingredients/:id/usage", h.IngredientUsage)
	adm.POST("/ingredients", h.CreateIngredient)
	adm.POST("/ingredients/bulk", h.BulkCreateIngredients)
	adm.PUT("/ingredients/:id", h.UpdateIngredient)
	adm.DELETE("/ingredients/:id", h.DeleteIngredient)

	adm.POST("/categories", h.CreateCategory)
	adm.PUT("/categories/:id", h.UpdateCategory)
	adm.DELETE("/categories/:id", h.DeleteCategory)

	return r
}
