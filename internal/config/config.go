package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`

	DbDriver    string `mapstructure:"DB_DRIVER"`
	DbHost      string `mapstructure:"POSTGRES_HOST"`
	DbPort      string `mapstructure:"POSTGRES_PORT"`
	DbUser      string `mapstructure:"POSTGRES_USER"`
	DbPas       string `mapstructure:"POSTGRES_PASSWORD"`
	DbName      string `mapstructure:"POSTGRES_DB"`
	DbSSLMode   string `mapstructure:"POSTGRES_SSLMODE"`
	SqlitePath  string `mapstructure:"SQLITE_PATH"`
	SeedCatalog bool   `mapstructure:"SEED_CATALOG"`

	JwtKey      string `mapstructure:"JWT_KEY"`
	JwtIssuer   string `mapstructure:"JWT_ISSUER"`
	JwtAudience string `mapstructure:"JWT_AUDIENCE"`
	JwtTTLHours int    `mapstructure:"JWT_TTL_HOURS"`

	OidcIssuer   string `mapstructure:"OIDC_ISSUER"`
	OidcClientID string `mapstructure:"OIDC_CLIENT_ID"`

	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`

	StaticDir   string `mapstructure:"STATIC_DIR"`
	CorsOrigins string `mapstructure:"CORS_ORIGINS"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

var defaults = map[string]any{
	"SERVER_PORT":       "8080",
	"DB_DRIVER":         "postgres",
	"POSTGRES_HOST":     "postgres",
	"POSTGRES_PORT":     "5432",
	"POSTGRES_USER":     "postgres",
	"POSTGRES_PASSWORD": "postgres",
	"POSTGRES_DB":       "restaurant",
	"POSTGRES_SSLMODE":  "disable",
	"SQLITE_PATH":       "restaurant.db",
	"SEED_CATALOG":      true,
	"JWT_KEY":           "",
	"JWT_ISSUER":        "tequilas-restaurant",
	"JWT_AUDIENCE":      "tequilas-restaurant-web",
	"JWT_TTL_HOURS":     3,
	"OIDC_ISSUER":       "",
	"OIDC_CLIENT_ID":    "",
	"ADMIN_EMAIL":       "admin@site.com",
	"ADMIN_PASSWORD":    "",
	"STATIC_DIR":        "wwwroot",
	"CORS_ORIGINS":      "http://localhost:5173",
	"LOG_LEVEL":         "info",
	"LOG_FORMAT":        "json",
}

// Loader reads the configuration from the environment and, when a path is
// given, from a config file (.env, yaml, json) that can be watched for changes.
type Loader struct {
	v    *viper.Viper
	path string
	mu   sync.RWMutex
	cf   *Config
}

func NewLoader(path string) *Loader {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return &Loader{v: v, path: path}
}

// Load reads and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.path != "" {
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", l.path, err)
		}
	}
	cf := &Config{}
	if err := l.v.Unmarshal(cf); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cf.Validate(); err != nil {
		return nil, err
	}
	l.cf = cf
	return cf, nil
}

// Current returns the last successfully loaded configuration.
func (l *Loader) Current() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cf
}

// Watch calls onChange with the reloaded configuration whenever the config
// file changes. Reloads that fail validation are passed to onError and the
// previous configuration stays current. Without a config file Watch is a no-op.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	if l.path == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cf, err := l.Load()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cf)
	})
	l.v.WatchConfig()
}

func (c *Config) Validate() error {
	var errs []error
	switch c.DbDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DbDriver))
	}
	if len(c.JwtKey) < 32 {
		errs = append(errs, errors.New("JWT_KEY must be at least 32 bytes"))
	}
	if c.JwtTTLHours <= 0 {
		errs = append(errs, errors.New("JWT_TTL_HOURS must be positive"))
	}
	if (c.OidcIssuer == "") != (c.OidcClientID == "") {
		errs = append(errs, errors.New("OIDC_ISSUER and OIDC_CLIENT_ID must be set together"))
	}
	return errors.Join(errs...)
}

func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DbHost, c.DbUser, c.DbPas, c.DbName, c.DbPort, c.DbSSLMode)
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JwtTTLHours) * time.Hour
}

func (c *Config) OidcEnabled() bool {
	return c.OidcIssuer != ""
}

func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CorsOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
