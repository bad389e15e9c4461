package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	GRPC     GRPCConfig     `koanf:"grpc"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Upload   UploadConfig   `koanf:"upload"`
	Security SecurityConfig `koanf:"security"`
	Weather  WeatherConfig  `koanf:"weather"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Address         string        `koanf:"address"` // overrides Port when set (e.g., "127.0.0.1:5000")
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ListenAddress is the address the HTTP server binds.
func (s ServerConfig) ListenAddress() string {
	if s.Address != "" {
		return s.Address
	}
	return ":" + strconv.Itoa(s.Port)
}

// GRPCConfig contains gRPC server settings.
type GRPCConfig struct {
	Address string `koanf:"address"` // gRPC server listen address (e.g., ":50051"); empty disables it
}

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// DatabaseConfig selects and configures the store backend.
type DatabaseConfig struct {
	Driver        string `koanf:"driver"`
	Path          string `koanf:"path"` // SQLite database file path
	MongoURI      string `koanf:"mongo_uri"`
	MongoDatabase string `koanf:"mongo_database"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret     string        `koanf:"jwt_secret"`
	TokenTTL      time.Duration `koanf:"token_ttl"`
	BcryptCost    int           `koanf:"bcrypt_cost"`
	ResetTokenTTL time.Duration `koanf:"reset_token_ttl"`
}

const (
	UploadLocal = "local"
	UploadS3    = "s3"
)

// UploadConfig selects where report images are stored.
type UploadConfig struct {
	Backend   string `koanf:"backend"`
	Dir       string `koanf:"dir"`
	S3Bucket  string `koanf:"s3_bucket"`
	S3Region  string `koanf:"s3_region"`
	S3Prefix  string `koanf:"s3_prefix"`
	S3BaseURL string `koanf:"s3_base_url"`
}

// SecurityConfig contains CORS and rate limiting settings.
type SecurityConfig struct {
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// WeatherConfig configures the OpenWeather proxy. An empty APIKey disables it.
type WeatherConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// devJWTSecret is only ever used by LoadWithDefaults.
const devJWTSecret = "dev-secret-change-me"

// Load loads configuration from defaults, an optional YAML file and environment variables.
// JWT_SECRET must be set.
func Load() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set; required for production")
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but uses a safe default for JWT_SECRET in development.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = devJWTSecret
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverMongo:
		if c.Database.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required when DB_DRIVER=mongo"))
		}
		if c.Database.MongoDatabase == "" {
			errs = append(errs, errors.New("MONGODB_DATABASE must not be empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q (want sqlite or mongo)", c.Database.Driver))
	}
	switch c.Upload.Backend {
	case UploadLocal:
		if c.Upload.Dir == "" {
			errs = append(errs, errors.New("UPLOAD_DIR must not be empty"))
		}
	case UploadS3:
		if c.Upload.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required when UPLOAD_BACKEND=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown UPLOAD_BACKEND %q (want local or s3)", c.Upload.Backend))
	}
	if c.Server.Address == "" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Server.Port))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST %d out of range 4..31", c.Auth.BcryptCost))
	}
	if c.Security.RateLimitReqs <= 0 || c.Security.RateLimitWindow <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	db := c.Database.Path
	if c.Database.Driver == DriverMongo {
		db = c.Database.MongoDatabase + "@" + maskURI(c.Database.MongoURI)
	}
	weather := "disabled"
	if c.Weather.APIKey != "" {
		weather = "enabled"
	}
	return fmt.Sprintf("Config{HTTP: %s, gRPC: %s, DB: %s(%s), Upload: %s, Weather: %s, Auth: *** (masked) ***}",
		c.Server.ListenAddress(), c.GRPC.Address, c.Database.Driver, db, c.Upload.Backend, weather)
}

// maskURI hides the userinfo part of a connection string.
func maskURI(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://***@" + rest[at+1:]
	}
	return uri
}
