package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Port        int    `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DatabaseTLS bool   `envconfig:"DATABASE_TLS" default:"false"`
	Version     string `envconfig:"VERSION" default:"dev"`

	JWTSecret       string        `envconfig:"JWT_SECRET" required:"true"`
	AccessTokenTTL  time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"15m"`
	RefreshTokenTTL time.Duration `envconfig:"REFRESH_TOKEN_TTL" default:"720h"`
	BcryptCost      int           `envconfig:"BCRYPT_COST" default:"12"`

	TokenStatsInterval time.Duration `envconfig:"TOKEN_STATS_INTERVAL" default:"5m"`

	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000,http://127.0.0.1:3000"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitMax    int           `envconfig:"RATE_LIMIT_MAX" default:"120"`
	RedisURL        string        `envconfig:"REDIS_URL" default:""`
	TrustedProxies  []string      `envconfig:"TRUSTED_PROXIES" default:""`

	UploadDir      string `envconfig:"UPLOAD_DIR" default:"uploads"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"5242880"`

	SuperadminEmail    string `envconfig:"SUPERADMIN_EMAIL" default:""`
	SuperadminPassword string `envconfig:"SUPERADMIN_PASSWORD" default:""`
}

// Load reads configuration from environment variables into a Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
