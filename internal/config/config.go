package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	DefaultTenant string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`

	AuthIssuer    string `mapstructure:"AUTH_ISSUER"`
	AuthAudience  string `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL   string `mapstructure:"AUTH_JWKS_URL"`
	AuthJWTSecret string `mapstructure:"AUTH_JWT_SECRET"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	SweepEnabled     bool `mapstructure:"SWEEP_ENABLED"`
	SweepHour        int  `mapstructure:"SWEEP_HOUR"`
	SweepConcurrency int  `mapstructure:"SWEEP_CONCURRENCY"`

	CriticalOverdueDays    int     `mapstructure:"CRITICAL_OVERDUE_DAYS"`
	DueSoonDays            int     `mapstructure:"DUE_SOON_DAYS"`
	BottleneckSharePercent int     `mapstructure:"BOTTLENECK_SHARE_PERCENT"`
	BottleneckTimeFactor   float64 `mapstructure:"BOTTLENECK_TIME_FACTOR"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("SWEEP_ENABLED", true)
	v.SetDefault("SWEEP_HOUR", 6)
	v.SetDefault("SWEEP_CONCURRENCY", 4)
	v.SetDefault("CRITICAL_OVERDUE_DAYS", 14)
	v.SetDefault("DUE_SOON_DAYS", 7)
	v.SetDefault("BOTTLENECK_SHARE_PERCENT", 20)
	v.SetDefault("BOTTLENECK_TIME_FACTOR", 1.5)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("DEFAULT_TENANT")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_JWT_SECRET")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("SWEEP_ENABLED")
	v.BindEnv("SWEEP_HOUR")
	v.BindEnv("SWEEP_CONCURRENCY")
	v.BindEnv("CRITICAL_OVERDUE_DAYS")
	v.BindEnv("DUE_SOON_DAYS")
	v.BindEnv("BOTTLENECK_SHARE_PERCENT")
	v.BindEnv("BOTTLENECK_TIME_FACTOR")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active, all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure JWT auth for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development,
// JWT verification material must be configured so real authentication is
// enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthJWKSURL == "" && c.AuthJWTSecret == "" {
		return fmt.Errorf(
			"AUTH_JWKS_URL or AUTH_JWT_SECRET must be set when ENV=%q. "+
				"Refusing to start without authentication configuration", c.Env)
	}
	if c.SweepHour < 0 || c.SweepHour > 23 {
		return fmt.Errorf("SWEEP_HOUR must be between 0 and 23, got %d", c.SweepHour)
	}
	if c.SweepConcurrency < 1 {
		return fmt.Errorf("SWEEP_CONCURRENCY must be at least 1, got %d", c.SweepConcurrency)
	}
	if c.BottleneckTimeFactor <= 0 {
		return fmt.Errorf("BOTTLENECK_TIME_FACTOR must be positive, got %v", c.BottleneckTimeFactor)
	}
	return nil
}
