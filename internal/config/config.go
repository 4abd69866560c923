package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	minAccessTTL  = 5 * time.Minute
	minRefreshTTL = 24 * time.Hour
)

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration

	StoreDriver string
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	JWTSecret      string
	JWTAccessTTL   time.Duration
	JWTIssuer      string
	JWTRefreshTTL  time.Duration
	JWTHeaderName  string
	JWTTokenPrefix string
	JWTRolesClaim  string
	JWTUserIDClaim string

	AuthorityPrefix      string
	RefreshSweepInterval time.Duration
	BcryptCost           int
	PhoneDefaultRegion   string

	CORSOrigins      []string
	RateLimitRPM     int
	AuthRateLimitRPM int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL string
	EventsQueue string

	SeedSuperAdminEmail    string
	SeedSuperAdminPassword string

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		StoreDriver:             strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:             getEnv("DATABASE_URL", ""),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", 2)),
		JWTSecret:               strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTAccessTTL:            getDuration("JWT_ACCESS_TTL", 24*time.Hour),
		JWTIssuer:               getEnv("JWT_ISSUER", "wine-ecommerce"),
		JWTRefreshTTL:           getDuration("JWT_REFRESH_TTL", 168*time.Hour),
		JWTHeaderName:           getEnv("JWT_HEADER_NAME", "Authorization"),
		JWTTokenPrefix:          getRawEnv("JWT_TOKEN_PREFIX", "Bearer "),
		JWTRolesClaim:           getEnv("JWT_ROLES_CLAIM", "roles"),
		JWTUserIDClaim:          getEnv("JWT_USER_ID_CLAIM", "userId"),
		AuthorityPrefix:         getEnv("AUTHORITY_PREFIX", "ROLE_"),
		RefreshSweepInterval:    getDuration("REFRESH_SWEEP_INTERVAL", time.Hour),
		BcryptCost:              getInt("BCRYPT_COST", 12),
		PhoneDefaultRegion:      strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", "FR")),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:        getInt("AUTH_RATE_LIMIT_RPM", 10),
		RedisAddr:               getEnv("REDIS_ADDR", ""),
		RedisPassword:           os.Getenv("REDIS_PASSWORD"),
		RedisDB:                 getInt("REDIS_DB", 0),
		RabbitMQURL:             getEnv("RABBITMQ_URL", ""),
		EventsQueue:             getEnv("EVENTS_QUEUE", "auth.events"),
		SeedSuperAdminEmail:     getEnv("SEED_SUPER_ADMIN_EMAIL", ""),
		SeedSuperAdminPassword:  os.Getenv("SEED_SUPER_ADMIN_PASSWORD"),
		LogLevel:                strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:               strings.ToLower(getEnv("LOG_FORMAT", "pretty")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS out of range: %d/%d", c.DBMinConns, c.DBMaxConns)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver)
	}

	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.JWTAccessTTL < minAccessTTL {
		return fmt.Errorf("JWT_ACCESS_TTL must be at least %s", minAccessTTL)
	}

	if c.JWTRefreshTTL < minRefreshTTL {
		return fmt.Errorf("JWT_REFRESH_TTL must be at least %s", minRefreshTTL)
	}

	required := []struct {
		name  string
		value string
	}{
		{"JWT_ISSUER", c.JWTIssuer},
		{"JWT_HEADER_NAME", c.JWTHeaderName},
		{"JWT_TOKEN_PREFIX", c.JWTTokenPrefix},
		{"JWT_ROLES_CLAIM", c.JWTRolesClaim},
		{"JWT_USER_ID_CLAIM", c.JWTUserIDClaim},
		{"AUTHORITY_PREFIX", c.AuthorityPrefix},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%s cannot be blank", field.name)
		}
	}

	if c.RefreshSweepInterval <= 0 {
		return fmt.Errorf("REFRESH_SWEEP_INTERVAL must be positive")
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}

	if (c.SeedSuperAdminEmail == "") != (c.SeedSuperAdminPassword == "") {
		return fmt.Errorf("SEED_SUPER_ADMIN_EMAIL and SEED_SUPER_ADMIN_PASSWORD must be set together")
	}

	switch c.LogFormat {
	case "pretty", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be pretty or json, got %q", c.LogFormat)
	}

	return nil
}

// SeedsSuperAdmin reports whether a bootstrap SUPER_ADMIN is configured.
func (c *Config) SeedsSuperAdmin() bool {
	return c.SeedSuperAdminEmail != "" && c.SeedSuperAdminPassword != ""
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

// getRawEnv keeps surrounding whitespace, which is significant for the
// token prefix.
func getRawEnv(key string, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
