package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
)

const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendMySQL  = "mysql"

	EnvironmentProduction = "production"
)

type Config struct {
	HTTPHost             string
	HTTPPort             string
	GRPCHost             string
	GRPCPort             string
	MySQLDSN             string
	JWTSecret            string
	JWTAccessTokenTTL    time.Duration
	Environment          string
	LogLevel             string
	LogFormat            string
	APIKeyBcryptCost     int
	MaxActiveKeysPerUser int
	RateLimitBackend     string
	RateLimitSweepEvery  time.Duration
	MetricsEnabled       bool
	PasswordPolicy       PasswordPolicy
}

type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

func (p PasswordPolicy) Validate(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasNumber = true
		case unicode.IsPunct(ch) || unicode.IsSymbol(ch):
			hasSpecial = true
		}
	}

	var missing []string
	if p.RequireUppercase && !hasUpper {
		missing = append(missing, "uppercase letter")
	}
	if p.RequireLowercase && !hasLower {
		missing = append(missing, "lowercase letter")
	}
	if p.RequireNumber && !hasNumber {
		missing = append(missing, "number")
	}
	if p.RequireSpecial && !hasSpecial {
		missing = append(missing, "special character")
	}

	if len(missing) > 0 {
		return fmt.Errorf("password must contain at least one: %s", strings.Join(missing, ", "))
	}

	return nil
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignores error if not found)
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	backend := strings.ToLower(getEnv("RATE_LIMIT_BACKEND", RateLimitBackendMemory))
	if backend != RateLimitBackendMemory && backend != RateLimitBackendMySQL {
		return nil, fmt.Errorf("RATE_LIMIT_BACKEND must be %q or %q, got %q", RateLimitBackendMemory, RateLimitBackendMySQL, backend)
	}

	cost, err := bcryptCost()
	if err != nil {
		return nil, err
	}

	return &Config{
		HTTPHost:             getEnv("HTTP_HOST", "0.0.0.0"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		GRPCHost:             getEnv("GRPC_HOST", "0.0.0.0"),
		GRPCPort:             getEnv("GRPC_PORT", "9090"),
		MySQLDSN:             mysqlDSN,
		JWTSecret:            jwtSecret,
		JWTAccessTokenTTL:    getDurationEnv("JWT_ACCESS_TOKEN_TTL", 30*time.Minute),
		Environment:          getEnv("ENVIRONMENT", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
		APIKeyBcryptCost:     cost,
		MaxActiveKeysPerUser: getIntEnv("MAX_ACTIVE_KEYS_PER_USER", 10),
		RateLimitBackend:     backend,
		RateLimitSweepEvery:  getDurationEnv("RATE_LIMIT_SWEEP_INTERVAL", 10*time.Minute),
		MetricsEnabled:       getBoolEnv("METRICS_ENABLED", true),
		PasswordPolicy:       loadPasswordPolicy(),
	}, nil
}

// LoadForCLI reads only what the admin commands need: the database and the
// key settings. JWT_SECRET is not required.
func LoadForCLI() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := strings.TrimSpace(os.Getenv("MYSQL_DSN"))
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	cost, err := bcryptCost()
	if err != nil {
		return nil, err
	}

	return &Config{
		MySQLDSN:             mysqlDSN,
		Environment:          getEnv("ENVIRONMENT", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "text"),
		APIKeyBcryptCost:     cost,
		MaxActiveKeysPerUser: getIntEnv("MAX_ACTIVE_KEYS_PER_USER", 10),
	}, nil
}

func bcryptCost() (int, error) {
	cost := getIntEnv("APIKEY_BCRYPT_COST", 10)
	if cost < 4 || cost > 31 {
		return 0, fmt.Errorf("APIKEY_BCRYPT_COST must be between 4 and 31, got %d", cost)
	}
	return cost, nil
}

func (c *Config) DSN() string {
	return c.MySQLDSN
}

// Debug reports whether internal error details may be exposed to callers.
func (c *Config) Debug() bool {
	return !strings.EqualFold(c.Environment, EnvironmentProduction)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func loadPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        getIntEnv("PASSWORD_MIN_LENGTH", 8),
		RequireUppercase: getBoolEnv("PASSWORD_REQUIRE_UPPERCASE", false),
		RequireLowercase: getBoolEnv("PASSWORD_REQUIRE_LOWERCASE", false),
		RequireNumber:    getBoolEnv("PASSWORD_REQUIRE_NUMBER", false),
		RequireSpecial:   getBoolEnv("PASSWORD_REQUIRE_SPECIAL", false),
	}
}
