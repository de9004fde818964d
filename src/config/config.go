package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Port        string `validate:"required,numeric"`
	DatabaseURL string `validate:"required"`
	JWTSecret   string `validate:"required,min=16"`
	LogLevel    string `validate:"oneof=trace debug info warn error"`
	LogFormat   string `validate:"oneof=console json"`

	EncryptionActiveKeyID string
	EncryptionKeys        string `validate:"required_without=EncryptionKey"`
	EncryptionKey         string `validate:"required_without=EncryptionKeys"`

	PlaidClientID     string   `validate:"required"`
	PlaidSecret       string   `validate:"required"`
	PlaidEnv          string   `validate:"oneof=sandbox production"`
	PlaidProducts     []string `validate:"min=1,dive,oneof=transactions investments"`
	PlaidCountryCodes []string `validate:"min=1,dive,len=2"`
	PlaidClientName   string   `validate:"required"`
	PlaidLanguage     string   `validate:"required"`
	PlaidRedirectURI  string   `validate:"omitempty,url"`

	SyncMaxPages            int `validate:"min=1"`
	SyncMaxMutationRetries  int `validate:"min=0"`
	InvestmentsLookbackDays int `validate:"min=1,max=730"`

	CORSAllowOrigins   []string `validate:"min=1"`
	RateLimitPerSecond int      `validate:"min=1"`
	RateLimitBurst     int      `validate:"min=1"`
	CacheMaxEntries    int      `validate:"min=1"`
}

// Load reads the environment, after a .env file if one is present, and
// validates the result.
func Load() (Config, error) {
	// Load .env file if present
	_ = godotenv.Load()

	cfg, err := fromEnv()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromEnv() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", "console")),

		EncryptionActiveKeyID: getEnv("ENCRYPTION_ACTIVE_KEY_ID", ""),
		EncryptionKeys:        getEnv("ENCRYPTION_KEYS", ""),
		EncryptionKey:         getEnv("ENCRYPTION_KEY_BASE64", ""),

		PlaidClientID:     getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:       getEnv("PLAID_SECRET", ""),
		PlaidEnv:          strings.ToLower(getEnv("PLAID_ENV", "sandbox")),
		PlaidProducts:     getListEnv("PLAID_PRODUCTS", []string{"transactions", "investments"}),
		PlaidCountryCodes: getListEnv("PLAID_COUNTRY_CODES", []string{"US"}),
		PlaidClientName:   getEnv("PLAID_CLIENT_NAME", "Fintool"),
		PlaidLanguage:     getEnv("PLAID_LANGUAGE", "en"),
		PlaidRedirectURI:  getEnv("PLAID_REDIRECT_URI", ""),

		CORSAllowOrigins: getListEnv("CORS_ALLOW_ORIGINS", []string{"http://localhost:3000"}),
	}

	ints := []struct {
		key      string
		fallback int
		dst      *int
	}{
		{"SYNC_MAX_PAGES", 100, &cfg.SyncMaxPages},
		{"SYNC_MAX_MUTATION_RETRIES", 3, &cfg.SyncMaxMutationRetries},
		{"INVESTMENTS_LOOKBACK_DAYS", 30, &cfg.InvestmentsLookbackDays},
		{"RATE_LIMIT_PER_SECOND", 2, &cfg.RateLimitPerSecond},
		{"RATE_LIMIT_BURST", 5, &cfg.RateLimitBurst},
		{"CACHE_MAX_ENTRIES", 10000, &cfg.CacheMaxEntries},
	}
	for _, field := range ints {
		v, err := getIntEnv(field.key, field.fallback)
		if err != nil {
			return Config{}, err
		}
		*field.dst = v
	}

	return cfg, nil
}

// Validate checks the struct tags and reports every failing field by name.
func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(fields, ", "))
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalidConfig, key)
	}
	return n, nil
}

func getListEnv(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
