package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/fintool")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("ENCRYPTION_KEY_BASE64", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=")
	t.Setenv("PLAID_CLIENT_ID", "client")
	t.Setenv("PLAID_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "sandbox", cfg.PlaidEnv)
	assert.Equal(t, []string{"transactions", "investments"}, cfg.PlaidProducts)
	assert.Equal(t, []string{"US"}, cfg.PlaidCountryCodes)
	assert.Equal(t, 100, cfg.SyncMaxPages)
	assert.Equal(t, 3, cfg.SyncMaxMutationRetries)
	assert.Equal(t, 30, cfg.InvestmentsLookbackDays)
	assert.Equal(t, 10000, cfg.CacheMaxEntries)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PLAID_ENV", "Production")
	t.Setenv("PLAID_PRODUCTS", "transactions, ")
	t.Setenv("SYNC_MAX_PAGES", " 7 ")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://app.example.com,https://admin.example.com")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.PlaidEnv)
	assert.Equal(t, []string{"transactions"}, cfg.PlaidProducts)
	assert.Equal(t, 7, cfg.SyncMaxPages)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORSAllowOrigins)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		field string
	}{
		{"missing database", "DATABASE_URL", "", "DatabaseURL"},
		{"short jwt secret", "JWT_SECRET", "short", "JWTSecret"},
		{"unknown plaid env", "PLAID_ENV", "development", "PlaidEnv"},
		{"unknown product", "PLAID_PRODUCTS", "transactions,identity", "PlaidProducts"},
		{"zero page cap", "SYNC_MAX_PAGES", "0", "SyncMaxPages"},
		{"unknown log level", "LOG_LEVEL", "verbose", "LogLevel"},
		{"bad redirect", "PLAID_REDIRECT_URI", "not a url", "PlaidRedirectURI"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoad_NoKeys(t *testing.T) {
	setRequired(t)
	t.Setenv("ENCRYPTION_KEY_BASE64", "")

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "EncryptionKeys")
}

func TestLoad_NonNumeric(t *testing.T) {
	setRequired(t)
	t.Setenv("RATE_LIMIT_BURST", "lots")

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "RATE_LIMIT_BURST")
}
