package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/pinkalP4120/order-metafields/internal/domain"
)

type Config struct {
	Port           string
	Environment    string
	LogLevel       string
	Database       DatabaseConfig
	Shopify        ShopifyConfig
	Metafields     MetafieldConfig
	API            APIConfig
	AllowedOrigins []string // CORS_ALLOWED_ORIGINS, comma separated; "*" allows any origin
}

type DatabaseConfig struct {
	Host     string // empty means submissions are kept in memory
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Enabled reports whether a Postgres database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

type ShopifyConfig struct {
	ShopDomain  string
	AccessToken string
	APIVersion  string
	Backend     string // "rest" (go-shopify) or "graphql"
	OrderLimit  int    // orders fetched per name lookup
	OrderStatus string // status filter for the name lookup ("any", "open", ...)
}

// MetafieldConfig parameterizes how a submission is written onto the order
type MetafieldConfig struct {
	Namespace       string
	Mode            domain.StorageMode
	DetailsKey      domain.DetailsKey
	Merge           domain.MergeStrategy
	RejectDuplicate bool
	EscapeHTML      bool
}

type APIConfig struct {
	AdminKeyHash string // bcrypt hash of the admin API key; empty disables /v1/admin
}

const (
	BackendREST    = "rest"
	BackendGraphQL = "graphql"
)

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	// Set defaults
	viper.SetDefault("PORT", "5000")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read .env file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	orderLimit, err := getIntOrViper("ORDER_LOOKUP_LIMIT", 50)
	if err != nil {
		return nil, err
	}
	rejectDuplicate, err := getBoolOrViper("REJECT_DUPLICATE_SUBMISSIONS", true)
	if err != nil {
		return nil, err
	}
	escapeHTML, err := getBoolOrViper("ESCAPE_HTML", true)
	if err != nil {
		return nil, err
	}

	shopDomain := getEnvOrViper("SHOPIFY_SHOP_DOMAIN", "")
	if shopDomain == "" {
		shopDomain = getEnvOrViper("SHOPIFY_STORE", "")
	}

	cfg := &Config{
		Port:        getEnvOrViper("PORT", "5000"),
		Environment: getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrViper("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:     strings.TrimSpace(getEnvOrViper("DB_HOST", "")),
			Port:     getEnvOrViper("DB_PORT", "5432"),
			User:     getEnvOrViper("DB_USER", "postgres"),
			Password: getEnvOrViper("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrViper("DB_NAME", "order_metafields"),
			SSLMode:  getEnvOrViper("DB_SSLMODE", "disable"),
		},
		Shopify: ShopifyConfig{
			ShopDomain:  strings.TrimSpace(shopDomain),
			AccessToken: strings.TrimSpace(getEnvOrViper("SHOPIFY_ACCESS_TOKEN", "")),
			APIVersion:  getEnvOrViper("SHOPIFY_API_VERSION", "2024-10"),
			Backend:     strings.ToLower(getEnvOrViper("SHOPIFY_BACKEND", BackendREST)),
			OrderLimit:  orderLimit,
			OrderStatus: getEnvOrViper("ORDER_LOOKUP_STATUS", "any"),
		},
		Metafields: MetafieldConfig{
			Namespace:       getEnvOrViper("METAFIELD_NAMESPACE", "custom"),
			Mode:            domain.StorageMode(strings.ToLower(getEnvOrViper("STORAGE_MODE", string(domain.StorageModeJSON)))),
			DetailsKey:      domain.DetailsKey(strings.ToLower(getEnvOrViper("DETAILS_KEY", string(domain.DetailsKeyVariantLabel)))),
			Merge:           domain.MergeStrategy(strings.ToLower(getEnvOrViper("DETAILS_MERGE", string(domain.MergeStrategyMerge)))),
			RejectDuplicate: rejectDuplicate,
			EscapeHTML:      escapeHTML,
		},
		API: APIConfig{
			AdminKeyHash: strings.TrimSpace(getEnvOrViper("ADMIN_API_KEY_HASH", "")),
		},
		AllowedOrigins: splitList(getEnvOrViper("CORS_ALLOWED_ORIGINS", "*")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and enumerated settings
func (c *Config) Validate() error {
	if c.Shopify.ShopDomain == "" {
		return fmt.Errorf("SHOPIFY_SHOP_DOMAIN (or SHOPIFY_STORE) is required")
	}
	if c.Shopify.AccessToken == "" {
		return fmt.Errorf("SHOPIFY_ACCESS_TOKEN is required")
	}
	if c.Shopify.Backend != BackendREST && c.Shopify.Backend != BackendGraphQL {
		return fmt.Errorf("SHOPIFY_BACKEND must be %q or %q, got %q", BackendREST, BackendGraphQL, c.Shopify.Backend)
	}
	if c.Shopify.OrderLimit < 1 || c.Shopify.OrderLimit > 250 {
		return fmt.Errorf("ORDER_LOOKUP_LIMIT must be between 1 and 250, got %d", c.Shopify.OrderLimit)
	}
	if c.Metafields.Namespace == "" {
		return fmt.Errorf("METAFIELD_NAMESPACE must not be empty")
	}
	if !c.Metafields.Mode.IsValid() {
		return fmt.Errorf("STORAGE_MODE must be %q or %q, got %q", domain.StorageModeJSON, domain.StorageModeText, c.Metafields.Mode)
	}
	if !c.Metafields.DetailsKey.IsValid() {
		return fmt.Errorf("DETAILS_KEY must be %q or %q, got %q", domain.DetailsKeyVariantLabel, domain.DetailsKeyVariantID, c.Metafields.DetailsKey)
	}
	if !c.Metafields.Merge.IsValid() {
		return fmt.Errorf("DETAILS_MERGE must be %q or %q, got %q", domain.MergeStrategyMerge, domain.MergeStrategyReplace, c.Metafields.Merge)
	}
	return nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func getIntOrViper(key string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(getEnvOrViper(key, ""))
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return n, nil
}

func getBoolOrViper(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(getEnvOrViper(key, ""))
	if raw == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false, got %q", key, raw)
	}
	return b, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
