package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds everything the API and worker read from the environment.
type Config struct {
	// PaystackSecretKey is the shared HMAC secret for webhook signatures. Required.
	PaystackSecretKey string
	// SessionSecret signs admin session tokens. Required for the admin API.
	SessionSecret string

	PaymentsTable   string
	OrdersTable     string
	InventoryTable  string
	ProductsTable   string
	FlashSalesTable string

	// ReplayQueueURL is the SQS queue failed webhook reconciliations are
	// republished to. Optional; empty disables replay.
	ReplayQueueURL string

	// SessionTTL bounds how old an admin session token may be.
	SessionTTL time.Duration
}

// Load reads configuration from environment variables and validates it.
func Load() (Config, error) {
	cfg := Config{
		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		SessionSecret:     os.Getenv("NEXTAUTH_SECRET"),
		PaymentsTable:     getString("PAYMENTS_TABLE", "payments"),
		OrdersTable:       getString("ORDERS_TABLE", "orders"),
		InventoryTable:    getString("INVENTORY_TABLE", "inventory"),
		ProductsTable:     getString("PRODUCTS_TABLE", "products"),
		FlashSalesTable:   getString("FLASH_SALES_TABLE", "flash-sales"),
		ReplayQueueURL:    os.Getenv("WEBHOOK_REPLAY_QUEUE_URL"),
		SessionTTL:        24 * time.Hour,
	}

	if ttlStr := os.Getenv("SESSION_TTL"); ttlStr != "" {
		ttl, err := time.ParseDuration(ttlStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = ttl
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c Config) Validate() error {
	if c.PaystackSecretKey == "" {
		return fmt.Errorf("PAYSTACK_SECRET_KEY is required")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("NEXTAUTH_SECRET is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	return nil
}

// getString reads an environment variable or returns a default.
func getString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
