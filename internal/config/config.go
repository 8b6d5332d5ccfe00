package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

// Insecure default values that must never reach production.
var insecureDefaults = map[string]bool{
	"change-me":                            true,
	"your-api-key":                         true,
	"your-secret-key-change-in-production": true,
	"":                                     true,
}

type Config struct {
	Server      ServerConfig
	Virtualizor VirtualizorConfig
	Mongo       MongoConfig
	Dashboard   DashboardConfig
	APIKey      string
}

type ServerConfig struct {
	Port string
	Mode string
}

// VirtualizorConfig holds the two upstream credential pairs. The admin scope
// manages servers and users; the tenant-facing cloud scope signs up end users.
type VirtualizorConfig struct {
	AdminBaseURL string
	AdminAPIKey  string
	AdminAPIPass string
	CloudBaseURL string
	CloudAPIKey  string
	CloudAPIPass string
	OSImageID    int
}

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// DashboardConfig is the login for the records dashboard API.
type DashboardConfig struct {
	Email     string
	Password  string
	JWTSecret string
}

func Load() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8000"),
			Mode: getEnv("GIN_MODE", "release"),
		},
		Virtualizor: VirtualizorConfig{
			AdminBaseURL: getEnv("ADMIN_VIRT_URL", ""),
			AdminAPIKey:  getEnv("ADMIN_API_KEY", ""),
			AdminAPIPass: getEnv("ADMIN_API_PASS", ""),
			CloudBaseURL: getEnv("CLOUD_VIRT_URL", ""),
			CloudAPIKey:  getEnv("CLOUD_API_KEY", ""),
			CloudAPIPass: getEnv("CLOUD_API_PASS", ""),
			OSImageID:    getEnvInt("VIRT_OS_IMAGE_ID", 1017),
		},
		Mongo: MongoConfig{
			URI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:   getEnv("MONGO_DB", "tradecopia"),
			Collection: getEnv("MONGO_COLLECTION", "vps_records"),
		},
		Dashboard: DashboardConfig{
			Email:     getEnv("LOGIN_EMAIL", "admin@tradecopia.local"),
			Password:  getEnv("LOGIN_PASSWORD", ""),
			JWTSecret: getEnv("JWT_SECRET_KEY", ""),
		},
		APIKey: getEnv("API_KEY", ""),
	}

	// Do not log credentials here.
	log.Printf("[config] VPS Service loaded: port=%s mongo=%s/%s admin=%s cloud=%s",
		cfg.Server.Port, cfg.Mongo.Database, cfg.Mongo.Collection,
		cfg.Virtualizor.AdminBaseURL, cfg.Virtualizor.CloudBaseURL)

	return cfg
}

// Validate checks that required secrets are set and not left at known
// insecure values.
func (c *Config) Validate() error {
	if insecureDefaults[c.APIKey] {
		return fmt.Errorf("API_KEY must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.APIKey) < 16 {
		return fmt.Errorf("API_KEY must be at least 16 characters long")
	}

	if insecureDefaults[c.Dashboard.JWTSecret] {
		return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.Dashboard.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
	}

	if c.Dashboard.Password == "" {
		return fmt.Errorf("LOGIN_PASSWORD must be set")
	}

	if c.Virtualizor.AdminBaseURL == "" || c.Virtualizor.CloudBaseURL == "" {
		return fmt.Errorf("ADMIN_VIRT_URL and CLOUD_VIRT_URL must be set")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
