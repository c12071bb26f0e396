package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion string

	// Chat table: single-table layout keyed (chatId, chatKey) with a GSI
	// projecting (chatKey, updatedAt) for recency-ordered room listings.
	ChatTable           string
	ChatKeyUpdatedIndex string

	// Connection table: keyed (connectionId) with a GSI on (userId).
	ConnectionTable     string
	ConnectionUserIndex string

	// WebSocket configuration
	WebSocketEndpoint string

	// Events
	EventBusName string
	EventsEnable bool

	// Authentication
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// Logging
	LogLevel string

	// Pagination defaults
	DefaultPageLimit int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),

		ChatTable:           getEnv("CHAT_TABLE", "chat"),
		ChatKeyUpdatedIndex: getEnv("CHAT_KEY_UPDATED_INDEX", "KeyUpdatedIndex"),

		ConnectionTable:     getEnv("CONNECTION_TABLE", "chat-connections"),
		ConnectionUserIndex: getEnv("CONNECTION_USER_INDEX", "UserIndex"),

		WebSocketEndpoint: getEnv("WEBSOCKET_ENDPOINT", ""),

		EventBusName: getEnv("EVENT_BUS_NAME", ""),
		EventsEnable: getEnvBool("EVENTS_ENABLE", false),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "chat-backend"),
		JWTAudience: getEnv("JWT_AUDIENCE", "chat-api"),

		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DefaultPageLimit: getEnvInt("DEFAULT_PAGE_LIMIT", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.ChatTable == "" {
			return fmt.Errorf("CHAT_TABLE is required")
		}
		if c.ConnectionTable == "" {
			return fmt.Errorf("CONNECTION_TABLE is required")
		}
		if c.EventsEnable && c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required when events are enabled")
		}
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
