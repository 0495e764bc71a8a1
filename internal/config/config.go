package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// defaultScopes are the OAuth scopes requested for the impersonated service
// identity: read-only access to spaces, messages, and Drive-backed files.
var defaultScopes = []string{
	"https://www.googleapis.com/auth/chat.spaces.readonly",
	"https://www.googleapis.com/auth/chat.messages.readonly",
	"https://www.googleapis.com/auth/drive.readonly",
}

type Config struct {
	Environment string

	DBHost     string
	DBPort     string
	DBUsername string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// CredentialsFile points at the service-account JSON key used to
	// impersonate each synced account.
	CredentialsFile string
	Scopes          []string

	// Accounts is the list of account emails swept, in order.
	Accounts []string

	StorageDir         string
	MaxAttachmentBytes int64
	AccountDelay       time.Duration
	DownloadTimeout    time.Duration
	Timezone           string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("CHATVAULT_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	maxMB, err := getEnvInt("CHATVAULT_MAX_ATTACHMENT_MB", 50)
	if err != nil {
		return nil, err
	}
	delaySeconds, err := getEnvInt("CHATVAULT_ACCOUNT_DELAY_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	downloadTimeoutSeconds, err := getEnvInt("CHATVAULT_DOWNLOAD_TIMEOUT_SECONDS", 60)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Environment:        env,
		DBHost:             getEnvOrDefault("CHATVAULT_DB_HOST", "localhost"),
		DBPort:             getEnvOrDefault("CHATVAULT_DB_PORT", "5432"),
		DBUsername:         getEnvOrDefault("CHATVAULT_DB_USER", "chatvault"),
		DBPassword:         os.Getenv("CHATVAULT_DB_PASSWORD"),
		DBName:             getEnvOrDefault("CHATVAULT_DB_NAME", "chatvault"),
		DBSSLMode:          getEnvOrDefault("CHATVAULT_DB_SSLMODE", "disable"),
		CredentialsFile:    os.Getenv("CHATVAULT_CREDENTIALS_FILE"),
		Scopes:             splitList(getEnvOrDefault("CHATVAULT_SCOPES", strings.Join(defaultScopes, ","))),
		Accounts:           splitList(os.Getenv("CHATVAULT_ACCOUNTS")),
		StorageDir:         getEnvOrDefault("CHATVAULT_STORAGE_DIR", "./media"),
		MaxAttachmentBytes: maxMB * 1024 * 1024,
		AccountDelay:       time.Duration(delaySeconds) * time.Second,
		DownloadTimeout:    time.Duration(downloadTimeoutSeconds) * time.Second,
		Timezone:           getEnvOrDefault("TZ", "UTC"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.DBPassword == "" {
		return fmt.Errorf("CHATVAULT_DB_PASSWORD is required")
	}

	if c.CredentialsFile == "" {
		return fmt.Errorf("CHATVAULT_CREDENTIALS_FILE is required")
	}

	if len(c.Accounts) == 0 {
		return fmt.Errorf("CHATVAULT_ACCOUNTS is required")
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUsername,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
		c.DBSSLMode,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, value)
	}
	return parsed, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
