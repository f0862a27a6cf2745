package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	Postgres  PostgresConfig
	JWT       JWTConfig
	Inventory InventoryConfig
	Billing   BillingConfig
	Numbering NumberingConfig
	Jobs      JobsConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	CORSOrigins []string
}

type LoggerConfig struct {
	Level  string
	AppEnv string
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN builds the postgres connection URL.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

type JWTConfig struct {
	Secret string
}

type InventoryConfig struct {
	// LowStockThreshold applies to a product's aggregate stock, not per variant.
	LowStockThreshold int
	// CompositeCostRatio estimates the unit cost of a special product with no explicit cost.
	CompositeCostRatio float64
}

type BillingConfig struct {
	DefaultTaxRate float64
	InvoiceDueDays int
	DocumentDir    string
}

type NumberingConfig struct {
	MaxAttempts int
}

type JobsConfig struct {
	Async        bool
	Workers      int
	PollInterval time.Duration
	MaxAttempts  int
}

// Load reads configs/.env (if present) and the process environment.
func Load() *Config {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			AppEnv: getEnv("APP_ENV", "development"),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "postgres"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
		},
		Inventory: InventoryConfig{
			LowStockThreshold:  getEnvInt("LOW_STOCK_THRESHOLD", 10),
			CompositeCostRatio: getEnvFloat("COMPOSITE_COST_RATIO", 0.6),
		},
		Billing: BillingConfig{
			DefaultTaxRate: getEnvFloat("DEFAULT_TAX_RATE", 0),
			InvoiceDueDays: getEnvInt("INVOICE_DUE_DAYS", 30),
			DocumentDir:    getEnv("INVOICE_DOCUMENT_DIR", "storage/invoices"),
		},
		Numbering: NumberingConfig{
			MaxAttempts: getEnvInt("NUMBER_MAX_ATTEMPTS", 5),
		},
		Jobs: JobsConfig{
			Async:        getEnvBool("JOBS_ASYNC", true),
			Workers:      getEnvInt("JOB_WORKERS", 2),
			PollInterval: getEnvDuration("JOB_POLL_INTERVAL", 5*time.Second),
			MaxAttempts:  getEnvInt("JOB_MAX_ATTEMPTS", 3),
		},
	}
}

// IsDevelopment reports whether the logger should use the console encoder.
func (c *Config) IsDevelopment() bool {
	return c.Logger.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return strings.Split(value, ",")
	}
	return fallback
}
