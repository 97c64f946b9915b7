package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Catalog  CatalogConfig
	Sync     SyncConfig
	API      APIConfig
	Notify   NotifyConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

// CatalogConfig describes the upstream academic-works catalog.
type CatalogConfig struct {
	BaseURL  string
	APIKey   string
	Mailto   string // polite-pool identification, sent as query param
	PageSize int
	Timeout  time.Duration
}

// SyncConfig holds sync engine defaults and limits.
type SyncConfig struct {
	LookbackDays    int  // checkpoint fallback when no prior completed job exists
	BatchSize       int  // records per progress checkpoint
	MaxRecords      int  // default per-job cap, 0 = unlimited
	CallBudget      int  // process-wide catalog call ceiling, 0 = unlimited
	SingleFlight    bool // refuse a second running job per job_type
	MirrorEnabled   bool // false = count-only mode, no content writes
	WorksSchedule   string
	AuthorsSchedule string
}

type APIConfig struct {
	Key string
}

// NotifyConfig enables Telegram reports on terminal job states when set.
type NotifyConfig struct {
	BotToken string
	ChatID   string
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CATALOG_BASE_URL", "https://api.openalex.org")
	viper.SetDefault("CATALOG_PAGE_SIZE", 200)
	viper.SetDefault("CATALOG_TIMEOUT", "30s")
	viper.SetDefault("SYNC_LOOKBACK_DAYS", 7)
	viper.SetDefault("SYNC_BATCH_SIZE", 200)
	viper.SetDefault("SYNC_MAX_RECORDS", 0)
	viper.SetDefault("SYNC_CALL_BUDGET", 0)
	viper.SetDefault("SYNC_SINGLE_FLIGHT", false)
	viper.SetDefault("SYNC_MIRROR_ENABLED", true)
	viper.SetDefault("SYNC_WORKS_SCHEDULE", "0 0 * * * *")    // hourly
	viper.SetDefault("SYNC_AUTHORS_SCHEDULE", "0 30 3 * * *") // daily at 03:30

	timeout, err := time.ParseDuration(viper.GetString("CATALOG_TIMEOUT"))
	if err != nil {
		timeout = 30 * time.Second
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Catalog: CatalogConfig{
			BaseURL:  viper.GetString("CATALOG_BASE_URL"),
			APIKey:   viper.GetString("CATALOG_API_KEY"),
			Mailto:   viper.GetString("CATALOG_MAILTO"),
			PageSize: viper.GetInt("CATALOG_PAGE_SIZE"),
			Timeout:  timeout,
		},
		Sync: SyncConfig{
			LookbackDays:    viper.GetInt("SYNC_LOOKBACK_DAYS"),
			BatchSize:       viper.GetInt("SYNC_BATCH_SIZE"),
			MaxRecords:      viper.GetInt("SYNC_MAX_RECORDS"),
			CallBudget:      viper.GetInt("SYNC_CALL_BUDGET"),
			SingleFlight:    viper.GetBool("SYNC_SINGLE_FLIGHT"),
			MirrorEnabled:   viper.GetBool("SYNC_MIRROR_ENABLED"),
			WorksSchedule:   viper.GetString("SYNC_WORKS_SCHEDULE"),
			AuthorsSchedule: viper.GetString("SYNC_AUTHORS_SCHEDULE"),
		},
		API: APIConfig{
			Key: viper.GetString("API_KEY"),
		},
		Notify: NotifyConfig{
			BotToken: viper.GetString("NOTIFY_BOT_TOKEN"),
			ChatID:   viper.GetString("NOTIFY_CHAT_ID"),
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.API.Key == "" {
		log.Println("WARNING: API_KEY is not set, control API is unprotected")
	}

	return cfg, nil
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
