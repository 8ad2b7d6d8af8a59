// internal/config/config.go
package config

import (
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log      LogConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Engine   EngineConfig
}

type LogConfig struct {
	Level string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Enabled          bool
	RedisURL         string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	ReportTTLSeconds int
}

// EngineConfig carries the tunables of the intelligence engines.
type EngineConfig struct {
	SafetyMargin float64
	OrderCost    float64
	// HoldingRate is the annual holding cost as a fraction of the purchase price.
	// It is nil when ENGINE_HOLDING_RATE is not set; there is no assumed default.
	HoldingRate        *float64
	CacheTTL           time.Duration
	SimulationHorizon  int
	ReorderPolicy      string
	OverstockFactor    float64
	DormantWindowDays  int
	PreventiveInOrders bool
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		instance = Read(viper.GetViper())
	})

	return instance
}

// Read builds a Config from the given viper instance without touching the singleton.
func Read(v *viper.Viper) *Config {
	// Set default values
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "stockpilot")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_REPORT_TTL_SECONDS", 60)
	v.SetDefault("ENGINE_SAFETY_MARGIN", 1.5)
	v.SetDefault("ENGINE_ORDER_COST", 50)
	v.SetDefault("ENGINE_CACHE_TTL_SECONDS", 300)
	v.SetDefault("ENGINE_SIMULATION_HORIZON_DAYS", 90)
	v.SetDefault("ENGINE_REORDER_POLICY", "target_fill")
	v.SetDefault("ENGINE_OVERSTOCK_FACTOR", 2)
	v.SetDefault("ENGINE_DORMANT_DAYS", 90)
	v.SetDefault("ENGINE_PREVENTIVE_IN_ORDERS", false)

	// Read from environment variables
	v.AutomaticEnv()

	// No SetDefault on purpose: IsSet must only report an explicit value.
	_ = v.BindEnv("ENGINE_HOLDING_RATE")
	var holdingRate *float64
	if v.IsSet("ENGINE_HOLDING_RATE") && v.GetString("ENGINE_HOLDING_RATE") != "" {
		rate := v.GetFloat64("ENGINE_HOLDING_RATE")
		holdingRate = &rate
	}

	return &Config{
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:          v.GetBool("CACHE_ENABLED"),
			RedisURL:         v.GetString("REDIS_URL"),
			RedisHost:        v.GetString("REDIS_HOST"),
			RedisPort:        v.GetString("REDIS_PORT"),
			RedisPassword:    v.GetString("REDIS_PASSWORD"),
			RedisDB:          v.GetInt("REDIS_DB"),
			ReportTTLSeconds: v.GetInt("CACHE_REPORT_TTL_SECONDS"),
		},
		Engine: EngineConfig{
			SafetyMargin:       v.GetFloat64("ENGINE_SAFETY_MARGIN"),
			OrderCost:          v.GetFloat64("ENGINE_ORDER_COST"),
			HoldingRate:        holdingRate,
			CacheTTL:           time.Duration(v.GetInt("ENGINE_CACHE_TTL_SECONDS")) * time.Second,
			SimulationHorizon:  v.GetInt("ENGINE_SIMULATION_HORIZON_DAYS"),
			ReorderPolicy:      v.GetString("ENGINE_REORDER_POLICY"),
			OverstockFactor:    v.GetFloat64("ENGINE_OVERSTOCK_FACTOR"),
			DormantWindowDays:  v.GetInt("ENGINE_DORMANT_DAYS"),
			PreventiveInOrders: v.GetBool("ENGINE_PREVENTIVE_IN_ORDERS"),
		},
	}
}
