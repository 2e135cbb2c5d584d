package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerAddr  string
	DatabaseURL string
	CORSOrigin  string

	// Session
	SessionTTL time.Duration

	// Per-IP limits on mutating endpoints
	RateLimitRPS   float64
	RateLimitBurst int
}

var cfg *Config

// Init loads the config using Viper and returns it
func Init() *Config {
	viper.SetDefault("SERVER_ADDR", ":8080")
	viper.SetDefault("DATABASE_URL", "sqlite://blog.db")
	viper.SetDefault("CORS_ORIGIN", "*")
	viper.SetDefault("SESSION_TTL", "24h")
	viper.SetDefault("RATE_LIMIT_RPS", 1.0)
	viper.SetDefault("RATE_LIMIT_BURST", 5)

	// Load env variables
	viper.AutomaticEnv()

	// Optional config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	_ = viper.ReadInConfig() // ignore error if no file

	cfg = &Config{
		ServerAddr:     viper.GetString("SERVER_ADDR"),
		DatabaseURL:    viper.GetString("DATABASE_URL"),
		CORSOrigin:     viper.GetString("CORS_ORIGIN"),
		SessionTTL:     parseDuration(viper.GetString("SESSION_TTL"), 24*time.Hour),
		RateLimitRPS:   viper.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst: viper.GetInt("RATE_LIMIT_BURST"),
	}

	return cfg
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

// Get returns the loaded config instance
func Get() *Config {
	return cfg
}
