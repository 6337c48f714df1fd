package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
	Logger    Logger    `mapstructure:"logger"`
	Challenge Challenge `mapstructure:"challenge"`
	Market    Market    `mapstructure:"market"`
	Advisor   Advisor   `mapstructure:"advisor"`
}

// Server holds the configuration for the HTTP API server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Challenge holds the purchasable plans and the default risk limits applied
// to newly created challenges.
type Challenge struct {
	Plans          map[string]float64 `mapstructure:"plans"`
	DefaultPlan    string             `mapstructure:"default_plan"`
	DailyLossLimit float64            `mapstructure:"daily_loss_limit"`
	TotalLossLimit float64            `mapstructure:"total_loss_limit"`
}

// Market holds the configuration for the spot-quote client.
type Market struct {
	QuoteURL       string  `mapstructure:"quote_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Advisor holds the configuration for the chat-completion proxy.
type Advisor struct {
	BaseURL string `mapstructure:"base_url"`
	ApiKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("server.port", 5000)
	viper.SetDefault("database.dsn", "tradesense.db")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("challenge.plans", map[string]float64{
		"starter":    5000,
		"standard":   10000,
		"pro":        25000,
		"enterprise": 50000,
	})
	viper.SetDefault("challenge.default_plan", "starter")
	viper.SetDefault("challenge.daily_loss_limit", 0.05)
	viper.SetDefault("challenge.total_loss_limit", 0.10)
	viper.SetDefault("market.quote_url", "https://query1.finance.yahoo.com/v8/finance/chart")
	viper.SetDefault("market.rate_limit", 5) // requests per second
	viper.SetDefault("market.rate_limit_burst", 2)
	viper.SetDefault("advisor.base_url", "https://api.openai.com/v1")
	viper.SetDefault("advisor.model", "gpt-4o-mini")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
