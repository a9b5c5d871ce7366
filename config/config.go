package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Payment  PaymentConfig  `mapstructure:"payment"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Env          string        `mapstructure:"env"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type JWTConfig struct {
	AccessSecret string        `mapstructure:"access_secret"`
	AccessExpiry time.Duration `mapstructure:"access_expiry"`
	Issuer       string        `mapstructure:"issuer"`
}

// PaymentConfig carries the gateway credentials; it is constructed here and
// handed to the provider at wire-up, never read from package-level state.
type PaymentConfig struct {
	GatewayBaseURL string        `mapstructure:"gateway_base_url"`
	ShopID         string        `mapstructure:"shop_id"`
	SecretKey      string        `mapstructure:"secret_key"`
	GatewayTimeout time.Duration `mapstructure:"gateway_timeout"`
	ReturnURL      string        `mapstructure:"return_url"`
	WebhookSecret  string        `mapstructure:"webhook_secret"`
	Currency       string        `mapstructure:"currency"`
	UseStubGateway bool          `mapstructure:"use_stub_gateway"`
}

// Load reads config.yaml when present then applies COACHHUB_* environment
// overrides on top of the defaults.
func Load() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("database.dsn", "coachhub:coachhub@tcp(localhost:3306)/coachhub?charset=utf8mb4&parseTime=True&loc=Local")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("jwt.access_secret", "change-me-in-production")
	v.SetDefault("jwt.access_expiry", 15*time.Minute)
	v.SetDefault("jwt.issuer", "coachhub")
	v.SetDefault("payment.gateway_base_url", "https://api.yookassa.ru")
	v.SetDefault("payment.gateway_timeout", 15*time.Second)
	v.SetDefault("payment.return_url", "http://localhost:3000/payment/result")
	v.SetDefault("payment.currency", "RUB")
	v.SetDefault("payment.use_stub_gateway", false)

	v.SetEnvPrefix("COACHHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("read config: %v", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		log.Fatalf("parse config: %v", err)
	}
	return cfg
}
