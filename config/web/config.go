package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Port          int    `env:"PORT" env-default:"8080" yaml:"port"`
	JWTSecret     string `env:"JWT_SECRET" env-required:"true" yaml:"jwt_secret"`
	LogLevel      string `env:"LOG_LEVEL" env-default:"info" yaml:"log_level"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" yaml:"public_base_url"`

	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string `env:"CORS_ORIGINS" env-default:"http://localhost:3000" env-separator:"," yaml:"cors_origins"`

	Database   DatabaseConfig  `yaml:"database"`
	Redis      RedisConfig     `yaml:"redis"`
	AsrService ServiceConfig   `env-prefix:"ASR_" yaml:"asr_service"`
	Storage    StorageConfig   `yaml:"storage"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver   string `env:"DB_DRIVER" env-default:"postgres" yaml:"driver"`
	DSN      string `env:"DB_DSN" yaml:"dsn"`
	User     string `env:"DB_USER" yaml:"user"`
	Password string `env:"DB_PASSWORD" yaml:"password"`
	Host     string `env:"DB_HOST" env-default:"localhost" yaml:"host"`
	Name     string `env:"DB_NAME" yaml:"name"`
	Port     int    `env:"DB_PORT" env-default:"5432" yaml:"port"`
	SSLMode  string `env:"DB_SSLMODE" env-default:"disable" yaml:"sslmode"`
}

// PostgresDSN builds a lib/pq connection string unless DSN is set.
func (d DatabaseConfig) PostgresDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	// Addr empty keeps the idempotency cache in process memory.
	Addr     string `env:"REDIS_ADDR" yaml:"addr"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB" env-default:"0" yaml:"db"`
}

type ServiceConfig struct {
	Port int    `env:"PORT" env-default:"50051" yaml:"port"`
	Url  string `env:"URL" env-default:"localhost" yaml:"url"`
}

type StorageConfig struct {
	// Backend is "s3" or "local".
	Backend       string `env:"STORAGE_BACKEND" env-default:"local" yaml:"backend"`
	Bucket        string `env:"STORAGE_BUCKET" env-default:"activity-attachments" yaml:"bucket"`
	Region        string `env:"STORAGE_REGION" env-default:"us-east-1" yaml:"region"`
	Endpoint      string `env:"STORAGE_ENDPOINT" yaml:"endpoint"`
	Prefix        string `env:"STORAGE_PREFIX" yaml:"prefix"`
	LocalDir      string `env:"STORAGE_LOCAL_DIR" env-default:"./uploads" yaml:"local_dir"`
	PublicBaseURL string `env:"STORAGE_PUBLIC_BASE_URL" yaml:"public_base_url"`
}

type RateLimitConfig struct {
	RPS   float64 `env:"RATE_LIMIT_RPS" env-default:"2" yaml:"rps"`
	Burst int     `env:"RATE_LIMIT_BURST" env-default:"5" yaml:"burst"`
}

// Load reads CONFIG_PATH when set, otherwise the environment.
func Load() (*Config, error) {
	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment variables: %w", err)
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err.Error())
	}
	return cfg
}
