package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the gateway process.
type Config struct {
	Server    ServerConfig          `yaml:"server"`
	Redis     RedisConfig           `yaml:"redis"`
	Auth      AuthConfig            `yaml:"auth"`
	RateLimit RateLimitConfig       `yaml:"ratelimit"`
	Backend   BackendConfig         `yaml:"backend"`
	Plans     map[string]PlanConfig `yaml:"plans"`
	Services  map[string][]string   `yaml:"services"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// RedisConfig holds key/value store connection configuration.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Addr returns the host:port dial address.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AuthConfig holds token signing configuration.
type AuthConfig struct {
	SecretKey          string `yaml:"secret_key"`
	TokenExpireMinutes int    `yaml:"token_expire_minutes"`
}

// TokenTTL returns the access token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenExpireMinutes) * time.Minute
}

// RateLimitConfig selects the limiter implementation.
type RateLimitConfig struct {
	Strategy string `yaml:"strategy"` // "standard" or "script"
}

// BackendConfig holds outbound HTTP configuration.
type BackendConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// PlanConfig describes one admission plan.
type PlanConfig struct {
	Capacity   int     `yaml:"capacity"`
	RefillRate float64 `yaml:"refill_rate"`
}

// Load reads a YAML config file, applies environment overrides, and fills
// in defaults. SECRET_KEY (or auth.secret_key) is required.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if cfg.Auth.SecretKey == "" {
		return nil, fmt.Errorf("config: auth.secret_key (or SECRET_KEY) is required")
	}

	return &cfg, nil
}

// applyEnv overrides file values with the environment variables the
// deployment contract names.
func (c *Config) applyEnv() {
	if host := os.Getenv("REDIS_HOST"); host != "" {
		c.Redis.Host = host
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			c.Redis.Port = n
		}
	}
	if secret := os.Getenv("SECRET_KEY"); secret != "" {
		c.Auth.SecretKey = secret
	}
	if minutes := os.Getenv("ACCESS_TOKEN_EXPIRE_MINUTES"); minutes != "" {
		if n, err := strconv.Atoi(minutes); err == nil {
			c.Auth.TokenExpireMinutes = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8000"
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Auth.TokenExpireMinutes == 0 {
		c.Auth.TokenExpireMinutes = 60
	}
	if c.RateLimit.Strategy == "" {
		c.RateLimit.Strategy = "standard"
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 10 * time.Second
	}
	if len(c.Plans) == 0 {
		c.Plans = map[string]PlanConfig{
			"basic":   {Capacity: 5, RefillRate: 1},
			"premium": {Capacity: 20, RefillRate: 5},
		}
	}
	if len(c.Services) == 0 {
		c.Services = map[string][]string{
			"light": {"http://localhost:8001", "http://localhost:8003"},
			"heavy": {"http://localhost:8002", "http://localhost:8004"},
		}
	}
}
