package config

import (
	"encoding/json"
	"flag"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"xandpulse/logger"
)

type Config struct {
	Server  ServerConfig  `json:"server"`
	PRPC    PRPCConfig    `json:"prpc"`
	Polling PollingConfig `json:"polling"`
	Cache   CacheConfig   `json:"cache"`
	Redis   RedisConfig   `json:"redis"`
	GeoIP   GeoIPConfig   `json:"geoip"`
	Scoring ScoringConfig `json:"scoring"`
	Log     LogConfig     `json:"log"`
}

type ServerConfig struct {
	Port           int      `json:"port"`
	Host           string   `json:"host"`
	AllowedOrigins []string `json:"allowed_origins"`
	SeedNodes      []string `json:"seed_nodes"`
}

type PRPCConfig struct {
	DefaultPort int `json:"default_port"`
	Timeout     int `json:"timeout_seconds"`
	MaxRetries  int `json:"max_retries"`
	Concurrency int `json:"concurrency"`
}

type PollingConfig struct {
	RefreshInterval     int `json:"refresh_interval_seconds"`
	HealthCheckInterval int `json:"health_check_interval_seconds"`
}

type CacheConfig struct {
	TTL         int `json:"ttl_seconds"`
	BaselineTTL int `json:"baseline_ttl_seconds"`
}

type RedisConfig struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Enabled  bool   `json:"enabled"`
	UseTLS   bool   `json:"use_tls"`
}

type GeoIPConfig struct {
	DBPath        string `json:"db_path"`        // optional MaxMind City database
	LocationsPath string `json:"locations_path"` // replaces the embedded ip-locations dataset
}

type ScoringConfig struct {
	CurrentVersion   string `json:"current_version"`
	StableIdentities bool   `json:"stable_identities"`
}

type LogConfig struct {
	Level string `json:"level"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "0.0.0.0",
			AllowedOrigins: []string{"*"},
			SeedNodes:      []string{},
		},
		PRPC: PRPCConfig{
			DefaultPort: 6000,
			Timeout:     5,
			MaxRetries:  3,
			Concurrency: 8,
		},
		Polling: PollingConfig{
			RefreshInterval:     30,
			HealthCheckInterval: 30,
		},
		Cache: CacheConfig{
			TTL:         60,
			BaselineTTL: 3600,
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
			Enabled: true,
		},
		Scoring: ScoringConfig{
			CurrentVersion: "v1.16.14",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig layers defaults, the JSON config file, the environment and
// command-line flags, each overriding the previous.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config/config.json"
	}

	if file, err := os.Open(configPath); err == nil {
		defer file.Close()
		if err := json.NewDecoder(file).Decode(cfg); err != nil {
			logger.Warn().Err(err).Str("path", configPath).Msg("failed to decode config file")
		}
	}

	loadEnv(cfg)

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var serverPort int
	var serverHost string

	fs.IntVar(&serverPort, "port", 0, "Server port")
	fs.StringVar(&serverHost, "host", "", "Server host")

	_ = fs.Parse(args)

	if isFlagPassed(fs, "port") {
		cfg.Server.Port = serverPort
	}
	if isFlagPassed(fs, "host") {
		cfg.Server.Host = serverHost
	}

	return cfg, nil
}

func isFlagPassed(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func envInt(key string, dst *int) {
	if val := os.Getenv(key); val != "" {
		if p, err := strconv.Atoi(val); err == nil {
			*dst = p
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		*dst = val == "true" || val == "1"
	}
}

func envString(key string, dst *string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func envList(key string, dst *[]string) {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		*dst = parts
	}
}

func loadEnv(cfg *Config) {
	envInt("SERVER_PORT", &cfg.Server.Port)
	envString("SERVER_HOST", &cfg.Server.Host)
	envList("ALLOWED_ORIGINS", &cfg.Server.AllowedOrigins)
	envList("SEED_NODES", &cfg.Server.SeedNodes)

	envInt("PRPC_PORT", &cfg.PRPC.DefaultPort)
	envInt("PRPC_TIMEOUT", &cfg.PRPC.Timeout)
	envInt("PRPC_MAX_RETRIES", &cfg.PRPC.MaxRetries)
	envInt("PRPC_CONCURRENCY", &cfg.PRPC.Concurrency)

	envInt("REFRESH_INTERVAL", &cfg.Polling.RefreshInterval)
	envInt("HEALTH_CHECK_INTERVAL", &cfg.Polling.HealthCheckInterval)

	envInt("CACHE_TTL", &cfg.Cache.TTL)
	envInt("BASELINE_TTL", &cfg.Cache.BaselineTTL)

	envString("REDIS_ADDRESS", &cfg.Redis.Address)
	envString("REDIS_PASSWORD", &cfg.Redis.Password)
	envInt("REDIS_DB", &cfg.Redis.DB)
	envBool("REDIS_ENABLED", &cfg.Redis.Enabled)
	envBool("REDIS_USE_TLS", &cfg.Redis.UseTLS)

	envString("GEOIP_DB_PATH", &cfg.GeoIP.DBPath)
	envString("GEO_LOCATIONS_PATH", &cfg.GeoIP.LocationsPath)

	envString("CURRENT_VERSION", &cfg.Scoring.CurrentVersion)
	envBool("STABLE_IDENTITIES", &cfg.Scoring.StableIdentities)

	envString("LOG_LEVEL", &cfg.Log.Level)
}

// Helper methods for duration conversion
func (c *Config) PRPCTimeoutDuration() time.Duration {
	return time.Duration(c.PRPC.Timeout) * time.Second
}

func (c *Config) RefreshIntervalDuration() time.Duration {
	return time.Duration(c.Polling.RefreshInterval) * time.Second
}

func (c *Config) HealthCheckIntervalDuration() time.Duration {
	return time.Duration(c.Polling.HealthCheckInterval) * time.Second
}

func (c *Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.Cache.TTL) * time.Second
}

func (c *Config) BaselineTTLDuration() time.Duration {
	return time.Duration(c.Cache.BaselineTTL) * time.Second
}
