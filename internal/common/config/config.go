package config

import (
	"os"
	"regexp"
	"time"

	"github.com/amoylab/skirmish/internal/common/cnst"
	"github.com/amoylab/skirmish/pkg/helper"
	"github.com/amoylab/skirmish/pkg/trace"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type (
	// BrokerConfig represents the session broker configuration
	BrokerConfig struct {
		Port      int             `yaml:"port"`
		PID       string          `yaml:"pid"`
		Logger    LoggerConfig    `yaml:"logger"`
		Store     StoreConfig     `yaml:"store"`
		Database  DatabaseConfig  `yaml:"database"`
		Catalog   CatalogConfig   `yaml:"catalog"`
		WebSocket WebSocketConfig `yaml:"websocket"`
		CORS      *CORSConfig     `yaml:"cors,omitempty"`
		Metrics   MetricsConfig   `yaml:"metrics"`
		Tracing   trace.Config    `yaml:"tracing"`
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone"`   // time zone for log timestamps, e.g., "UTC", default is local
		TimeFormat string `yaml:"time_format"` // time format for log timestamps, default is "2006-01-02 15:04:05"
	}

	// CatalogConfig points at the static unit and area type definitions
	CatalogConfig struct {
		Path string `yaml:"path"` // directory holding units-config.json and areas-config.json
	}

	// WebSocketConfig tunes the per-connection reader and writer
	WebSocketConfig struct {
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		PingInterval     time.Duration `yaml:"ping_interval"`
		PongTimeout      time.Duration `yaml:"pong_timeout"`
		ReadLimit        int64         `yaml:"read_limit"` // max inbound frame size in bytes
		HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	}

	// CORSConfig describes the cross-origin policy applied to every route
	CORSConfig struct {
		AllowOrigins     []string `yaml:"allow_origins,omitempty"`
		AllowMethods     []string `yaml:"allow_methods,omitempty"`
		AllowHeaders     []string `yaml:"allow_headers,omitempty"`
		ExposeHeaders    []string `yaml:"expose_headers,omitempty"`
		AllowCredentials bool     `yaml:"allow_credentials"`
	}

	// MetricsConfig represents the prometheus metrics configuration
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled"`
		Path      string    `yaml:"path"`
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}
)

type Type interface {
	BrokerConfig
}

// LoadConfig loads configuration from a YAML file with environment variable support
func LoadConfig[T Type](filename string) (*T, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.ConfigPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)
	var cfg T
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}

	if brokerCfg, ok := any(&cfg).(*BrokerConfig); ok {
		brokerCfg.SetDefaults()
	}

	return &cfg, cfgPath, nil
}

// SetDefaults fills every zero-valued setting with the broker default
func (c *BrokerConfig) SetDefaults() {
	if c.Port == 0 {
		c.Port = 9999
	}
	if c.Store.Type == "" {
		c.Store.Type = cnst.StoreTypeMemory
	}
	if c.Store.Redis.ClusterType == "" {
		c.Store.Redis.ClusterType = cnst.RedisClusterTypeSingle
	}
	if c.Store.Redis.Prefix == "" {
		c.Store.Redis.Prefix = "skirmish"
	}
	if c.Database.Type == "" {
		c.Database.Type = cnst.DatabaseTypeSQLite
	}
	if c.Database.Type == cnst.DatabaseTypeSQLite && c.Database.DBName == "" {
		c.Database.DBName = "./data/skirmish.db"
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "./configs/catalog"
	}
	if c.WebSocket.WriteTimeout <= 0 {
		c.WebSocket.WriteTimeout = 10 * time.Second
	}
	if c.WebSocket.PingInterval <= 0 {
		c.WebSocket.PingInterval = 30 * time.Second
	}
	if c.WebSocket.PongTimeout <= c.WebSocket.PingInterval {
		c.WebSocket.PongTimeout = c.WebSocket.PingInterval * 2
	}
	if c.WebSocket.ReadLimit <= 0 {
		c.WebSocket.ReadLimit = 64 * 1024
	}
	if c.WebSocket.HandshakeTimeout <= 0 {
		c.WebSocket.HandshakeTimeout = 10 * time.Second
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "skirmish"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = cnst.AppName
	}
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}
		return []byte(defaultValue)
	})
}
