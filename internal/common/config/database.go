package config

import (
	"fmt"

	"github.com/amoylab/skirmish/internal/common/cnst"
)

// DatabaseConfig represents the scenario record database configuration
type DatabaseConfig struct {
	Type     string `yaml:"type"`     // sqlite, postgres, mysql
	Host     string `yaml:"host"`     // localhost
	Port     int    `yaml:"port"`     // 0 picks the driver default
	User     string `yaml:"user"`     // database user
	Password string `yaml:"password"` // password
	DBName   string `yaml:"dbname"`   // database name, or file path for sqlite
	SSLMode  string `yaml:"sslmode"`  // postgres only, defaults to disable
}

// GetDSN returns the driver connection string for the configured type
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case cnst.DatabaseTypePostgres:
		sslMode := c.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			c.User, c.Password, c.host(), c.port(5432), c.DBName, sslMode)
	case cnst.DatabaseTypeMySQL:
		// scenario timestamps are stored in UTC
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.host(), c.port(3306), c.DBName)
	case cnst.DatabaseTypeSQLite:
		return c.DBName
	default:
		return ""
	}
}

func (c *DatabaseConfig) host() string {
	if c.Host == "" {
		return "localhost"
	}
	return c.Host
}

func (c *DatabaseConfig) port(def int) int {
	if c.Port == 0 {
		return def
	}
	return c.Port
}
