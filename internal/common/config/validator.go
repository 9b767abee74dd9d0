package config

import (
	"fmt"
	"strings"

	"github.com/amoylab/skirmish/internal/common/cnst"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	for _, f := range e.Fields {
		sb.WriteString("\n--> ")
		sb.WriteString(f)
	}
	return sb.String()
}

// Validate checks the broker configuration for settings that cannot work at runtime
func (c *BrokerConfig) Validate() error {
	var fields []string

	if c.Port <= 0 || c.Port > 65535 {
		fields = append(fields, fmt.Sprintf("port: %d is out of range", c.Port))
	}

	switch c.Store.Type {
	case cnst.StoreTypeMemory:
	case cnst.StoreTypeRedis:
		if c.Store.Redis.Addr == "" {
			fields = append(fields, "store.redis.addr: required when store.type is redis")
		}
		switch c.Store.Redis.ClusterType {
		case cnst.RedisClusterTypeSingle, cnst.RedisClusterTypeCluster:
		case cnst.RedisClusterTypeSentinel:
			if c.Store.Redis.MasterName == "" {
				fields = append(fields, "store.redis.master_name: required for sentinel")
			}
		default:
			fields = append(fields, fmt.Sprintf("store.redis.cluster_type: unknown value %q", c.Store.Redis.ClusterType))
		}
	default:
		fields = append(fields, fmt.Sprintf("store.type: unknown value %q", c.Store.Type))
	}

	switch c.Database.Type {
	case cnst.DatabaseTypeSQLite:
		if c.Database.DBName == "" {
			fields = append(fields, "database.dbname: sqlite requires a file path")
		}
	case cnst.DatabaseTypePostgres, cnst.DatabaseTypeMySQL:
		if c.Database.Host == "" {
			fields = append(fields, "database.host: required")
		}
	default:
		fields = append(fields, fmt.Sprintf("database.type: unknown value %q", c.Database.Type))
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{
		Message: "invalid broker configuration",
		Fields:  fields,
	}
}
