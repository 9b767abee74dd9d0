package cnst

// Configuration file names
const (
	BrokerYaml = "broker.yaml"
)

// Redis deployment topologies understood by the state store
const (
	RedisClusterTypeSingle   = "single"
	RedisClusterTypeSentinel = "sentinel"
	RedisClusterTypeCluster  = "cluster"
)

// Shared state store backends
const (
	StoreTypeMemory = "memory"
	StoreTypeRedis  = "redis"
)

// Scenario database backends
const (
	DatabaseTypeSQLite   = "sqlite"
	DatabaseTypePostgres = "postgres"
	DatabaseTypeMySQL    = "mysql"
)
