package config

type (
	// StoreConfig represents the shared state store configuration
	StoreConfig struct {
		Type  string           `yaml:"type"`  // "memory" or "redis"
		Redis StoreRedisConfig `yaml:"redis"` // Redis configuration
	}

	// StoreRedisConfig represents the Redis configuration for the shared state store
	StoreRedisConfig struct {
		ClusterType string `yaml:"cluster_type"` // single, sentinel or cluster
		Addr        string `yaml:"addr"`         // one or more addresses separated by ";" or ","
		MasterName  string `yaml:"master_name"`  // sentinel only
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		DB          int    `yaml:"db"` // ignored in cluster mode
		Prefix      string `yaml:"prefix"`
	}
)
