package state

import (
	"fmt"

	"github.com/amoylab/skirmish/internal/common/cnst"
	"github.com/amoylab/skirmish/internal/common/config"

	"go.uber.org/zap"
)

// NewStore creates a new state store based on configuration
func NewStore(logger *zap.Logger, cfg *config.StoreConfig) (Store, error) {
	logger.Info("Initializing state store", zap.String("type", cfg.Type))
	switch cfg.Type {
	case cnst.StoreTypeMemory:
		return NewMemoryStore(logger), nil
	case cnst.StoreTypeRedis:
		return NewRedisStore(logger, cfg.Redis)
	default:
		return nil, fmt.Errorf("%w: %s", cnst.ErrUnsupportedStoreType, cfg.Type)
	}
}
