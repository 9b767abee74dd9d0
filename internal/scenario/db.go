package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/amoylab/skirmish/internal/common/cnst"
	"github.com/amoylab/skirmish/internal/common/config"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DBStore implements Store using gorm
type DBStore struct {
	logger *zap.Logger
	db     *gorm.DB
}

var _ Store = (*DBStore)(nil)

// NewDBStore opens the configured database and migrates the scenario table
func NewDBStore(logger *zap.Logger, cfg *config.DatabaseConfig) (*DBStore, error) {
	logger = logger.Named("scenario.store.db")

	var dialector gorm.Dialector
	switch cfg.Type {
	case cnst.DatabaseTypePostgres:
		dialector = postgres.Open(cfg.GetDSN())
	case cnst.DatabaseTypeMySQL:
		dialector = mysql.Open(cfg.GetDSN())
	case cnst.DatabaseTypeSQLite:
		if dir := filepath.Dir(cfg.DBName); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
			}
		}
		dialector = sqlite.Open(cfg.GetDSN())
	default:
		return nil, fmt.Errorf("%w: %s", cnst.ErrUnsupportedDatabaseType, cfg.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Type, err)
	}

	if err := db.AutoMigrate(&Scenario{}); err != nil {
		return nil, fmt.Errorf("failed to migrate scenario table: %w", err)
	}

	logger.Info("scenario store ready", zap.String("type", cfg.Type))
	return &DBStore{
		logger: logger,
		db:     db,
	}, nil
}

// Find implements Finder.Find
func (s *DBStore) Find(ctx context.Context, id string) (*Scenario, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	var model Scenario
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load scenario %s: %w", id, err)
	}
	return &model, nil
}

// Create implements Store.Create
func (s *DBStore) Create(ctx context.Context, sc *Scenario) error {
	if err := s.db.WithContext(ctx).Create(sc).Error; err != nil {
		return fmt.Errorf("failed to save scenario: %w", err)
	}
	s.logger.Info("scenario saved", zap.String("scenario_id", sc.ID), zap.String("name", sc.Name))
	return nil
}

// List implements Store.List
func (s *DBStore) List(ctx context.Context) ([]*Scenario, error) {
	var models []*Scenario
	err := s.db.WithContext(ctx).
		Select("id", "name", "description", "created_at", "updated_at").
		Order("created_at").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	return models, nil
}

// Close implements Store.Close
func (s *DBStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
