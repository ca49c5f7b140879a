package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"signal-trader/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// LocalStorage persists orders, webhook logs, configuration and
// supervised position state using SQLite
type LocalStorage struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewLocalStorage creates a new local storage service
func NewLocalStorage(dbPath string) (*LocalStorage, error) {
	// Ensure the directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open SQLite database
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Auto-migrate schemas
	if err := db.AutoMigrate(
		&models.DBOrder{},
		&models.DBWebhookLog{},
		&models.DBTradingConfig{},
		&models.DBSupervisedPosition{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &LocalStorage{
		db:     db,
		logger: logger,
	}, nil
}

// SaveOrder creates or updates an order row
func (s *LocalStorage) SaveOrder(order *models.DBOrder) error {
	result := s.db.Save(order)
	if result.Error != nil {
		return fmt.Errorf("failed to save order: %w", result.Error)
	}
	return nil
}

// GetOrderByID retrieves an order by its database ID
func (s *LocalStorage) GetOrderByID(id uint) (*models.DBOrder, error) {
	var order models.DBOrder
	result := s.db.First(&order, id)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get order: %w", result.Error)
	}
	return &order, nil
}

// GetRecentOrders retrieves the most recent orders, newest first
func (s *LocalStorage) GetRecentOrders(limit int) ([]*models.DBOrder, error) {
	var orders []*models.DBOrder
	result := s.db.Order("created_at DESC").Limit(limit).Find(&orders)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get orders: %w", result.Error)
	}
	return orders, nil
}

// CountOrders counts orders, optionally filtered by status
func (s *LocalStorage) CountOrders(status string) (int64, error) {
	var count int64
	query := s.db.Model(&models.DBOrder{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

// SaveWebhookLog creates or updates a webhook log row
func (s *LocalStorage) SaveWebhookLog(log *models.DBWebhookLog) error {
	result := s.db.Save(log)
	if result.Error != nil {
		return fmt.Errorf("failed to save webhook log: %w", result.Error)
	}
	return nil
}

// GetRecentWebhookLogs retrieves the most recent webhook logs
func (s *LocalStorage) GetRecentWebhookLogs(limit int) ([]*models.DBWebhookLog, error) {
	var logs []*models.DBWebhookLog
	result := s.db.Order("created_at DESC").Limit(limit).Find(&logs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get webhook logs: %w", result.Error)
	}
	return logs, nil
}

// GetTradingConfig retrieves the stored broker configuration. Returns
// nil without error when no configuration row exists yet.
func (s *LocalStorage) GetTradingConfig() (*models.DBTradingConfig, error) {
	var config models.DBTradingConfig
	result := s.db.First(&config)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get trading config: %w", result.Error)
	}
	return &config, nil
}

// SaveTradingConfig creates or updates the single configuration row
func (s *LocalStorage) SaveTradingConfig(config *models.DBTradingConfig) error {
	existing, err := s.GetTradingConfig()
	if err != nil {
		return err
	}
	if existing != nil {
		config.ID = existing.ID
		config.CreatedAt = existing.CreatedAt
	}
	result := s.db.Save(config)
	if result.Error != nil {
		return fmt.Errorf("failed to save trading config: %w", result.Error)
	}
	return nil
}

// SaveSupervisedPosition upserts a supervised position keyed by its
// position ID
func (s *LocalStorage) SaveSupervisedPosition(position *models.DBSupervisedPosition) error {
	var existing models.DBSupervisedPosition
	err := s.db.Where("position_id = ?", position.PositionID).First(&existing).Error
	if err == nil {
		position.ID = existing.ID
		position.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up supervised position: %w", err)
	}

	result := s.db.Save(position)
	if result.Error != nil {
		return fmt.Errorf("failed to save supervised position: %w", result.Error)
	}
	return nil
}

// GetSupervisedPosition retrieves a supervised position by position ID
func (s *LocalStorage) GetSupervisedPosition(positionID string) (*models.DBSupervisedPosition, error) {
	var position models.DBSupervisedPosition
	result := s.db.Where("position_id = ?", positionID).First(&position)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get supervised position: %w", result.Error)
	}
	return &position, nil
}

// GetSupervisedPositions retrieves supervised positions with an
// optional state filter
func (s *LocalStorage) GetSupervisedPositions(state string) ([]*models.DBSupervisedPosition, error) {
	var positions []*models.DBSupervisedPosition

	query := s.db.Model(&models.DBSupervisedPosition{})
	if state != "" {
		query = query.Where("state = ?", state)
	}

	result := query.Order("created_at DESC").Find(&positions)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get supervised positions: %w", result.Error)
	}
	return positions, nil
}

// Close closes the database connection
func (s *LocalStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
