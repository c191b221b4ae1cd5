package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/julioborgesigt/encurtador/internal/domain"
)

// AutoMigrate runs schema migrations for all domain models.
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("starting database auto-migration")

	// Order matters: urls has a foreign key to users.
	models := []interface{}{
		&domain.User{},
		&domain.URL{},
	}

	for _, model := range models {
		modelName := fmt.Sprintf("%T", model)
		if err := db.AutoMigrate(model); err != nil {
			log.Error("failed to migrate model", zap.String("model", modelName), zap.Error(err))
			return fmt.Errorf("failed to migrate model %s: %w", modelName, err)
		}
		log.Info("model migrated", zap.String("model", modelName))
	}

	log.Info("database auto-migration completed")
	return nil
}
