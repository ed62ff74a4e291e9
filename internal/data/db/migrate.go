package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/skillforge-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(domain.AllModels()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}
