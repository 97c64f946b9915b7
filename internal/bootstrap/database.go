package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"worksync/internal/models"
)

// Migrate ensures the ledger and mirror tables exist.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		// Ledger
		&models.SyncJob{},
		&models.SyncJobLog{},
		// Mirror
		&models.WorkMirror{},
		&models.AuthorMirror{},
	}
}
