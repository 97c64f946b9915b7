package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"worksync/internal/models"
)

// WorkRepository is the mirror store for catalog works.
type WorkRepository struct {
	db *gorm.DB
}

func NewWorkRepository(db *gorm.DB) *WorkRepository {
	return &WorkRepository{db: db}
}

// Upsert writes one work by external id. Lookup and write run in a
// single transaction so a record reconciliation is atomic. Returns
// true when the record was inserted rather than overwritten.
func (r *WorkRepository) Upsert(externalID string, sourceUpdatedAt time.Time, payload []byte) (bool, error) {
	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.WorkMirror
		err := tx.Where("external_id = ?", externalID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created = true
			return tx.Create(&models.WorkMirror{
				ExternalID:      externalID,
				SourceUpdatedAt: sourceUpdatedAt,
				Payload:         string(payload),
				LastUpdated:     time.Now(),
			}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&models.WorkMirror{}).
			Where("external_id = ?", externalID).
			Updates(map[string]interface{}{
				"source_updated_at": sourceUpdatedAt,
				"payload":           string(payload),
				"last_updated":      time.Now(),
			}).Error
	})
	return created, err
}

// Count returns the number of mirrored works.
func (r *WorkRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.WorkMirror{}).Count(&count).Error
	return count, err
}
