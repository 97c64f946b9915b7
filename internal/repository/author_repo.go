package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"worksync/internal/models"
)

// AuthorRepository is the mirror store for catalog authors.
type AuthorRepository struct {
	db *gorm.DB
}

func NewAuthorRepository(db *gorm.DB) *AuthorRepository {
	return &AuthorRepository{db: db}
}

// Upsert writes one author by external id, atomically per record.
func (r *AuthorRepository) Upsert(externalID string, sourceUpdatedAt time.Time, payload []byte) (bool, error) {
	created := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.AuthorMirror
		err := tx.Where("external_id = ?", externalID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created = true
			return tx.Create(&models.AuthorMirror{
				ExternalID:      externalID,
				SourceUpdatedAt: sourceUpdatedAt,
				Payload:         string(payload),
				LastUpdated:     time.Now(),
			}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&models.AuthorMirror{}).
			Where("external_id = ?", externalID).
			Updates(map[string]interface{}{
				"source_updated_at": sourceUpdatedAt,
				"payload":           string(payload),
				"last_updated":      time.Now(),
			}).Error
	})
	return created, err
}

// Count returns the number of mirrored authors.
func (r *AuthorRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.AuthorMirror{}).Count(&count).Error
	return count, err
}
