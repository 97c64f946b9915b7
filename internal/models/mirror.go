package models

import "time"

// WorkMirror is the local copy of one catalog work, keyed by the
// catalog's stable identifier. The payload is stored opaque; the
// engine only ever reads the id and modification timestamp.
type WorkMirror struct {
	ExternalID      string    `gorm:"column:external_id;primaryKey;size:64" json:"external_id"`
	SourceUpdatedAt time.Time `gorm:"column:source_updated_at;index" json:"source_updated_at"`
	Payload         string    `gorm:"column:payload;type:longtext" json:"payload"`
	LastUpdated     time.Time `gorm:"column:last_updated" json:"last_updated"`
}

func (WorkMirror) TableName() string {
	return "work_mirror"
}

// AuthorMirror is the local copy of one catalog author.
type AuthorMirror struct {
	ExternalID      string    `gorm:"column:external_id;primaryKey;size:64" json:"external_id"`
	SourceUpdatedAt time.Time `gorm:"column:source_updated_at;index" json:"source_updated_at"`
	Payload         string    `gorm:"column:payload;type:longtext" json:"payload"`
	LastUpdated     time.Time `gorm:"column:last_updated" json:"last_updated"`
}

func (AuthorMirror) TableName() string {
	return "author_mirror"
}
