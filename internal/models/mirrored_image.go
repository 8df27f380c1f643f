package models

import "time"

// MirroredImage records an external image re-hosted on our own storage.
// StoragePath is sha256(SourceURL) + ".webp" and therefore a pure function of SourceURL.
type MirroredImage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SourceHash  string    `gorm:"uniqueIndex;not null;size:64" json:"source_hash"`
	SourceURL   string    `gorm:"not null" json:"source_url"`
	StoragePath string    `gorm:"not null;size:200" json:"storage_path"`
	PublicURL   string    `gorm:"not null" json:"public_url"`
	Bytes       int       `json:"bytes"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	CreatedAt   time.Time `json:"created_at"`
}

func (MirroredImage) TableName() string {
	return "mirrored_images"
}
