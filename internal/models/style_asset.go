package models

import "time"

// StyleAsset is a generated image cached by the hash of the prompt that produced it.
// Rows are never mutated after insert apart from hit_count.
// ExpiresAt is nil unless a generation cache TTL is configured.
type StyleAsset struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	PromptHash string     `gorm:"uniqueIndex;not null;size:64" json:"prompt_hash"` // SHA256 hex
	Prompt     string     `gorm:"not null" json:"prompt"`
	ImageURL   string     `gorm:"not null" json:"image_url"`
	ItemName   *string    `gorm:"size:200" json:"item_name,omitempty"`
	Model      string     `gorm:"size:100" json:"model"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `gorm:"index" json:"expires_at"`
	HitCount   int        `gorm:"default:0" json:"hit_count"`
}

func (StyleAsset) TableName() string {
	return "style_assets"
}

// IsExpired returns true if the cache entry has expired
func (a *StyleAsset) IsExpired() bool {
	if a.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*a.ExpiresAt)
}
