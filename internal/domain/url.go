package domain

import "time"

// URL is the central link record. ShortCode is globally unique and immutable
// once set; Clicks is only ever incremented by the redirect path.
type URL struct {
	ID           int64      `gorm:"primaryKey;column:id" json:"id"`
	UserID       *int64     `gorm:"column:user_id;index" json:"user_id,omitempty"` // nil means guest-created, unowned
	OriginalURL  string     `gorm:"column:original_url;type:text;not null" json:"original_url"`
	ShortCode    string     `gorm:"column:short_code;uniqueIndex;not null" json:"short_code"`
	Description  *string    `gorm:"column:description;size:255" json:"description,omitempty"`
	QRCode       *string    `gorm:"column:qr_code;type:text" json:"qr_code,omitempty"`
	Clicks       int64      `gorm:"column:clicks;not null;default:0" json:"clicks"`
	IsCustom     bool       `gorm:"column:is_custom;not null;default:false" json:"is_custom"`
	ExpiresAt    *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	LastAccessed *time.Time `gorm:"column:last_accessed" json:"last_accessed,omitempty"`
}

// TableName keeps the original column set under the original table name.
func (URL) TableName() string {
	return "urls"
}

// IsExpired reports whether the record is logically gone. A nil ExpiresAt
// never expires.
func (u *URL) IsExpired(now time.Time) bool {
	return u.ExpiresAt != nil && u.ExpiresAt.Before(now)
}
