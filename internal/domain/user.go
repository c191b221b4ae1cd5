package domain

import "time"

// User is a registered account identified by its Google OAuth profile.
// The core only needs ID as a link owner; the rest is profile data served
// back to the frontend.
type User struct {
	ID        int64      `gorm:"primaryKey;column:id" json:"id"`
	GoogleID  string     `gorm:"column:google_id;uniqueIndex;not null" json:"-"`
	Email     string     `gorm:"column:email;uniqueIndex;not null" json:"email"`
	Name      string     `gorm:"column:name" json:"name"`
	AvatarURL *string    `gorm:"column:avatar_url" json:"avatar_url,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	LastLogin *time.Time `gorm:"column:last_login" json:"last_login,omitempty"`

	Links []URL `gorm:"foreignKey:UserID" json:"links,omitempty"`
}

// TableName returns the table name used by GORM.
func (User) TableName() string {
	return "users"
}
