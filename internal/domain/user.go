package domain

import "time"

type User struct {
	ID                UserID     `gorm:"primaryKey;autoIncrement" db:"id" json:"id"`
	Email             string     `gorm:"size:320;not null;uniqueIndex:ux_users_email" db:"email" json:"email"`
	Username          string     `gorm:"size:50;not null;uniqueIndex:ux_users_username" db:"username" json:"username"`
	PasswordHash      string     `gorm:"not null" db:"password_hash" json:"-"`
	Role              Role       `gorm:"size:16;not null;default:freelancer" db:"role" json:"role"`
	ResetTokenHash    *string    `gorm:"size:64;index:ix_users_reset_token_hash" db:"reset_token_hash" json:"-"`
	ResetTokenExpires *time.Time `db:"reset_token_expires" json:"-"`
	LastLogin         *time.Time `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt         time.Time  `gorm:"not null" db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
}

func (User) TableName() string { return "users" }
