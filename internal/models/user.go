package models

import "time"

type User struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Username  string `gorm:"uniqueIndex;not null"`
	Email     string `gorm:"index"`
	Password  string `gorm:"not null"`
	Role      string `gorm:"not null;default:'user'"`
	Version   int    `gorm:"default:1"`
}

// MailAddress is the address stored on templates this user creates.
// Accounts registered before the email field existed fall back to the
// username, which is an address for those accounts.
func (u User) MailAddress() string {
	if u.Email != "" {
		return u.Email
	}
	return u.Username
}
