package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Role is a named permission level. Roles and users are the two foundational
// identity tables: a replace-mode restore never deletes from them.
type Role struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:20;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`

	Users []User `gorm:"foreignKey:RoleID" json:"users,omitempty"`
}

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:60;not null" json:"name"`
	Email        string    `gorm:"size:60;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:64;not null" json:"-"`
	RoleID       uint      `gorm:"index;not null" json:"role_id"`
	IsActive     bool      `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Role Role `gorm:"foreignKey:RoleID" json:"-"`
}

func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}
