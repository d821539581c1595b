package models

import (
	"errors"
	"strings"
	"time"

	"github.com/mmdatafocus/moldpark_backend/utils"
	"gorm.io/gorm"
)

var ErrProducerPrivileged = errors.New("producer accounts cannot hold staff or superuser privileges")

type User struct {
	ID          uint       `gorm:"primary_key" json:"id"`
	Username    string     `gorm:"size:150;not null;unique" json:"username"`
	Name        string     `gorm:"size:150" json:"name"`
	Email       string     `gorm:"size:254;index" json:"email"`
	Password    string     `gorm:"size:255;not null" json:"-"`
	IsStaff     bool       `gorm:"not null" json:"is_staff"`
	IsSuperuser bool       `gorm:"not null" json:"is_superuser"`
	IsActive    bool       `gorm:"not null" json:"is_active"`
	LastLogin   *time.Time `json:"last_login"`
	DateJoined  time.Time  `gorm:"autoCreateTime;index" json:"date_joined"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsAdmin reports whether the account receives administrator notifications.
func (u User) IsAdmin() bool {
	return u.IsSuperuser
}

func (u User) IsPrivileged() bool {
	return u.IsStaff || u.IsSuperuser
}

func (u *User) SetPassword(plain string) error {
	hashed, err := utils.HashPassword(plain)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

// CheckPassword reports whether plain matches the stored bcrypt hash.
func (u User) CheckPassword(plain string) bool {
	if u.Password == "" {
		return false
	}
	return utils.ComparePassword(u.Password, plain) == nil
}

// BeforeSave refuses to elevate an account that backs a producer.
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.TrimSpace(u.Email)
	if u.ID == 0 || !u.IsPrivileged() {
		return nil
	}
	var n int64
	if err := tx.Session(&gorm.Session{NewDB: true}).Model(&Producer{}).Where("user_id = ?", u.ID).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrProducerPrivileged
	}
	return nil
}
