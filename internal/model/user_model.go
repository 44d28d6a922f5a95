package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	Id                    uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username              string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash          string    `gorm:"type:varchar(255);not null"`
	FullName              string    `gorm:"type:varchar(255);not null"`
	Role                  string    `gorm:"type:varchar(50);not null;default:'student'"`
	DeptId                *string   `gorm:"type:varchar(100)"`
	IsActive              bool      `gorm:"default:true"`
	AiDailyUsage          int       `gorm:"default:0"`
	AiDailyUsageLastReset time.Time
	CreatedAt             time.Time      `gorm:"autoCreateTime"`
	UpdatedAt             time.Time      `gorm:"autoUpdateTime"`
	DeletedAt             gorm.DeletedAt `gorm:"index"`
}

func (User) TableName() string {
	return "users"
}
