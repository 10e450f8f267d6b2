package entity

import "time"

// User 系统用户（收藏、BOM签核人）
type User struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	Username string `json:"username" gorm:"size:64;not null;uniqueIndex"`
	Name     string `json:"name" gorm:"size:64;not null"`
	Email    string `json:"email,omitempty" gorm:"size:128"`
	Status   string `json:"status" gorm:"size:16;not null;default:active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
