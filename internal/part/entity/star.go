package entity

import "time"

// PartStar 用户收藏，(part, user) 唯一
type PartStar struct {
	ID     string `json:"id" gorm:"primaryKey;size:32"`
	PartID string `json:"part_id" gorm:"size:32;not null;uniqueIndex:idx_part_star"`
	UserID string `json:"user_id" gorm:"size:32;not null;uniqueIndex:idx_part_star"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	Part *Part `json:"part,omitempty" gorm:"foreignKey:PartID"`
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (PartStar) TableName() string {
	return "part_stars"
}
