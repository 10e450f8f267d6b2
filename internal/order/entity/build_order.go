package entity

import "time"

// 生产工单状态
const (
	BuildStatusPending    = "pending"
	BuildStatusProduction = "production"
	BuildStatusComplete   = "complete"
	BuildStatusCancelled  = "cancelled"
)

// ActiveBuildStatuses 在产状态（占用子件、计入在制数量）
var ActiveBuildStatuses = []string{BuildStatusPending, BuildStatusProduction}

// BuildOrder 生产工单
type BuildOrder struct {
	ID        string  `json:"id" gorm:"primaryKey;size:32"`
	Reference string  `json:"reference" gorm:"size:64;not null;uniqueIndex"`
	PartID    string  `json:"part_id" gorm:"size:32;not null;index"`
	Title     string  `json:"title,omitempty" gorm:"size:256"`
	Quantity  float64 `json:"quantity" gorm:"type:numeric(15,4);not null"`
	Completed float64 `json:"completed" gorm:"type:numeric(15,4);not null;default:0"`
	Status    string  `json:"status" gorm:"size:16;not null;default:pending"`
	Notes     string  `json:"notes,omitempty"`

	CreatedBy   string     `json:"created_by,omitempty" gorm:"size:32"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Relations
	Allocations []BuildItem `json:"allocations,omitempty" gorm:"foreignKey:BuildID"`
}

func (BuildOrder) TableName() string {
	return "build_orders"
}

// Remaining 剩余待产数量
func (b *BuildOrder) Remaining() float64 {
	return b.Quantity - b.Completed
}

// IsActive 是否在产
func (b *BuildOrder) IsActive() bool {
	return b.Status == BuildStatusPending || b.Status == BuildStatusProduction
}

// BuildItem 工单对库存的占用分配
type BuildItem struct {
	ID          string  `json:"id" gorm:"primaryKey;size:32"`
	BuildID     string  `json:"build_id" gorm:"size:32;not null;index"`
	StockItemID string  `json:"stock_item_id" gorm:"size:32;not null;index"`
	Quantity    float64 `json:"quantity" gorm:"type:numeric(15,4);not null"`

	CreatedAt time.Time `json:"created_at"`
}

func (BuildItem) TableName() string {
	return "build_items"
}
