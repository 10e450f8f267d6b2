package entity

import "time"

// 库存状态
const (
	StockStatusOK        = "OK"
	StockStatusAttention = "ATTENTION"
	StockStatusDamaged   = "DAMAGED"
	StockStatusDestroyed = "DESTROYED"
	StockStatusLost      = "LOST"
	StockStatusRejected  = "REJECTED"
)

// InStockStatuses 计入可用库存的状态
var InStockStatuses = []string{StockStatusOK, StockStatusAttention, StockStatusDamaged}

// StockLocation 库位（邻接表树）
type StockLocation struct {
	ID          string  `json:"id" gorm:"primaryKey;size:32"`
	Name        string  `json:"name" gorm:"size:128;not null"`
	Description string  `json:"description,omitempty"`
	ParentID    *string `json:"parent_id,omitempty" gorm:"size:32;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Parent *StockLocation `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
}

func (StockLocation) TableName() string {
	return "stock_locations"
}

// StockItem 库存记录
type StockItem struct {
	ID         string  `json:"id" gorm:"primaryKey;size:32"`
	PartID     string  `json:"part_id" gorm:"size:32;not null;index"`
	LocationID *string `json:"location_id,omitempty" gorm:"size:32;index"`
	Quantity   float64 `json:"quantity" gorm:"type:numeric(15,4);not null;default:0"`
	Serial     *string `json:"serial,omitempty" gorm:"size:64;index"`
	Status     string  `json:"status" gorm:"size:16;not null;default:OK"`
	// CustomerID 非空表示已发货给客户，不再计入库存
	CustomerID *string `json:"customer_id,omitempty" gorm:"size:32"`
	Batch      string  `json:"batch,omitempty" gorm:"size:64"`
	Notes      string  `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Location *StockLocation `json:"location,omitempty" gorm:"foreignKey:LocationID"`
}

func (StockItem) TableName() string {
	return "stock_items"
}

// InStock 是否计入可用库存
func (s *StockItem) InStock() bool {
	if s.CustomerID != nil {
		return false
	}
	for _, code := range InStockStatuses {
		if s.Status == code {
			return true
		}
	}
	return false
}
