package entity

import "time"

// 销售订单状态
const (
	SalesStatusPending   = "pending"
	SalesStatusShipped   = "shipped"
	SalesStatusCancelled = "cancelled"
	SalesStatusReturned  = "returned"
)

// OpenSalesStatuses 未出货状态
var OpenSalesStatuses = []string{SalesStatusPending}

// SalesOrder 销售订单
type SalesOrder struct {
	ID         string  `json:"id" gorm:"primaryKey;size:32"`
	Reference  string  `json:"reference" gorm:"size:64;not null;uniqueIndex"`
	CustomerID *string `json:"customer_id,omitempty" gorm:"size:32;index"`
	Status     string  `json:"status" gorm:"size:16;not null;default:pending"`
	Notes      string  `json:"notes,omitempty"`

	CreatedBy string     `json:"created_by,omitempty" gorm:"size:32"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ShippedAt *time.Time `json:"shipped_at,omitempty"`

	// Relations
	Customer *Company         `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	Lines    []SalesOrderLine `json:"lines,omitempty" gorm:"foreignKey:OrderID"`
}

func (SalesOrder) TableName() string {
	return "sales_orders"
}

// SalesOrderLine 销售订单行
type SalesOrderLine struct {
	ID       string  `json:"id" gorm:"primaryKey;size:32"`
	OrderID  string  `json:"order_id" gorm:"size:32;not null;index"`
	PartID   string  `json:"part_id" gorm:"size:32;not null;index"`
	Quantity float64 `json:"quantity" gorm:"type:numeric(15,4);not null"`
	Shipped  float64 `json:"shipped" gorm:"type:numeric(15,4);not null;default:0"`
	Notes    string  `json:"notes,omitempty" gorm:"size:256"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Order       *SalesOrder            `json:"order,omitempty" gorm:"foreignKey:OrderID"`
	Allocations []SalesOrderAllocation `json:"allocations,omitempty" gorm:"foreignKey:LineID"`
}

func (SalesOrderLine) TableName() string {
	return "sales_order_lines"
}

// SalesOrderAllocation 销售订单对库存的占用分配
type SalesOrderAllocation struct {
	ID          string  `json:"id" gorm:"primaryKey;size:32"`
	LineID      string  `json:"line_id" gorm:"size:32;not null;index"`
	StockItemID string  `json:"stock_item_id" gorm:"size:32;not null;index"`
	Quantity    float64 `json:"quantity" gorm:"type:numeric(15,4);not null"`

	CreatedAt time.Time `json:"created_at"`
}

func (SalesOrderAllocation) TableName() string {
	return "sales_order_allocations"
}
