package entity

import "time"

// 采购订单状态
const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusPlaced    = "placed"
	PurchaseStatusComplete  = "complete"
	PurchaseStatusCancelled = "cancelled"
)

// OpenPurchaseStatuses 在途状态（计入on-order数量）
var OpenPurchaseStatuses = []string{PurchaseStatusPending, PurchaseStatusPlaced}

// PurchaseOrder 采购订单
type PurchaseOrder struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	Reference  string `json:"reference" gorm:"size:64;not null;uniqueIndex"`
	SupplierID string `json:"supplier_id" gorm:"size:32;not null;index"`
	Status     string `json:"status" gorm:"size:16;not null;default:pending"`
	Notes      string `json:"notes,omitempty"`

	CreatedBy  string     `json:"created_by,omitempty" gorm:"size:32"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	IssuedAt   *time.Time `json:"issued_at,omitempty"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`

	// Relations
	Supplier *Company            `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
	Lines    []PurchaseOrderLine `json:"lines,omitempty" gorm:"foreignKey:OrderID"`
}

func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

// PurchaseOrderLine 采购订单行（挂供应商货源，不直接挂零件）
type PurchaseOrderLine struct {
	ID             string  `json:"id" gorm:"primaryKey;size:32"`
	OrderID        string  `json:"order_id" gorm:"size:32;not null;index"`
	SupplierPartID string  `json:"supplier_part_id" gorm:"size:32;not null;index"`
	Quantity       float64 `json:"quantity" gorm:"type:numeric(15,4);not null"`
	Received       float64 `json:"received" gorm:"type:numeric(15,4);not null;default:0"`
	Notes          string  `json:"notes,omitempty" gorm:"size:256"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Order        *PurchaseOrder `json:"order,omitempty" gorm:"foreignKey:OrderID"`
	SupplierPart *SupplierPart  `json:"supplier_part,omitempty" gorm:"foreignKey:SupplierPartID"`
}

func (PurchaseOrderLine) TableName() string {
	return "purchase_order_lines"
}
