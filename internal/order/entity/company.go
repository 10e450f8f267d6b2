package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Company 往来单位（供应商/客户）
type Company struct {
	ID          string `json:"id" gorm:"primaryKey;size:32"`
	Name        string `json:"name" gorm:"size:128;not null"`
	Description string `json:"description,omitempty"`
	Website     string `json:"website,omitempty" gorm:"size:256"`
	IsSupplier  bool   `json:"is_supplier"`
	IsCustomer  bool   `json:"is_customer"`
	Active      bool   `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Company) TableName() string {
	return "companies"
}

// SupplierPart 供应商货源（零件在某供应商处的报价对象）
type SupplierPart struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	PartID     string `json:"part_id" gorm:"size:32;not null;index"`
	SupplierID string `json:"supplier_id" gorm:"size:32;not null;index"`
	SKU        string `json:"sku" gorm:"size:64;not null"` // 供应商料号
	Note       string `json:"note,omitempty" gorm:"size:256"`
	Packaging  string `json:"packaging,omitempty" gorm:"size:64"`
	Active     bool   `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Supplier    *Company             `json:"supplier,omitempty" gorm:"foreignKey:SupplierID"`
	PriceBreaks []SupplierPriceBreak `json:"price_breaks,omitempty" gorm:"foreignKey:SupplierPartID"`
}

func (SupplierPart) TableName() string {
	return "supplier_parts"
}

// UnitPriceFor 给定数量取最优档位单价（最大的不超过qty的档）。
// 需要预加载PriceBreaks；无可用档位返回nil。
func (sp *SupplierPart) UnitPriceFor(qty float64) *decimal.Decimal {
	var best *SupplierPriceBreak
	for i := range sp.PriceBreaks {
		pb := &sp.PriceBreaks[i]
		if pb.Quantity > qty {
			continue
		}
		if best == nil || pb.Quantity > best.Quantity {
			best = pb
		}
	}
	if best == nil {
		return nil
	}
	price := best.Price
	return &price
}

// SupplierPriceBreak 数量阶梯价
type SupplierPriceBreak struct {
	ID             string          `json:"id" gorm:"primaryKey;size:32"`
	SupplierPartID string          `json:"supplier_part_id" gorm:"size:32;not null;index"`
	Quantity       float64         `json:"quantity" gorm:"type:numeric(15,4);not null;default:1"`
	Price          decimal.Decimal `json:"price" gorm:"type:numeric(15,4);not null"`
	Currency       string          `json:"currency" gorm:"size:8;not null;default:CNY"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SupplierPriceBreak) TableName() string {
	return "supplier_price_breaks"
}
