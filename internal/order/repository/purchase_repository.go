package repository

import (
	"context"

	"github.com/bitfantasy/partstock/internal/order/entity"
	"gorm.io/gorm"
)

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) DB() *gorm.DB {
	return r.db
}

// Create 创建采购订单
func (r *PurchaseRepository) Create(ctx context.Context, order *entity.PurchaseOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID 根据ID查找采购订单
func (r *PurchaseRepository) FindByID(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	var order entity.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Supplier").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Update 更新采购订单
func (r *PurchaseRepository) Update(ctx context.Context, order *entity.PurchaseOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

// CreateLine 创建采购订单行
func (r *PurchaseRepository) CreateLine(ctx context.Context, line *entity.PurchaseOrderLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

// UpdateLine 更新采购订单行
func (r *PurchaseRepository) UpdateLine(ctx context.Context, line *entity.PurchaseOrderLine) error {
	return r.db.WithContext(ctx).Save(line).Error
}

// SumOnOrderForPart 某零件在途采购量：未结订单 sum(下单) - sum(已收)，各自向0取底
func (r *PurchaseRepository) SumOnOrderForPart(ctx context.Context, partID string) (float64, error) {
	var row struct {
		Ordered  float64 `gorm:"column:ordered"`
		Received float64 `gorm:"column:received"`
	}
	err := r.db.WithContext(ctx).Model(&entity.PurchaseOrderLine{}).
		Joins("JOIN purchase_orders ON purchase_orders.id = purchase_order_lines.order_id").
		Joins("JOIN supplier_parts ON supplier_parts.id = purchase_order_lines.supplier_part_id").
		Where("supplier_parts.part_id = ? AND purchase_orders.status IN ?", partID, entity.OpenPurchaseStatuses).
		Select("COALESCE(SUM(purchase_order_lines.quantity), 0) AS ordered, COALESCE(SUM(purchase_order_lines.received), 0) AS received").
		Scan(&row).Error
	if err != nil {
		return 0, err
	}
	return row.Ordered - row.Received, nil
}
