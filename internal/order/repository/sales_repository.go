package repository

import (
	"context"

	"github.com/bitfantasy/partstock/internal/order/entity"
	"gorm.io/gorm"
)

type SalesRepository struct {
	db *gorm.DB
}

func NewSalesRepository(db *gorm.DB) *SalesRepository {
	return &SalesRepository{db: db}
}

func (r *SalesRepository) DB() *gorm.DB {
	return r.db
}

// Create 创建销售订单
func (r *SalesRepository) Create(ctx context.Context, order *entity.SalesOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID 根据ID查找销售订单
func (r *SalesRepository) FindByID(ctx context.Context, id string) (*entity.SalesOrder, error) {
	var order entity.SalesOrder
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Preload("Customer").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateLine 创建订单行
func (r *SalesRepository) CreateLine(ctx context.Context, line *entity.SalesOrderLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

// CreateAllocation 创建订单库存占用
func (r *SalesRepository) CreateAllocation(ctx context.Context, alloc *entity.SalesOrderAllocation) error {
	return r.db.WithContext(ctx).Create(alloc).Error
}

// SumAllocatedForPart 未出货销售订单对某零件库存的占用总量
func (r *SalesRepository) SumAllocatedForPart(ctx context.Context, partID string) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&entity.SalesOrderAllocation{}).
		Joins("JOIN sales_order_lines ON sales_order_lines.id = sales_order_allocations.line_id").
		Joins("JOIN sales_orders ON sales_orders.id = sales_order_lines.order_id").
		Where("sales_order_lines.part_id = ? AND sales_orders.status IN ?", partID, entity.OpenSalesStatuses).
		Select("COALESCE(SUM(sales_order_allocations.quantity), 0)").
		Scan(&total).Error
	return total, err
}

// SumOpenLineQuantityForPart 未出货销售订单行对某零件的需求总量
func (r *SalesRepository) SumOpenLineQuantityForPart(ctx context.Context, partID string) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&entity.SalesOrderLine{}).
		Joins("JOIN sales_orders ON sales_orders.id = sales_order_lines.order_id").
		Where("sales_order_lines.part_id = ? AND sales_orders.status IN ?", partID, entity.OpenSalesStatuses).
		Select("COALESCE(SUM(sales_order_lines.quantity), 0)").
		Scan(&total).Error
	return total, err
}
