package repository

import (
	"context"

	"github.com/bitfantasy/partstock/internal/order/entity"
	"gorm.io/gorm"
)

type BuildRepository struct {
	db *gorm.DB
}

func NewBuildRepository(db *gorm.DB) *BuildRepository {
	return &BuildRepository{db: db}
}

func (r *BuildRepository) DB() *gorm.DB {
	return r.db
}

// Create 创建工单
func (r *BuildRepository) Create(ctx context.Context, build *entity.BuildOrder) error {
	return r.db.WithContext(ctx).Create(build).Error
}

// FindByID 根据ID查找工单
func (r *BuildRepository) FindByID(ctx context.Context, id string) (*entity.BuildOrder, error) {
	var build entity.BuildOrder
	err := r.db.WithContext(ctx).Preload("Allocations").First(&build, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &build, nil
}

// Update 更新工单
func (r *BuildRepository) Update(ctx context.Context, build *entity.BuildOrder) error {
	return r.db.WithContext(ctx).Save(build).Error
}

// ListActiveByPart 查询零件的在产工单
func (r *BuildRepository) ListActiveByPart(ctx context.Context, partID string) ([]entity.BuildOrder, error) {
	var builds []entity.BuildOrder
	err := r.db.WithContext(ctx).
		Where("part_id = ? AND status IN ?", partID, entity.ActiveBuildStatuses).
		Order("created_at ASC").
		Find(&builds).Error
	return builds, err
}

// SumActiveQuantity 零件在产工单的计划总量（不扣减已完工部分）
func (r *BuildRepository) SumActiveQuantity(ctx context.Context, partID string) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&entity.BuildOrder{}).
		Where("part_id = ? AND status IN ?", partID, entity.ActiveBuildStatuses).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return total, err
}

// SumActiveRemaining 零件在产工单的剩余待产总量
func (r *BuildRepository) SumActiveRemaining(ctx context.Context, partID string) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&entity.BuildOrder{}).
		Where("part_id = ? AND status IN ?", partID, entity.ActiveBuildStatuses).
		Select("COALESCE(SUM(quantity - completed), 0)").
		Scan(&total).Error
	return total, err
}

// SumAllocatedForPart 在产工单对某零件库存的占用总量
func (r *BuildRepository) SumAllocatedForPart(ctx context.Context, partID string) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&entity.BuildItem{}).
		Joins("JOIN build_orders ON build_orders.id = build_items.build_id").
		Joins("JOIN stock_items ON stock_items.id = build_items.stock_item_id").
		Where("stock_items.part_id = ? AND build_orders.status IN ?", partID, entity.ActiveBuildStatuses).
		Select("COALESCE(SUM(build_items.quantity), 0)").
		Scan(&total).Error
	return total, err
}

// CreateAllocation 创建工单库存占用
func (r *BuildRepository) CreateAllocation(ctx context.Context, item *entity.BuildItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}
