package repository

import (
	"context"

	"github.com/bitfantasy/partstock/internal/part/entity"
	"gorm.io/gorm"
)

type BOMRepository struct {
	db *gorm.DB
}

func NewBOMRepository(db *gorm.DB) *BOMRepository {
	return &BOMRepository{db: db}
}

func (r *BOMRepository) DB() *gorm.DB {
	return r.db
}

// CreateItem 创建BOM行
func (r *BOMRepository) CreateItem(ctx context.Context, item *entity.BomItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// FindItemByID 根据ID查找BOM行
func (r *BOMRepository) FindItemByID(ctx context.Context, id string) (*entity.BomItem, error) {
	var item entity.BomItem
	err := r.db.WithContext(ctx).Preload("SubPart").First(&item, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem 更新BOM行
func (r *BOMRepository) UpdateItem(ctx context.Context, item *entity.BomItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// DeleteItem 删除BOM行
func (r *BOMRepository) DeleteItem(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&entity.BomItem{}, "id = ?", id).Error
}

// ListByPart 查询零件直属BOM行（按子件ID排序保证枚举顺序稳定）
func (r *BOMRepository) ListByPart(ctx context.Context, partID string) ([]entity.BomItem, error) {
	var items []entity.BomItem
	err := r.db.WithContext(ctx).
		Preload("SubPart").
		Where("part_id = ?", partID).
		Order("sub_part_id ASC").
		Find(&items).Error
	return items, err
}

// ListInheritedByPart 查询零件上标记下发的BOM行
func (r *BOMRepository) ListInheritedByPart(ctx context.Context, partID string) ([]entity.BomItem, error) {
	var items []entity.BomItem
	err := r.db.WithContext(ctx).
		Preload("SubPart").
		Where("part_id = ? AND inherited = ?", partID, true).
		Order("sub_part_id ASC").
		Find(&items).Error
	return items, err
}

// ListBySubPart 查询引用某子件的BOM行
func (r *BOMRepository) ListBySubPart(ctx context.Context, subPartID string) ([]entity.BomItem, error) {
	var items []entity.BomItem
	err := r.db.WithContext(ctx).
		Preload("Part").
		Where("sub_part_id = ?", subPartID).
		Order("part_id ASC").
		Find(&items).Error
	return items, err
}

// FindByPartAndSubPart 查找零件对某子件的BOM行
func (r *BOMRepository) FindByPartAndSubPart(ctx context.Context, partID, subPartID string) (*entity.BomItem, error) {
	var item entity.BomItem
	err := r.db.WithContext(ctx).
		Where("part_id = ? AND sub_part_id = ?", partID, subPartID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteByPart 删除零件全部直属BOM行
func (r *BOMRepository) DeleteByPart(ctx context.Context, partID string) error {
	return r.db.WithContext(ctx).Delete(&entity.BomItem{}, "part_id = ?", partID).Error
}

// DeleteByPartAndSubPart 删除零件对某子件的BOM行
func (r *BOMRepository) DeleteByPartAndSubPart(ctx context.Context, partID, subPartID string) error {
	return r.db.WithContext(ctx).Delete(&entity.BomItem{}, "part_id = ? AND sub_part_id = ?", partID, subPartID).Error
}

// CountByPart 统计零件直属BOM行数
func (r *BOMRepository) CountByPart(ctx context.Context, partID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.BomItem{}).Where("part_id = ?", partID).Count(&count).Error
	return count, err
}
