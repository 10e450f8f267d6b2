package repository

import (
	"context"
	"time"

	"github.com/bitfantasy/partstock/internal/stock/entity"
	"gorm.io/gorm"
)

type StockRepository struct {
	db *gorm.DB
}

func NewStockRepository(db *gorm.DB) *StockRepository {
	return &StockRepository{db: db}
}

func (r *StockRepository) DB() *gorm.DB {
	return r.db
}

// Create 创建库存记录
func (r *StockRepository) Create(ctx context.Context, item *entity.StockItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// FindByID 根据ID查找库存记录
func (r *StockRepository) FindByID(ctx context.Context, id string) (*entity.StockItem, error) {
	var item entity.StockItem
	err := r.db.WithContext(ctx).Preload("Location").First(&item, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Update 更新库存记录
func (r *StockRepository) Update(ctx context.Context, item *entity.StockItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// ListByPart 查询零件的库存记录
func (r *StockRepository) ListByPart(ctx context.Context, partID string) ([]entity.StockItem, error) {
	var items []entity.StockItem
	err := r.db.WithContext(ctx).
		Preload("Location").
		Where("part_id = ?", partID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// SumInStock 统计一组零件的在库数量（仅计入库状态、未发货记录）
func (r *StockRepository) SumInStock(ctx context.Context, partIDs []string) (float64, error) {
	if len(partIDs) == 0 {
		return 0, nil
	}
	var total float64
	err := r.db.WithContext(ctx).Model(&entity.StockItem{}).
		Where("part_id IN ? AND status IN ? AND customer_id IS NULL", partIDs, entity.InStockStatuses).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return total, err
}

// SerialRecord 序列号及其创建时间
type SerialRecord struct {
	Serial    string    `gorm:"column:serial"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// ListSerials 查询一组零件的全部序列号（按创建时间排序）
func (r *StockRepository) ListSerials(ctx context.Context, partIDs []string) ([]SerialRecord, error) {
	if len(partIDs) == 0 {
		return nil, nil
	}
	var records []SerialRecord
	err := r.db.WithContext(ctx).Model(&entity.StockItem{}).
		Where("part_id IN ? AND serial IS NOT NULL", partIDs).
		Order("created_at ASC").
		Select("serial, created_at").
		Scan(&records).Error
	return records, err
}

// SerialExists 序列号在一组零件内是否已占用
func (r *StockRepository) SerialExists(ctx context.Context, partIDs []string, serial string) (bool, error) {
	if len(partIDs) == 0 {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.StockItem{}).
		Where("part_id IN ? AND serial = ?", partIDs, serial).
		Count(&count).Error
	return count > 0, err
}

// CreateLocation 创建库位
func (r *StockRepository) CreateLocation(ctx context.Context, loc *entity.StockLocation) error {
	return r.db.WithContext(ctx).Create(loc).Error
}

// FindLocationByID 根据ID查找库位
func (r *StockRepository) FindLocationByID(ctx context.Context, id string) (*entity.StockLocation, error) {
	var loc entity.StockLocation
	err := r.db.WithContext(ctx).First(&loc, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &loc, nil
}
