package repository

import (
	"context"

	"github.com/bitfantasy/partstock/internal/order/entity"
	"gorm.io/gorm"
)

type SupplierRepository struct {
	db *gorm.DB
}

func NewSupplierRepository(db *gorm.DB) *SupplierRepository {
	return &SupplierRepository{db: db}
}

func (r *SupplierRepository) DB() *gorm.DB {
	return r.db
}

// CreateCompany 创建往来单位
func (r *SupplierRepository) CreateCompany(ctx context.Context, company *entity.Company) error {
	return r.db.WithContext(ctx).Create(company).Error
}

// FindCompanyByID 根据ID查找往来单位
func (r *SupplierRepository) FindCompanyByID(ctx context.Context, id string) (*entity.Company, error) {
	var company entity.Company
	err := r.db.WithContext(ctx).First(&company, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

// ListSuppliers 查询启用的供应商
func (r *SupplierRepository) ListSuppliers(ctx context.Context) ([]entity.Company, error) {
	var companies []entity.Company
	err := r.db.WithContext(ctx).
		Where("is_supplier = ? AND active = ?", true, true).
		Order("name ASC").
		Find(&companies).Error
	return companies, err
}

// CreateSupplierPart 创建供应商货源
func (r *SupplierRepository) CreateSupplierPart(ctx context.Context, sp *entity.SupplierPart) error {
	return r.db.WithContext(ctx).Create(sp).Error
}

// FindSupplierPartByID 根据ID查找供应商货源
func (r *SupplierRepository) FindSupplierPartByID(ctx context.Context, id string) (*entity.SupplierPart, error) {
	var sp entity.SupplierPart
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Preload("PriceBreaks").
		First(&sp, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

// ListActiveByPart 查询零件的有效供应商货源（含阶梯价，供应商需启用）
func (r *SupplierRepository) ListActiveByPart(ctx context.Context, partID string) ([]entity.SupplierPart, error) {
	var sps []entity.SupplierPart
	err := r.db.WithContext(ctx).
		Preload("Supplier").
		Preload("PriceBreaks").
		Joins("JOIN companies ON companies.id = supplier_parts.supplier_id").
		Where("supplier_parts.part_id = ? AND supplier_parts.active = ? AND companies.active = ?", partID, true, true).
		Order("supplier_parts.sku ASC").
		Find(&sps).Error
	return sps, err
}

// CreatePriceBreak 创建阶梯价
func (r *SupplierRepository) CreatePriceBreak(ctx context.Context, pb *entity.SupplierPriceBreak) error {
	return r.db.WithContext(ctx).Create(pb).Error
}

// DeletePriceBreak 删除阶梯价
func (r *SupplierRepository) DeletePriceBreak(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&entity.SupplierPriceBreak{}, "id = ?", id).Error
}
