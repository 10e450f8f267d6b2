package repository

import (
	"context"

	"github.com/bitfantasy/partstock/internal/part/entity"
	"gorm.io/gorm"
)

type PartRepository struct {
	db *gorm.DB
}

func NewPartRepository(db *gorm.DB) *PartRepository {
	return &PartRepository{db: db}
}

func (r *PartRepository) DB() *gorm.DB {
	return r.db
}

// Create 创建零件
func (r *PartRepository) Create(ctx context.Context, part *entity.Part) error {
	return r.db.WithContext(ctx).Create(part).Error
}

// FindByID 根据ID查找零件
func (r *PartRepository) FindByID(ctx context.Context, id string) (*entity.Part, error) {
	var part entity.Part
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("VariantOf").
		First(&part, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &part, nil
}

// Update 更新零件
func (r *PartRepository) Update(ctx context.Context, part *entity.Part) error {
	return r.db.WithContext(ctx).Save(part).Error
}

// UpdateFields 更新零件的部分字段
func (r *PartRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&entity.Part{}).Where("id = ?", id).Updates(fields).Error
}

// ListParams 零件列表筛选参数
type ListParams struct {
	CategoryID string
	Keyword    string
	Active     *bool
	IsTemplate *bool
	Assembly   *bool
	Page       int
	PageSize   int
}

// List 分页查询零件
func (r *PartRepository) List(ctx context.Context, params ListParams) ([]entity.Part, int64, error) {
	if params.PageSize <= 0 || params.PageSize > 100 {
		params.PageSize = 20
	}
	if params.Page <= 0 {
		params.Page = 1
	}

	query := r.db.WithContext(ctx).Model(&entity.Part{})
	if params.CategoryID != "" {
		query = query.Where("category_id = ?", params.CategoryID)
	}
	if params.Keyword != "" {
		like := "%" + params.Keyword + "%"
		query = query.Where(
			"LOWER(name) LIKE LOWER(?) OR LOWER(ipn) LIKE LOWER(?) OR LOWER(keywords) LIKE LOWER(?)",
			like, like, like,
		)
	}
	if params.Active != nil {
		query = query.Where("active = ?", *params.Active)
	}
	if params.IsTemplate != nil {
		query = query.Where("is_template = ?", *params.IsTemplate)
	}
	if params.Assembly != nil {
		query = query.Where("assembly = ?", *params.Assembly)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var parts []entity.Part
	err := query.
		Preload("Category").
		Order("name ASC").
		Offset((params.Page - 1) * params.PageSize).
		Limit(params.PageSize).
		Find(&parts).Error
	return parts, total, err
}

// FindDuplicate 按(名称, 料号, 版本)忽略大小写查找重复零件
func (r *PartRepository) FindDuplicate(ctx context.Context, name, ipn, revision, excludeID string) (*entity.Part, error) {
	var part entity.Part
	query := r.db.WithContext(ctx).
		Where("LOWER(name) = LOWER(?) AND LOWER(ipn) = LOWER(?) AND LOWER(revision) = LOWER(?)",
			name, ipn, revision)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.First(&part).Error
	if err != nil {
		return nil, err
	}
	return &part, nil
}

// CountByIPN 统计相同料号的零件数（忽略大小写）
func (r *PartRepository) CountByIPN(ctx context.Context, ipn, excludeID string) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&entity.Part{}).
		Where("LOWER(ipn) = LOWER(?)", ipn)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Count(&count).Error
	return count, err
}

// ListVariants 查询直接变体
func (r *PartRepository) ListVariants(ctx context.Context, parentID string) ([]entity.Part, error) {
	var parts []entity.Part
	err := r.db.WithContext(ctx).
		Where("variant_of_id = ?", parentID).
		Order("name ASC").
		Find(&parts).Error
	return parts, err
}

// ListIDsByTree 查询同一变体树的所有零件ID
func (r *PartRepository) ListIDsByTree(ctx context.Context, treeID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&entity.Part{}).
		Where("tree_id = ?", treeID).
		Pluck("id", &ids).Error
	return ids, err
}

// UpdateTreeID 批量更新树标识（变体迁移时使用）
func (r *PartRepository) UpdateTreeID(ctx context.Context, ids []string, treeID string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&entity.Part{}).
		Where("id IN ?", ids).
		Update("tree_id", treeID).Error
}
