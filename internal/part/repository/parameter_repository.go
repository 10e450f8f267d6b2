package repository

import (
	"context"

	"github.com/bitfantasy/partstock/internal/part/entity"
	"gorm.io/gorm"
)

type ParameterRepository struct {
	db *gorm.DB
}

func NewParameterRepository(db *gorm.DB) *ParameterRepository {
	return &ParameterRepository{db: db}
}

func (r *ParameterRepository) DB() *gorm.DB {
	return r.db
}

// Create 创建参数
func (r *ParameterRepository) Create(ctx context.Context, p *entity.PartParameter) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Update 更新参数
func (r *ParameterRepository) Update(ctx context.Context, p *entity.PartParameter) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// Delete 删除参数
func (r *ParameterRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&entity.PartParameter{}, "id = ?", id).Error
}

// DeleteByPart 删除零件全部参数
func (r *ParameterRepository) DeleteByPart(ctx context.Context, partID string) error {
	return r.db.WithContext(ctx).Delete(&entity.PartParameter{}, "part_id = ?", partID).Error
}

// ListByPart 查询零件参数（按模板名排序）
func (r *ParameterRepository) ListByPart(ctx context.Context, partID string) ([]entity.PartParameter, error) {
	var params []entity.PartParameter
	err := r.db.WithContext(ctx).
		Preload("Template").
		Joins("JOIN part_parameter_templates ON part_parameter_templates.id = part_parameters.template_id").
		Where("part_parameters.part_id = ?", partID).
		Order("part_parameter_templates.name ASC").
		Find(&params).Error
	return params, err
}

// FindByPartAndTemplate 查找零件在某模板下的参数
func (r *ParameterRepository) FindByPartAndTemplate(ctx context.Context, partID, templateID string) (*entity.PartParameter, error) {
	var p entity.PartParameter
	err := r.db.WithContext(ctx).
		Where("part_id = ? AND template_id = ?", partID, templateID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateTemplate 创建参数模板
func (r *ParameterRepository) CreateTemplate(ctx context.Context, t *entity.PartParameterTemplate) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// FindTemplateByID 根据ID查找参数模板
func (r *ParameterRepository) FindTemplateByID(ctx context.Context, id string) (*entity.PartParameterTemplate, error) {
	var t entity.PartParameterTemplate
	err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FindTemplateByName 按名称查找参数模板（忽略大小写）
func (r *ParameterRepository) FindTemplateByName(ctx context.Context, name string) (*entity.PartParameterTemplate, error) {
	var t entity.PartParameterTemplate
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = LOWER(?)", name).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTemplates 查询全部参数模板
func (r *ParameterRepository) ListTemplates(ctx context.Context) ([]entity.PartParameterTemplate, error) {
	var templates []entity.PartParameterTemplate
	err := r.db.WithContext(ctx).Order("name ASC").Find(&templates).Error
	return templates, err
}
