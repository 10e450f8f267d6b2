package repository

import (
	"context"

	"github.com/bitfantasy/partstock/internal/part/entity"
	"gorm.io/gorm"
)

type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) DB() *gorm.DB {
	return r.db
}

// Create 创建分类
func (r *CategoryRepository) Create(ctx context.Context, category *entity.PartCategory) error {
	return r.db.WithContext(ctx).Create(category).Error
}

// FindByID 根据ID查找分类
func (r *CategoryRepository) FindByID(ctx context.Context, id string) (*entity.PartCategory, error) {
	var category entity.PartCategory
	err := r.db.WithContext(ctx).Preload("Parent").First(&category, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// Update 更新分类
func (r *CategoryRepository) Update(ctx context.Context, category *entity.PartCategory) error {
	return r.db.WithContext(ctx).Save(category).Error
}

// List 查询全部分类
func (r *CategoryRepository) List(ctx context.Context) ([]entity.PartCategory, error) {
	var categories []entity.PartCategory
	err := r.db.WithContext(ctx).Order("pathstring ASC").Find(&categories).Error
	return categories, err
}

// ListChildren 查询子分类
func (r *CategoryRepository) ListChildren(ctx context.Context, parentID string) ([]entity.PartCategory, error) {
	var categories []entity.PartCategory
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("name ASC").
		Find(&categories).Error
	return categories, err
}

// ListTemplates 查询分类的参数模板
func (r *CategoryRepository) ListTemplates(ctx context.Context, categoryID string) ([]entity.CategoryParameterTemplate, error) {
	var templates []entity.CategoryParameterTemplate
	err := r.db.WithContext(ctx).
		Preload("Template").
		Where("category_id = ?", categoryID).
		Find(&templates).Error
	return templates, err
}

// CreateTemplate 创建分类参数模板
func (r *CategoryRepository) CreateTemplate(ctx context.Context, t *entity.CategoryParameterTemplate) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// DeleteTemplate 删除分类参数模板
func (r *CategoryRepository) DeleteTemplate(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&entity.CategoryParameterTemplate{}, "id = ?", id).Error
}
