package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bitfantasy/partstock/internal/config"
	orderrepo "github.com/bitfantasy/partstock/internal/order/repository"
	"github.com/bitfantasy/partstock/internal/part/entity"
	"github.com/bitfantasy/partstock/internal/part/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 服务集合
type Services struct {
	Part      *PartService
	Category  *CategoryService
	BOM       *BOMService
	Parameter *ParameterService
	Pricing   *PricingService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, orderRepos *orderrepo.Repositories, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	bomSvc := NewBOMService(db, repos)
	paramSvc := NewParameterService(db, repos)
	return &Services{
		Part:      NewPartService(repos, cfg.Part, bomSvc, paramSvc),
		Category:  NewCategoryService(repos),
		BOM:       bomSvc,
		Parameter: paramSvc,
		Pricing:   NewPricingService(repos, orderRepos.Supplier, bomSvc, rdb, logger),
	}
}

// CategoryService 分类服务
type CategoryService struct {
	categoryRepo *repository.CategoryRepository
	paramRepo    *repository.ParameterRepository
}

// NewCategoryService 创建分类服务
func NewCategoryService(repos *repository.Repositories) *CategoryService {
	return &CategoryService{
		categoryRepo: repos.Category,
		paramRepo:    repos.Parameter,
	}
}

// CreateCategoryInput 创建分类请求
type CreateCategoryInput struct {
	Name            string  `json:"name" binding:"required"`
	Description     string  `json:"description"`
	ParentID        *string `json:"parent_id"`
	DefaultKeywords string  `json:"default_keywords"`
}

// Create 创建分类；路径串按父链拼接
func (s *CategoryService) Create(ctx context.Context, input *CreateCategoryInput) (*entity.PartCategory, error) {
	if err := validateName(input.Name); err != nil {
		return nil, err
	}

	pathstring := input.Name
	if input.ParentID != nil {
		parent, err := s.categoryRepo.FindByID(ctx, *input.ParentID)
		if err != nil {
			return nil, fmt.Errorf("parent category not found: %w", err)
		}
		pathstring = parent.Pathstring + "/" + input.Name
	}

	category := &entity.PartCategory{
		ID:              uuid.New().String()[:32],
		Name:            input.Name,
		Description:     input.Description,
		ParentID:        input.ParentID,
		Pathstring:      pathstring,
		DefaultKeywords: input.DefaultKeywords,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return category, nil
}

// Get 获取分类
func (s *CategoryService) Get(ctx context.Context, id string) (*entity.PartCategory, error) {
	return s.categoryRepo.FindByID(ctx, id)
}

// List 查询全部分类
func (s *CategoryService) List(ctx context.Context) ([]entity.PartCategory, error) {
	return s.categoryRepo.List(ctx)
}

// ListChildren 查询子分类
func (s *CategoryService) ListChildren(ctx context.Context, parentID string) ([]entity.PartCategory, error) {
	return s.categoryRepo.ListChildren(ctx, parentID)
}

// AttachTemplateInput 分类挂接参数模板请求
type AttachTemplateInput struct {
	TemplateID   string `json:"template_id" binding:"required"`
	DefaultValue string `json:"default_value"`
}

// AttachTemplate 为分类挂接参数模板
func (s *CategoryService) AttachTemplate(ctx context.Context, categoryID string, input *AttachTemplateInput) (*entity.CategoryParameterTemplate, error) {
	if _, err := s.categoryRepo.FindByID(ctx, categoryID); err != nil {
		return nil, fmt.Errorf("category not found: %w", err)
	}
	if _, err := s.paramRepo.FindTemplateByID(ctx, input.TemplateID); err != nil {
		return nil, fmt.Errorf("template not found: %w", err)
	}

	link := &entity.CategoryParameterTemplate{
		ID:           uuid.New().String()[:32],
		CategoryID:   categoryID,
		TemplateID:   input.TemplateID,
		DefaultValue: input.DefaultValue,
	}
	if err := s.categoryRepo.CreateTemplate(ctx, link); err != nil {
		return nil, fmt.Errorf("attach template: %w", err)
	}
	return link, nil
}

// DetachTemplate 移除分类的参数模板
func (s *CategoryService) DetachTemplate(ctx context.Context, linkID string) error {
	return s.categoryRepo.DeleteTemplate(ctx, linkID)
}
