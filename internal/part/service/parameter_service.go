package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/partstock/internal/part/entity"
	"github.com/bitfantasy/partstock/internal/part/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ParameterService struct {
	db           *gorm.DB
	paramRepo    *repository.ParameterRepository
	partRepo     *repository.PartRepository
	categoryRepo *repository.CategoryRepository
}

func NewParameterService(db *gorm.DB, repos *repository.Repositories) *ParameterService {
	return &ParameterService{
		db:           db,
		paramRepo:    repos.Parameter,
		partRepo:     repos.Part,
		categoryRepo: repos.Category,
	}
}

// CreateTemplateInput 创建参数模板请求
type CreateTemplateInput struct {
	Name  string `json:"name" binding:"required"`
	Units string `json:"units"`
}

// CreateTemplate 创建参数模板；名称忽略大小写唯一
func (s *ParameterService) CreateTemplate(ctx context.Context, input *CreateTemplateInput) (*entity.PartParameterTemplate, error) {
	if existing, err := s.paramRepo.FindTemplateByName(ctx, input.Name); err == nil {
		return nil, NewValidationError("name", fmt.Sprintf("参数模板已存在: %s", existing.Name))
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check template name: %w", err)
	}

	template := &entity.PartParameterTemplate{
		ID:        uuid.New().String()[:32],
		Name:      input.Name,
		Units:     input.Units,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.paramRepo.CreateTemplate(ctx, template); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}
	return template, nil
}

// ListTemplates 查询全部参数模板
func (s *ParameterService) ListTemplates(ctx context.Context) ([]entity.PartParameterTemplate, error) {
	return s.paramRepo.ListTemplates(ctx)
}

// AddInput 新增零件参数请求
type AddInput struct {
	TemplateID string `json:"template_id" binding:"required"`
	Value      string `json:"value" binding:"required"`
}

// Add 为零件添加参数；同一零件同一模板只允许一条
func (s *ParameterService) Add(ctx context.Context, partID string, input *AddInput) (*entity.PartParameter, error) {
	if _, err := s.partRepo.FindByID(ctx, partID); err != nil {
		return nil, fmt.Errorf("part not found: %w", err)
	}
	if _, err := s.paramRepo.FindTemplateByID(ctx, input.TemplateID); err != nil {
		return nil, fmt.Errorf("template not found: %w", err)
	}
	if _, err := s.paramRepo.FindByPartAndTemplate(ctx, partID, input.TemplateID); err == nil {
		return nil, NewValidationError("template_id", "该零件已有此参数")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check existing parameter: %w", err)
	}

	param := &entity.PartParameter{
		ID:         uuid.New().String()[:32],
		PartID:     partID,
		TemplateID: input.TemplateID,
		Value:      input.Value,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := s.paramRepo.Create(ctx, param); err != nil {
		return nil, fmt.Errorf("create parameter: %w", err)
	}
	return param, nil
}

// UpdateValue 更新参数值
func (s *ParameterService) UpdateValue(ctx context.Context, paramID, value string) (*entity.PartParameter, error) {
	var param entity.PartParameter
	if err := s.paramRepo.DB().WithContext(ctx).First(&param, "id = ?", paramID).Error; err != nil {
		return nil, fmt.Errorf("parameter not found: %w", err)
	}
	param.Value = value
	param.UpdatedAt = time.Now()
	if err := s.paramRepo.Update(ctx, &param); err != nil {
		return nil, fmt.Errorf("update parameter: %w", err)
	}
	return &param, nil
}

// Delete 删除参数
func (s *ParameterService) Delete(ctx context.Context, paramID string) error {
	return s.paramRepo.Delete(ctx, paramID)
}

// ListFor 查询零件参数
func (s *ParameterService) ListFor(ctx context.Context, partID string) ([]entity.PartParameter, error) {
	return s.paramRepo.ListByPart(ctx, partID)
}

// CopyFrom 从另一零件整体复制参数（先清空目标，整体事务）
func (s *ParameterService) CopyFrom(ctx context.Context, targetPartID, sourcePartID string) error {
	if targetPartID == sourcePartID {
		return NewValidationError("source_part_id", "不能从自身复制参数")
	}
	if _, err := s.partRepo.FindByID(ctx, sourcePartID); err != nil {
		return fmt.Errorf("source part not found: %w", err)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return copyParameters(ctx, tx, targetPartID, sourcePartID, true)
	})
	if err != nil {
		return fmt.Errorf("copy parameters: %w", err)
	}
	return nil
}

func copyParameters(ctx context.Context, tx *gorm.DB, targetPartID, sourcePartID string, clear bool) error {
	paramRepo := repository.NewParameterRepository(tx)
	params, err := paramRepo.ListByPart(ctx, sourcePartID)
	if err != nil {
		return err
	}
	if clear {
		if err := paramRepo.DeleteByPart(ctx, targetPartID); err != nil {
			return err
		}
	}
	for i := range params {
		copied := &entity.PartParameter{
			ID:         uuid.New().String()[:32],
			PartID:     targetPartID,
			TemplateID: params[i].TemplateID,
			Value:      params[i].Value,
			CreatedAt:  time.Now(),
			UpdatedAt:  time.Now(),
		}
		if err := paramRepo.Create(ctx, copied); err != nil {
			return err
		}
	}
	return nil
}

// TemplatesFor 沿分类祖先链收集可用参数模板（同模板只取最近一层的默认值）
func (s *ParameterService) TemplatesFor(ctx context.Context, categoryID string) ([]entity.CategoryParameterTemplate, error) {
	var result []entity.CategoryParameterTemplate
	seen := make(map[string]bool)
	current := &categoryID
	for current != nil {
		templates, err := s.categoryRepo.ListTemplates(ctx, *current)
		if err != nil {
			return nil, fmt.Errorf("list category templates: %w", err)
		}
		for _, t := range templates {
			if seen[t.TemplateID] {
				continue
			}
			seen[t.TemplateID] = true
			result = append(result, t)
		}
		category, err := s.categoryRepo.FindByID(ctx, *current)
		if err != nil {
			return nil, fmt.Errorf("category not found: %w", err)
		}
		current = category.ParentID
	}
	return result, nil
}
