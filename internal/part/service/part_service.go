package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitfantasy/partstock/internal/config"
	"github.com/bitfantasy/partstock/internal/part/entity"
	"github.com/bitfantasy/partstock/internal/part/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// treeNameIllegalChars 树节点名称禁用字符
const treeNameIllegalChars = "!@#$%^&*'\"\\/[]{}<>,|+=~`"

type PartService struct {
	partRepo     *repository.PartRepository
	categoryRepo *repository.CategoryRepository
	bomRepo      *repository.BOMRepository
	paramRepo    *repository.ParameterRepository
	starRepo     *repository.StarRepository
	cfg          config.PartConfig

	bomSvc   *BOMService
	paramSvc *ParameterService
}

func NewPartService(repos *repository.Repositories, cfg config.PartConfig, bomSvc *BOMService, paramSvc *ParameterService) *PartService {
	return &PartService{
		partRepo:     repos.Part,
		categoryRepo: repos.Category,
		bomRepo:      repos.BOM,
		paramRepo:    repos.Parameter,
		starRepo:     repos.Star,
		cfg:          cfg,
		bomSvc:       bomSvc,
		paramSvc:     paramSvc,
	}
}

// CreatePartInput 创建零件请求
type CreatePartInput struct {
	Name          string  `json:"name" binding:"required"`
	IPN           string  `json:"ipn"`
	Revision      string  `json:"revision"`
	Description   string  `json:"description"`
	Keywords      string  `json:"keywords"`
	Units         string  `json:"units"`
	Link          string  `json:"link"`
	Notes         string  `json:"notes"`
	CategoryID    *string `json:"category_id"`
	VariantOfID   *string `json:"variant_of_id"`
	IsTemplate    bool    `json:"is_template"`
	Assembly      bool    `json:"assembly"`
	Component     *bool   `json:"component"`
	Trackable     bool    `json:"trackable"`
	Purchaseable  *bool   `json:"purchaseable"`
	Salable       bool    `json:"salable"`
	Virtual       bool    `json:"virtual"`
	MinimumStock  float64 `json:"minimum_stock"`
	DefaultExpiry int     `json:"default_expiry"`
}

// UpdatePartInput 更新零件请求
type UpdatePartInput struct {
	Name          *string  `json:"name"`
	IPN           *string  `json:"ipn"`
	Revision      *string  `json:"revision"`
	Description   *string  `json:"description"`
	Keywords      *string  `json:"keywords"`
	Units         *string  `json:"units"`
	Link          *string  `json:"link"`
	Notes         *string  `json:"notes"`
	MinimumStock  *float64 `json:"minimum_stock"`
	DefaultExpiry *int     `json:"default_expiry"`
	IsTemplate    *bool    `json:"is_template"`
	Assembly      *bool    `json:"assembly"`
	Salable       *bool    `json:"salable"`
	Virtual       *bool    `json:"virtual"`
}

// validateName 校验树节点名称字符
func validateName(name string) error {
	for _, c := range name {
		if strings.ContainsRune(treeNameIllegalChars, c) {
			return NewValidationError("name", fmt.Sprintf("名称含非法字符 %q", c))
		}
	}
	return nil
}

// validateUnique 名称+料号+版本唯一性校验（忽略大小写）。
// 预检仅为提前反馈，数据库约束是最终裁决。
func (s *PartService) validateUnique(ctx context.Context, name, ipn, revision, excludeID string) error {
	if dup, err := s.partRepo.FindDuplicate(ctx, name, ipn, revision, excludeID); err == nil && dup != nil {
		return NewValidationError("name", fmt.Sprintf("零件已存在: %s", dup.FullName()))
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check duplicate part: %w", err)
	}

	if ipn != "" && !s.cfg.AllowDuplicateIPN {
		count, err := s.partRepo.CountByIPN(ctx, ipn, excludeID)
		if err != nil {
			return fmt.Errorf("check duplicate ipn: %w", err)
		}
		if count > 0 {
			return NewValidationError("ipn", fmt.Sprintf("料号已被占用: %s", ipn))
		}
	}
	return nil
}

// Create 创建零件
func (s *PartService) Create(ctx context.Context, input *CreatePartInput, createdBy string) (*entity.Part, error) {
	if err := validateName(input.Name); err != nil {
		return nil, err
	}
	if err := s.validateUnique(ctx, input.Name, input.IPN, input.Revision, ""); err != nil {
		return nil, err
	}

	part := &entity.Part{
		ID:            uuid.New().String()[:32],
		Name:          input.Name,
		IPN:           input.IPN,
		Revision:      input.Revision,
		Description:   input.Description,
		Keywords:      input.Keywords,
		Units:         input.Units,
		Link:          input.Link,
		Notes:         input.Notes,
		CategoryID:    input.CategoryID,
		VariantOfID:   input.VariantOfID,
		IsTemplate:    input.IsTemplate,
		Assembly:      input.Assembly,
		Component:     true,
		Trackable:     input.Trackable,
		Purchaseable:  true,
		Salable:       input.Salable,
		Virtual:       input.Virtual,
		MinimumStock:  input.MinimumStock,
		DefaultExpiry: input.DefaultExpiry,
		CreatedBy:     createdBy,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if part.Units == "" {
		part.Units = "pcs"
	}
	if input.Component != nil {
		part.Component = *input.Component
	}
	if input.Purchaseable != nil {
		part.Purchaseable = *input.Purchaseable
	}

	// 挂到变体树：树标识取父节点所在树，否则自成一树
	if input.VariantOfID != nil {
		parent, err := s.partRepo.FindByID(ctx, *input.VariantOfID)
		if err != nil {
			return nil, fmt.Errorf("variant parent not found: %w", err)
		}
		part.TreeID = parent.TreeID
		// 衍生件默认继承父节点的可追溯标记
		if parent.Trackable {
			part.Trackable = true
		}
	} else {
		part.TreeID = part.ID
	}

	if err := s.partRepo.Create(ctx, part); err != nil {
		return nil, fmt.Errorf("create part: %w", err)
	}

	// 按分类链带入参数模板
	if s.cfg.CopyCategoryTemplates && part.CategoryID != nil {
		if err := s.applyCategoryTemplates(ctx, part); err != nil {
			return nil, fmt.Errorf("apply category templates: %w", err)
		}
	}

	return part, nil
}

// applyCategoryTemplates 沿分类祖先链收集参数模板并创建参数（同模板只取最近一层）
func (s *PartService) applyCategoryTemplates(ctx context.Context, part *entity.Part) error {
	seen := make(map[string]bool)
	categoryID := part.CategoryID
	for categoryID != nil {
		templates, err := s.categoryRepo.ListTemplates(ctx, *categoryID)
		if err != nil {
			return err
		}
		for _, t := range templates {
			if seen[t.TemplateID] {
				continue
			}
			seen[t.TemplateID] = true
			param := &entity.PartParameter{
				ID:         uuid.New().String()[:32],
				PartID:     part.ID,
				TemplateID: t.TemplateID,
				Value:      t.DefaultValue,
				CreatedAt:  time.Now(),
				UpdatedAt:  time.Now(),
			}
			if err := s.paramRepo.Create(ctx, param); err != nil {
				return err
			}
		}
		category, err := s.categoryRepo.FindByID(ctx, *categoryID)
		if err != nil {
			return err
		}
		categoryID = category.ParentID
	}
	return nil
}

// Get 获取零件
func (s *PartService) Get(ctx context.Context, id string) (*entity.Part, error) {
	part, err := s.partRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return part, nil
}

// List 分页查询零件
func (s *PartService) List(ctx context.Context, params repository.ListParams) ([]entity.Part, int64, error) {
	return s.partRepo.List(ctx, params)
}

// Update 更新零件基本信息
func (s *PartService) Update(ctx context.Context, id string, input *UpdatePartInput) (*entity.Part, error) {
	part, err := s.partRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("part not found: %w", err)
	}

	name := part.Name
	ipn := part.IPN
	revision := part.Revision
	if input.Name != nil {
		name = *input.Name
	}
	if input.IPN != nil {
		ipn = *input.IPN
	}
	if input.Revision != nil {
		revision = *input.Revision
	}
	if name != part.Name || ipn != part.IPN || revision != part.Revision {
		if err := validateName(name); err != nil {
			return nil, err
		}
		if err := s.validateUnique(ctx, name, ipn, revision, part.ID); err != nil {
			return nil, err
		}
	}
	part.Name = name
	part.IPN = ipn
	part.Revision = revision

	if input.Description != nil {
		part.Description = *input.Description
	}
	if input.Keywords != nil {
		part.Keywords = *input.Keywords
	}
	if input.Units != nil {
		part.Units = *input.Units
	}
	if input.Link != nil {
		part.Link = *input.Link
	}
	if input.Notes != nil {
		part.Notes = *input.Notes
	}
	if input.MinimumStock != nil {
		part.MinimumStock = *input.MinimumStock
	}
	if input.DefaultExpiry != nil {
		part.DefaultExpiry = *input.DefaultExpiry
	}
	if input.IsTemplate != nil {
		part.IsTemplate = *input.IsTemplate
	}
	if input.Assembly != nil {
		part.Assembly = *input.Assembly
	}
	if input.Salable != nil {
		part.Salable = *input.Salable
	}
	if input.Virtual != nil {
		part.Virtual = *input.Virtual
	}
	part.UpdatedAt = time.Now()

	if err := s.partRepo.Update(ctx, part); err != nil {
		return nil, fmt.Errorf("update part: %w", err)
	}
	return part, nil
}

// SetCategory 调整零件分类（分类未变时不做写入）
func (s *PartService) SetCategory(ctx context.Context, partID string, categoryID *string) (*entity.Part, error) {
	part, err := s.partRepo.FindByID(ctx, partID)
	if err != nil {
		return nil, fmt.Errorf("part not found: %w", err)
	}

	same := (part.CategoryID == nil && categoryID == nil) ||
		(part.CategoryID != nil && categoryID != nil && *part.CategoryID == *categoryID)
	if same {
		return part, nil
	}

	if categoryID != nil {
		if _, err := s.categoryRepo.FindByID(ctx, *categoryID); err != nil {
			return nil, fmt.Errorf("category not found: %w", err)
		}
	}
	part.CategoryID = categoryID
	part.UpdatedAt = time.Now()
	if err := s.partRepo.Update(ctx, part); err != nil {
		return nil, fmt.Errorf("set category: %w", err)
	}
	return part, nil
}

// Ancestors 变体树祖先链（父节点在前）
func (s *PartService) Ancestors(ctx context.Context, partID string) ([]entity.Part, error) {
	var ancestors []entity.Part
	part, err := s.partRepo.FindByID(ctx, partID)
	if err != nil {
		return nil, err
	}
	for part.VariantOfID != nil {
		parent, err := s.partRepo.FindByID(ctx, *part.VariantOfID)
		if err != nil {
			return nil, fmt.Errorf("walk ancestors: %w", err)
		}
		ancestors = append(ancestors, *parent)
		part = parent
	}
	return ancestors, nil
}

// Descendants 变体树后代集合（广度优先）
func (s *PartService) Descendants(ctx context.Context, partID string) ([]entity.Part, error) {
	var descendants []entity.Part
	queue := []string{partID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		children, err := s.partRepo.ListVariants(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("walk descendants: %w", err)
		}
		for _, child := range children {
			descendants = append(descendants, child)
			queue = append(queue, child.ID)
		}
	}
	return descendants, nil
}

// SetVariantOf 调整零件在变体树的挂载位置，并同步整棵子树的树标识
func (s *PartService) SetVariantOf(ctx context.Context, partID string, parentID *string) (*entity.Part, error) {
	part, err := s.partRepo.FindByID(ctx, partID)
	if err != nil {
		return nil, fmt.Errorf("part not found: %w", err)
	}

	var newTreeID string
	if parentID != nil {
		if *parentID == partID {
			return nil, &CycleError{PartID: partID, OffenderID: *parentID, Message: "零件不能作为自身的变体"}
		}
		parent, err := s.partRepo.FindByID(ctx, *parentID)
		if err != nil {
			return nil, fmt.Errorf("variant parent not found: %w", err)
		}
		// 新父节点不能位于本零件的后代中
		ancestorID := parent.VariantOfID
		for ancestorID != nil {
			if *ancestorID == partID {
				return nil, &CycleError{PartID: partID, OffenderID: *parentID, Message: "目标父节点是本零件的后代，会形成环"}
			}
			ancestor, err := s.partRepo.FindByID(ctx, *ancestorID)
			if err != nil {
				return nil, fmt.Errorf("walk ancestors: %w", err)
			}
			ancestorID = ancestor.VariantOfID
		}
		newTreeID = parent.TreeID
	} else {
		newTreeID = part.ID
	}

	// 收集本零件子树，整体迁入新树
	descendants, err := s.Descendants(ctx, partID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(descendants)+1)
	ids = append(ids, partID)
	for _, d := range descendants {
		ids = append(ids, d.ID)
	}

	err = s.partRepo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := repository.NewPartRepository(tx)
		if err := txRepo.UpdateFields(ctx, partID, map[string]interface{}{
			"variant_of_id": parentID,
			"updated_at":    time.Now(),
		}); err != nil {
			return err
		}
		return txRepo.UpdateTreeID(ctx, ids, newTreeID)
	})
	if err != nil {
		return nil, fmt.Errorf("set variant parent: %w", err)
	}

	return s.partRepo.FindByID(ctx, partID)
}

// SetTrackable 设置可追溯标记；置真时向使用方向做不动点传播
func (s *PartService) SetTrackable(ctx context.Context, partID string, trackable bool) error {
	part, err := s.partRepo.FindByID(ctx, partID)
	if err != nil {
		return fmt.Errorf("part not found: %w", err)
	}

	if !trackable {
		if part.Trackable {
			return s.partRepo.UpdateFields(ctx, partID, map[string]interface{}{
				"trackable":  false,
				"updated_at": time.Now(),
			})
		}
		return nil
	}

	return s.partRepo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := repository.NewPartRepository(tx)
		marked := map[string]bool{}
		queue := []string{partID}
		for len(queue) > 0 {
			current := queue[0]
			queue = queue[1:]
			if marked[current] {
				continue
			}
			marked[current] = true
			if err := txRepo.UpdateFields(ctx, current, map[string]interface{}{
				"trackable":  true,
				"updated_at": time.Now(),
			}); err != nil {
				return err
			}
			uses, err := s.bomSvc.usedInWith(ctx, tx, current, true)
			if err != nil {
				return err
			}
			for _, use := range uses {
				if !marked[use.PartID] {
					queue = append(queue, use.PartID)
				}
			}
		}
		return nil
	})
}

// Deactivate 停用零件（只置标记，不做物理删除）
func (s *PartService) Deactivate(ctx context.Context, partID string) error {
	if _, err := s.partRepo.FindByID(ctx, partID); err != nil {
		return fmt.Errorf("part not found: %w", err)
	}
	return s.partRepo.UpdateFields(ctx, partID, map[string]interface{}{
		"active":     false,
		"updated_at": time.Now(),
	})
}

// Star 收藏零件（重复收藏不报错）
func (s *PartService) Star(ctx context.Context, partID, userID string) error {
	if _, err := s.starRepo.FindByPartAndUser(ctx, partID, userID); err == nil {
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("check star: %w", err)
	}
	star := &entity.PartStar{
		ID:        uuid.New().String()[:32],
		PartID:    partID,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	if err := s.starRepo.Create(ctx, star); err != nil {
		return fmt.Errorf("create star: %w", err)
	}
	return nil
}

// Unstar 取消收藏
func (s *PartService) Unstar(ctx context.Context, partID, userID string) error {
	return s.starRepo.DeleteByPartAndUser(ctx, partID, userID)
}

// IsStarred 是否已收藏；记录不存在按未收藏处理
func (s *PartService) IsStarred(ctx context.Context, partID, userID string) (bool, error) {
	_, err := s.starRepo.FindByPartAndUser(ctx, partID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check star: %w", err)
	}
	return true, nil
}

// BarcodePayload 条码载荷
type BarcodePayload struct {
	Part BarcodePart `json:"part"`
}

type BarcodePart struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	URL      string `json:"url"`
}

// Barcode 生成零件条码载荷
func (s *PartService) Barcode(ctx context.Context, partID string) (*BarcodePayload, error) {
	part, err := s.partRepo.FindByID(ctx, partID)
	if err != nil {
		return nil, fmt.Errorf("part not found: %w", err)
	}
	return &BarcodePayload{
		Part: BarcodePart{
			ID:       part.ID,
			FullName: part.FullName(),
			URL:      fmt.Sprintf("/api/v1/parts/%s", part.ID),
		},
	}, nil
}

// DeepCopyInput 深拷贝请求
type DeepCopyInput struct {
	Name           string `json:"name" binding:"required"`
	IPN            string `json:"ipn"`
	Revision       string `json:"revision"`
	CopyBOM        bool   `json:"copy_bom"`
	CopyParameters bool   `json:"copy_parameters"`
}

// DeepCopy 以现有零件为模板深拷贝出新零件（含BOM、参数，整体事务）
func (s *PartService) DeepCopy(ctx context.Context, sourceID string, input *DeepCopyInput, createdBy string) (*entity.Part, error) {
	source, err := s.partRepo.FindByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("source part not found: %w", err)
	}
	if err := validateName(input.Name); err != nil {
		return nil, err
	}
	if err := s.validateUnique(ctx, input.Name, input.IPN, input.Revision, ""); err != nil {
		return nil, err
	}

	part := &entity.Part{
		ID:            uuid.New().String()[:32],
		Name:          input.Name,
		IPN:           input.IPN,
		Revision:      input.Revision,
		Description:   source.Description,
		Keywords:      source.Keywords,
		Units:         source.Units,
		Link:          source.Link,
		CategoryID:    source.CategoryID,
		IsTemplate:    source.IsTemplate,
		Assembly:      source.Assembly,
		Component:     source.Component,
		Trackable:     source.Trackable,
		Purchaseable:  source.Purchaseable,
		Salable:       source.Salable,
		Virtual:       source.Virtual,
		MinimumStock:  source.MinimumStock,
		DefaultExpiry: source.DefaultExpiry,
		CreatedBy:     createdBy,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	part.TreeID = part.ID

	err = s.partRepo.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.NewPartRepository(tx).Create(ctx, part); err != nil {
			return err
		}
		if input.CopyBOM {
			if err := copyBom(ctx, tx, part.ID, sourceID, false); err != nil {
				return err
			}
		}
		if input.CopyParameters {
			if err := copyParameters(ctx, tx, part.ID, sourceID, false); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("deep copy part: %w", err)
	}
	return part, nil
}
