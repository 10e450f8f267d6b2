package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/partstock/internal/part/entity"
	"github.com/bitfantasy/partstock/internal/part/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BOMService struct {
	db       *gorm.DB
	partRepo *repository.PartRepository
	bomRepo  *repository.BOMRepository
}

func NewBOMService(db *gorm.DB, repos *repository.Repositories) *BOMService {
	return &BOMService{
		db:       db,
		partRepo: repos.Part,
		bomRepo:  repos.BOM,
	}
}

// ItemsFor 零件生效的BOM行；includeInherited 时叠加变体祖先上标记下发的行
func (s *BOMService) ItemsFor(ctx context.Context, partID string, includeInherited bool) ([]entity.BomItem, error) {
	items, err := s.bomRepo.ListByPart(ctx, partID)
	if err != nil {
		return nil, fmt.Errorf("list bom items: %w", err)
	}
	if !includeInherited {
		return items, nil
	}

	part, err := s.partRepo.FindByID(ctx, partID)
	if err != nil {
		return nil, fmt.Errorf("part not found: %w", err)
	}
	ancestorID := part.VariantOfID
	for ancestorID != nil {
		inherited, err := s.bomRepo.ListInheritedByPart(ctx, *ancestorID)
		if err != nil {
			return nil, fmt.Errorf("list inherited bom items: %w", err)
		}
		items = append(items, inherited...)
		ancestor, err := s.partRepo.FindByID(ctx, *ancestorID)
		if err != nil {
			return nil, fmt.Errorf("walk ancestors: %w", err)
		}
		ancestorID = ancestor.VariantOfID
	}
	return items, nil
}

// UsedIn 引用该零件为子件的BOM行；includeInherited 时把下发行展开到装配件的各级变体
func (s *BOMService) UsedIn(ctx context.Context, partID string, includeInherited bool) ([]entity.BomItem, error) {
	return s.usedInWith(ctx, s.db, partID, includeInherited)
}

func (s *BOMService) usedInWith(ctx context.Context, db *gorm.DB, partID string, includeInherited bool) ([]entity.BomItem, error) {
	bomRepo := repository.NewBOMRepository(db)
	partRepo := repository.NewPartRepository(db)

	items, err := bomRepo.ListBySubPart(ctx, partID)
	if err != nil {
		return nil, fmt.Errorf("list used-in items: %w", err)
	}
	if !includeInherited {
		return items, nil
	}

	result := make([]entity.BomItem, 0, len(items))
	for _, item := range items {
		result = append(result, item)
		if !item.Inherited {
			continue
		}
		descendantIDs, err := listDescendantIDs(ctx, partRepo, item.PartID)
		if err != nil {
			return nil, err
		}
		for _, id := range descendantIDs {
			expanded := item
			expanded.PartID = id
			expanded.Part = nil
			result = append(result, expanded)
		}
	}
	return result, nil
}

// listDescendantIDs 广度优先收集变体子树的零件ID（不含自身）
func listDescendantIDs(ctx context.Context, partRepo *repository.PartRepository, partID string) ([]string, error) {
	var ids []string
	queue := []string{partID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		children, err := partRepo.ListVariants(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("walk descendants: %w", err)
		}
		for _, child := range children {
			ids = append(ids, child.ID)
			queue = append(queue, child.ID)
		}
	}
	return ids, nil
}

// CheckAddToBOM 校验能否把子件加入零件BOM：不得形成引用环
func (s *BOMService) CheckAddToBOM(ctx context.Context, partID, subPartID string) error {
	if partID == subPartID {
		return &CycleError{PartID: partID, OffenderID: subPartID, Message: "零件不能作为自身的子件"}
	}

	// 深度优先检查子件的BOM是否已经引用了本零件
	visited := map[string]bool{}
	stack := []string{subPartID}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[current] {
			continue
		}
		visited[current] = true
		items, err := s.ItemsFor(ctx, current, true)
		if err != nil {
			return err
		}
		for _, item := range items {
			if item.SubPartID == partID {
				return &CycleError{PartID: partID, OffenderID: subPartID, Message: fmt.Sprintf("子件 %s 的BOM已引用本零件，会形成环", subPartID)}
			}
			if !visited[item.SubPartID] {
				stack = append(stack, item.SubPartID)
			}
		}
	}
	return nil
}

// AddItemInput 新增BOM行请求
type AddItemInput struct {
	SubPartID string  `json:"sub_part_id" binding:"required"`
	Quantity  float64 `json:"quantity" binding:"required"`
	Optional  bool    `json:"optional"`
	Inherited bool    `json:"inherited"`
	Reference string  `json:"reference"`
	Note      string  `json:"note"`
}

// AddItem 新增BOM行
func (s *BOMService) AddItem(ctx context.Context, partID string, input *AddItemInput) (*entity.BomItem, error) {
	if input.Quantity <= 0 {
		return nil, NewValidationError("quantity", "用量必须大于0")
	}

	part, err := s.partRepo.FindByID(ctx, partID)
	if err != nil {
		return nil, fmt.Errorf("part not found: %w", err)
	}
	if !part.Assembly {
		return nil, NewValidationError("part_id", "非装配件不能维护BOM")
	}
	subPart, err := s.partRepo.FindByID(ctx, input.SubPartID)
	if err != nil {
		return nil, fmt.Errorf("sub part not found: %w", err)
	}
	if !subPart.Component {
		return nil, NewValidationError("sub_part_id", fmt.Sprintf("零件 %s 不可作为子件", subPart.FullName()))
	}

	if err := s.CheckAddToBOM(ctx, partID, input.SubPartID); err != nil {
		return nil, err
	}

	if _, err := s.bomRepo.FindByPartAndSubPart(ctx, partID, input.SubPartID); err == nil {
		return nil, NewValidationError("sub_part_id", "该子件已在BOM中")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check existing bom item: %w", err)
	}

	item := &entity.BomItem{
		ID:        uuid.New().String()[:32],
		PartID:    partID,
		SubPartID: input.SubPartID,
		Quantity:  input.Quantity,
		Optional:  input.Optional,
		Inherited: input.Inherited,
		Reference: input.Reference,
		Note:      input.Note,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.bomRepo.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create bom item: %w", err)
	}
	return item, nil
}

// UpdateItemInput 更新BOM行请求
type UpdateItemInput struct {
	Quantity  *float64 `json:"quantity"`
	Optional  *bool    `json:"optional"`
	Inherited *bool    `json:"inherited"`
	Reference *string  `json:"reference"`
	Note      *string  `json:"note"`
}

// UpdateItem 更新BOM行
func (s *BOMService) UpdateItem(ctx context.Context, itemID string, input *UpdateItemInput) (*entity.BomItem, error) {
	item, err := s.bomRepo.FindItemByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("bom item not found: %w", err)
	}
	if input.Quantity != nil {
		if *input.Quantity <= 0 {
			return nil, NewValidationError("quantity", "用量必须大于0")
		}
		item.Quantity = *input.Quantity
	}
	if input.Optional != nil {
		item.Optional = *input.Optional
	}
	if input.Inherited != nil {
		item.Inherited = *input.Inherited
	}
	if input.Reference != nil {
		item.Reference = *input.Reference
	}
	if input.Note != nil {
		item.Note = *input.Note
	}
	item.UpdatedAt = time.Now()
	if err := s.bomRepo.UpdateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("update bom item: %w", err)
	}
	return item, nil
}

// DeleteItem 删除BOM行
func (s *BOMService) DeleteItem(ctx context.Context, itemID string) error {
	if _, err := s.bomRepo.FindItemByID(ctx, itemID); err != nil {
		return fmt.Errorf("bom item not found: %w", err)
	}
	return s.bomRepo.DeleteItem(ctx, itemID)
}

// ClearBOM 清空零件直属BOM行
func (s *BOMService) ClearBOM(ctx context.Context, partID string) error {
	return s.bomRepo.DeleteByPart(ctx, partID)
}

// Hash 计算零件BOM整体哈希；行按子件ID升序参与计算
func (s *BOMService) Hash(ctx context.Context, partID string) (string, error) {
	items, err := s.bomRepo.ListByPart(ctx, partID)
	if err != nil {
		return "", fmt.Errorf("list bom items: %w", err)
	}
	h := md5.New()
	h.Write([]byte(partID))
	for i := range items {
		h.Write([]byte(items[i].LineHash()))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Validate 签核零件BOM：固化整体哈希与各行哈希，记录签核人与时间
func (s *BOMService) Validate(ctx context.Context, partID, userID string) error {
	hash, err := s.Hash(ctx, partID)
	if err != nil {
		return err
	}
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bomRepo := repository.NewBOMRepository(tx)
		items, err := bomRepo.ListByPart(ctx, partID)
		if err != nil {
			return err
		}
		for i := range items {
			items[i].Checksum = items[i].LineHash()
			items[i].UpdatedAt = now
			if err := bomRepo.UpdateItem(ctx, &items[i]); err != nil {
				return err
			}
		}
		return repository.NewPartRepository(tx).UpdateFields(ctx, partID, map[string]interface{}{
			"bom_checksum":      hash,
			"bom_checked_by_id": userID,
			"bom_checked_date":  now,
			"updated_at":        now,
		})
	})
}

// IsValid BOM是否与最近一次签核一致
func (s *BOMService) IsValid(ctx context.Context, partID string) (bool, error) {
	part, err := s.partRepo.FindByID(ctx, partID)
	if err != nil {
		return false, fmt.Errorf("part not found: %w", err)
	}
	if part.BOMChecksum == "" {
		return false, nil
	}
	hash, err := s.Hash(ctx, partID)
	if err != nil {
		return false, err
	}
	if hash != part.BOMChecksum {
		return false, nil
	}
	items, err := s.bomRepo.ListByPart(ctx, partID)
	if err != nil {
		return false, err
	}
	for i := range items {
		if items[i].Checksum != items[i].LineHash() {
			return false, nil
		}
	}
	return true, nil
}

// CopyFromInput BOM复制请求
type CopyFromInput struct {
	SourcePartID string `json:"source_part_id" binding:"required"`
	Clear        bool   `json:"clear"`
}

// CopyFrom 从另一零件复制BOM；clear 为真时先清空目标，否则仅替换同子件的行
func (s *BOMService) CopyFrom(ctx context.Context, targetPartID string, input *CopyFromInput) error {
	if targetPartID == input.SourcePartID {
		return NewValidationError("source_part_id", "不能从自身复制BOM")
	}
	if _, err := s.partRepo.FindByID(ctx, input.SourcePartID); err != nil {
		return fmt.Errorf("source part not found: %w", err)
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return copyBom(ctx, tx, targetPartID, input.SourcePartID, input.Clear)
	})
	if err != nil {
		return fmt.Errorf("copy bom: %w", err)
	}
	return nil
}

func copyBom(ctx context.Context, tx *gorm.DB, targetPartID, sourcePartID string, clear bool) error {
	bomRepo := repository.NewBOMRepository(tx)
	items, err := bomRepo.ListByPart(ctx, sourcePartID)
	if err != nil {
		return err
	}
	if clear {
		if err := bomRepo.DeleteByPart(ctx, targetPartID); err != nil {
			return err
		}
	} else {
		for i := range items {
			if err := bomRepo.DeleteByPartAndSubPart(ctx, targetPartID, items[i].SubPartID); err != nil {
				return err
			}
		}
	}
	for i := range items {
		copied := &entity.BomItem{
			ID:        uuid.New().String()[:32],
			PartID:    targetPartID,
			SubPartID: items[i].SubPartID,
			Quantity:  items[i].Quantity,
			Optional:  items[i].Optional,
			Inherited: items[i].Inherited,
			Reference: items[i].Reference,
			Note:      items[i].Note,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := bomRepo.CreateItem(ctx, copied); err != nil {
			return err
		}
	}
	return nil
}

// RequiredPart 多级展开后某子件的累计需求
type RequiredPart struct {
	Part     *entity.Part `json:"part"`
	Quantity float64      `json:"quantity"`
}

// RequiredParts 递归展开BOM，汇总每个末级子件的单台需求量
func (s *BOMService) RequiredParts(ctx context.Context, partID string) ([]RequiredPart, error) {
	totals := map[string]float64{}
	parts := map[string]*entity.Part{}
	var order []string

	var walk func(id string, multiplier float64, path map[string]bool) error
	walk = func(id string, multiplier float64, path map[string]bool) error {
		if path[id] {
			return &CycleError{PartID: id, OffenderID: id, Message: "BOM存在引用环"}
		}
		path[id] = true
		defer delete(path, id)

		items, err := s.ItemsFor(ctx, id, true)
		if err != nil {
			return err
		}
		for _, item := range items {
			required := multiplier * item.Quantity
			if _, seen := totals[item.SubPartID]; !seen {
				order = append(order, item.SubPartID)
				if item.SubPart != nil {
					parts[item.SubPartID] = item.SubPart
				} else {
					sub, err := s.partRepo.FindByID(ctx, item.SubPartID)
					if err != nil {
						return err
					}
					parts[item.SubPartID] = sub
				}
			}
			totals[item.SubPartID] += required
			if parts[item.SubPartID].Assembly {
				if err := walk(item.SubPartID, required, path); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(partID, 1, map[string]bool{}); err != nil {
		return nil, err
	}

	result := make([]RequiredPart, 0, len(order))
	for _, id := range order {
		result = append(result, RequiredPart{Part: parts[id], Quantity: totals[id]})
	}
	return result, nil
}

// AllowedSubParts 可加入零件BOM的候选子件（启用的元器件，剔除会成环的）
func (s *BOMService) AllowedSubParts(ctx context.Context, partID string) ([]entity.Part, error) {
	active := true
	candidates, _, err := s.partRepo.List(ctx, repository.ListParams{
		Active:   &active,
		PageSize: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("list candidate parts: %w", err)
	}

	var allowed []entity.Part
	for _, candidate := range candidates {
		if candidate.ID == partID || !candidate.Component {
			continue
		}
		if err := s.CheckAddToBOM(ctx, partID, candidate.ID); err != nil {
			var cycleErr *CycleError
			if errors.As(err, &cycleErr) {
				continue
			}
			return nil, err
		}
		allowed = append(allowed, candidate)
	}
	return allowed, nil
}
