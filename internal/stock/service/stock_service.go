package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	orderrepo "github.com/bitfantasy/partstock/internal/order/repository"
	partrepo "github.com/bitfantasy/partstock/internal/part/repository"
	partsvc "github.com/bitfantasy/partstock/internal/part/service"
	"github.com/bitfantasy/partstock/internal/stock/entity"
	"github.com/bitfantasy/partstock/internal/stock/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StockService struct {
	stockRepo    *repository.StockRepository
	partRepo     *partrepo.PartRepository
	bomSvc       *partsvc.BOMService
	buildRepo    *orderrepo.BuildRepository
	salesRepo    *orderrepo.SalesRepository
	purchaseRepo *orderrepo.PurchaseRepository
}

func NewStockService(stockRepo *repository.StockRepository, partRepo *partrepo.PartRepository, bomSvc *partsvc.BOMService, orderRepos *orderrepo.Repositories) *StockService {
	return &StockService{
		stockRepo:    stockRepo,
		partRepo:     partRepo,
		bomSvc:       bomSvc,
		buildRepo:    orderRepos.Build,
		salesRepo:    orderRepos.Sales,
		purchaseRepo: orderRepos.Purchase,
	}
}

// partAndDescendantIDs 零件及其变体子树的全部ID
func (s *StockService) partAndDescendantIDs(ctx context.Context, partID string) ([]string, error) {
	ids := []string{partID}
	queue := []string{partID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		children, err := s.partRepo.ListVariants(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("walk variants: %w", err)
		}
		for _, child := range children {
			ids = append(ids, child.ID)
			queue = append(queue, child.ID)
		}
	}
	return ids, nil
}

// TotalStock 在库总量：零件自身加其全部变体
func (s *StockService) TotalStock(ctx context.Context, partID string) (float64, error) {
	ids, err := s.partAndDescendantIDs(ctx, partID)
	if err != nil {
		return 0, err
	}
	return s.stockRepo.SumInStock(ctx, ids)
}

// AllocationCount 被工单和销售单占用的总量
func (s *StockService) AllocationCount(ctx context.Context, partID string) (float64, error) {
	build, err := s.buildRepo.SumAllocatedForPart(ctx, partID)
	if err != nil {
		return 0, fmt.Errorf("sum build allocations: %w", err)
	}
	sales, err := s.salesRepo.SumAllocatedForPart(ctx, partID)
	if err != nil {
		return 0, fmt.Errorf("sum sales allocations: %w", err)
	}
	return build + sales, nil
}

// AvailableStock 可用库存，下限为0
func (s *StockService) AvailableStock(ctx context.Context, partID string) (float64, error) {
	total, err := s.TotalStock(ctx, partID)
	if err != nil {
		return 0, err
	}
	allocated, err := s.AllocationCount(ctx, partID)
	if err != nil {
		return 0, err
	}
	available := total - allocated
	if available < 0 {
		available = 0
	}
	return available, nil
}

// NetStock 净库存（可为负）：在库 − 占用 + 在途
func (s *StockService) NetStock(ctx context.Context, partID string) (float64, error) {
	total, err := s.TotalStock(ctx, partID)
	if err != nil {
		return 0, err
	}
	allocated, err := s.AllocationCount(ctx, partID)
	if err != nil {
		return 0, err
	}
	onOrder, err := s.OnOrder(ctx, partID)
	if err != nil {
		return 0, err
	}
	return total - allocated + onOrder, nil
}

// OnOrder 采购在途数量：未完结采购单的已订减已收
func (s *StockService) OnOrder(ctx context.Context, partID string) (float64, error) {
	return s.purchaseRepo.SumOnOrderForPart(ctx, partID)
}

// QuantityBeingBuilt 在产数量：在产工单的剩余待产
func (s *StockService) QuantityBeingBuilt(ctx context.Context, partID string) (float64, error) {
	return s.buildRepo.SumActiveRemaining(ctx, partID)
}

// RequiredBuildOrderQuantity 在产工单对该零件作为子件的需求量（含下发行）
func (s *StockService) RequiredBuildOrderQuantity(ctx context.Context, partID string) (float64, error) {
	uses, err := s.bomSvc.UsedIn(ctx, partID, true)
	if err != nil {
		return 0, err
	}
	var required float64
	for _, use := range uses {
		planned, err := s.buildRepo.SumActiveQuantity(ctx, use.PartID)
		if err != nil {
			return 0, fmt.Errorf("sum active builds: %w", err)
		}
		required += planned * use.Quantity
	}
	return required, nil
}

// RequiredSalesOrderQuantity 未完结销售单对该零件的需求量
func (s *StockService) RequiredSalesOrderQuantity(ctx context.Context, partID string) (float64, error) {
	return s.salesRepo.SumOpenLineQuantityForPart(ctx, partID)
}

// RequiredForOrders 工单与销售单需求量合计
func (s *StockService) RequiredForOrders(ctx context.Context, partID string) (float64, error) {
	build, err := s.RequiredBuildOrderQuantity(ctx, partID)
	if err != nil {
		return 0, err
	}
	sales, err := s.RequiredSalesOrderQuantity(ctx, partID)
	if err != nil {
		return 0, err
	}
	return build + sales, nil
}

// QuantityToOrder 建议补货量 = max(0, 需求 − max(在库, 最低库存) − 在途 − 在产)
func (s *StockService) QuantityToOrder(ctx context.Context, partID string) (float64, error) {
	part, err := s.partRepo.FindByID(ctx, partID)
	if err != nil {
		return 0, fmt.Errorf("part not found: %w", err)
	}
	required, err := s.RequiredForOrders(ctx, partID)
	if err != nil {
		return 0, err
	}
	total, err := s.TotalStock(ctx, partID)
	if err != nil {
		return 0, err
	}
	onOrder, err := s.OnOrder(ctx, partID)
	if err != nil {
		return 0, err
	}
	building, err := s.QuantityBeingBuilt(ctx, partID)
	if err != nil {
		return 0, err
	}

	stock := total
	if part.MinimumStock > stock {
		stock = part.MinimumStock
	}
	toOrder := required - stock - onOrder - building
	if toOrder < 0 {
		toOrder = 0
	}
	return toOrder, nil
}

// NeedToRestock 是否需要补货
func (s *StockService) NeedToRestock(ctx context.Context, partID string) (bool, error) {
	toOrder, err := s.QuantityToOrder(ctx, partID)
	if err != nil {
		return false, err
	}
	return toOrder > 0, nil
}

// CanBuild 按子件可用库存估算的最大可产数量；无BOM时为0
func (s *StockService) CanBuild(ctx context.Context, partID string) (float64, error) {
	items, err := s.bomSvc.ItemsFor(ctx, partID, true)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	canBuild := math.Inf(1)
	counted := false
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		available, err := s.AvailableStock(ctx, item.SubPartID)
		if err != nil {
			return 0, err
		}
		n := math.Floor(available / item.Quantity)
		if n < canBuild {
			canBuild = n
		}
		counted = true
	}
	if !counted {
		return 0, nil
	}
	return canBuild, nil
}

// LatestSerialNumber 树内最新序列号：全为数字时取最大值，否则取最近创建的
func (s *StockService) LatestSerialNumber(ctx context.Context, partID string) (*string, error) {
	records, err := s.treeSerials(ctx, partID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	allNumeric := true
	maxValue := int64(0)
	var maxSerial string
	for i, rec := range records {
		n, parseErr := strconv.ParseInt(rec.Serial, 10, 64)
		if parseErr != nil {
			allNumeric = false
			break
		}
		if i == 0 || n > maxValue {
			maxValue = n
			maxSerial = rec.Serial
		}
	}
	if allNumeric {
		return &maxSerial, nil
	}
	// 含非数字序列号时退回最近创建的一条
	latest := records[len(records)-1].Serial
	return &latest, nil
}

// NextSerialNumbers 下一批序列号建议文案
func (s *StockService) NextSerialNumbers(ctx context.Context, partID string, quantity int) (string, error) {
	latest, err := s.LatestSerialNumber(ctx, partID)
	if err != nil {
		return "", err
	}
	// 空树从1起算
	var n int64
	if latest != nil {
		v, parseErr := strconv.ParseInt(*latest, 10, 64)
		if parseErr != nil {
			return fmt.Sprintf("Most recent serial number is %s", *latest), nil
		}
		n = v
	}
	if quantity >= 2 {
		return fmt.Sprintf("Next available serial numbers are %d - %d", n+1, n+1+int64(quantity)), nil
	}
	return fmt.Sprintf("Next available serial number is %d", n+1), nil
}

// treeSerials 整棵变体树的序列号记录（按创建时间升序）
func (s *StockService) treeSerials(ctx context.Context, partID string) ([]repository.SerialRecord, error) {
	part, err := s.partRepo.FindByID(ctx, partID)
	if err != nil {
		return nil, fmt.Errorf("part not found: %w", err)
	}
	ids, err := s.partRepo.ListIDsByTree(ctx, part.TreeID)
	if err != nil {
		return nil, fmt.Errorf("list tree parts: %w", err)
	}
	return s.stockRepo.ListSerials(ctx, ids)
}

// ConflictingSerials 候选序列号中已被同一变体树占用的部分
func (s *StockService) ConflictingSerials(ctx context.Context, partID string, serials []string) ([]string, error) {
	records, err := s.treeSerials(ctx, partID)
	if err != nil {
		return nil, err
	}
	used := make(map[string]bool, len(records))
	for _, r := range records {
		used[r.Serial] = true
	}
	var conflicts []string
	for _, sn := range serials {
		if used[sn] {
			conflicts = append(conflicts, sn)
		}
	}
	return conflicts, nil
}

// AddStockInput 入库请求
type AddStockInput struct {
	PartID     string  `json:"part_id" binding:"required"`
	LocationID *string `json:"location_id"`
	Quantity   float64 `json:"quantity" binding:"required"`
	Serial     *string `json:"serial"`
	Batch      string  `json:"batch"`
	Notes      string  `json:"notes"`
}

// AddStock 入库；带序列号的记录数量必须为1，且序列号在整棵变体树内唯一
func (s *StockService) AddStock(ctx context.Context, input *AddStockInput) (*entity.StockItem, error) {
	part, err := s.partRepo.FindByID(ctx, input.PartID)
	if err != nil {
		return nil, fmt.Errorf("part not found: %w", err)
	}
	if part.Virtual {
		return nil, partsvc.NewValidationError("part_id", "虚拟零件不能入库")
	}
	if input.Quantity <= 0 {
		return nil, partsvc.NewValidationError("quantity", "数量必须大于0")
	}

	if input.Serial != nil {
		if input.Quantity != 1 {
			return nil, partsvc.NewValidationError("quantity", "带序列号的库存记录数量必须为1")
		}
		if !part.Trackable {
			return nil, partsvc.NewValidationError("serial", "该零件不可追溯，不能指定序列号")
		}
		ids, err := s.partRepo.ListIDsByTree(ctx, part.TreeID)
		if err != nil {
			return nil, fmt.Errorf("list tree parts: %w", err)
		}
		exists, err := s.stockRepo.SerialExists(ctx, ids, *input.Serial)
		if err != nil {
			return nil, fmt.Errorf("check serial: %w", err)
		}
		if exists {
			return nil, partsvc.NewValidationError("serial", fmt.Sprintf("序列号 %s 已被占用", *input.Serial))
		}
	}

	if input.LocationID != nil {
		if _, err := s.stockRepo.FindLocationByID(ctx, *input.LocationID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, partsvc.NewValidationError("location_id", "库位不存在")
			}
			return nil, fmt.Errorf("find location: %w", err)
		}
	}

	item := &entity.StockItem{
		ID:         uuid.New().String()[:32],
		PartID:     input.PartID,
		LocationID: input.LocationID,
		Quantity:   input.Quantity,
		Serial:     input.Serial,
		Status:     entity.StockStatusOK,
		Batch:      input.Batch,
		Notes:      input.Notes,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := s.stockRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create stock item: %w", err)
	}
	return item, nil
}

// ListByPart 查询零件库存记录
func (s *StockService) ListByPart(ctx context.Context, partID string) ([]entity.StockItem, error) {
	return s.stockRepo.ListByPart(ctx, partID)
}

// CreateLocationInput 创建库位请求
type CreateLocationInput struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	ParentID    *string `json:"parent_id"`
}

// CreateLocation 创建库位
func (s *StockService) CreateLocation(ctx context.Context, input *CreateLocationInput) (*entity.StockLocation, error) {
	if input.ParentID != nil {
		if _, err := s.stockRepo.FindLocationByID(ctx, *input.ParentID); err != nil {
			return nil, fmt.Errorf("parent location not found: %w", err)
		}
	}
	loc := &entity.StockLocation{
		ID:          uuid.New().String()[:32],
		Name:        input.Name,
		Description: input.Description,
		ParentID:    input.ParentID,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := s.stockRepo.CreateLocation(ctx, loc); err != nil {
		return nil, fmt.Errorf("create location: %w", err)
	}
	return loc, nil
}
