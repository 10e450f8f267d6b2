package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	orderrepo "github.com/bitfantasy/partstock/internal/order/repository"
	"github.com/bitfantasy/partstock/internal/part/repository"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceRange 价格区间（含税总价）
type PriceRange struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

const priceCacheTTL = 10 * time.Minute

type PricingService struct {
	partRepo     *repository.PartRepository
	supplierRepo *orderrepo.SupplierRepository
	bomSvc       *BOMService
	rdb          *redis.Client
	logger       *zap.Logger
}

func NewPricingService(repos *repository.Repositories, supplierRepo *orderrepo.SupplierRepository, bomSvc *BOMService, rdb *redis.Client, logger *zap.Logger) *PricingService {
	return &PricingService{
		partRepo:     repos.Part,
		supplierRepo: supplierRepo,
		bomSvc:       bomSvc,
		rdb:          rdb,
		logger:       logger,
	}
}

// SupplierPriceRange 采购单价区间：遍历启用供应商的价目表，取qty档位单价的最小最大值
func (s *PricingService) SupplierPriceRange(ctx context.Context, partID string, qty float64) (*PriceRange, error) {
	supplierParts, err := s.supplierRepo.ListActiveByPart(ctx, partID)
	if err != nil {
		return nil, fmt.Errorf("list supplier parts: %w", err)
	}

	var result *PriceRange
	for i := range supplierParts {
		unit := supplierParts[i].UnitPriceFor(qty)
		if unit == nil {
			continue
		}
		if result == nil {
			result = &PriceRange{Min: *unit, Max: *unit}
			continue
		}
		if unit.LessThan(result.Min) {
			result.Min = *unit
		}
		if unit.GreaterThan(result.Max) {
			result.Max = *unit
		}
	}
	return result, nil
}

// BOMPriceRange BOM成本区间：逐行递归累加子件价格区间；任一行无价则整体无价
func (s *PricingService) BOMPriceRange(ctx context.Context, partID string, qty float64) (*PriceRange, error) {
	return s.bomPriceRange(ctx, partID, qty, map[string]bool{partID: true})
}

func (s *PricingService) bomPriceRange(ctx context.Context, partID string, qty float64, visited map[string]bool) (*PriceRange, error) {
	items, err := s.bomSvc.ItemsFor(ctx, partID, true)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	total := &PriceRange{Min: decimal.Zero, Max: decimal.Zero}
	for _, item := range items {
		if item.SubPartID == partID || visited[item.SubPartID] {
			s.logger.Warn("跳过BOM自引用行",
				zap.String("part_id", partID),
				zap.String("sub_part_id", item.SubPartID))
			continue
		}

		visited[item.SubPartID] = true
		sub, err := s.priceRange(ctx, item.SubPartID, item.Quantity*qty, visited)
		delete(visited, item.SubPartID)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			// 有子件无价，成本区间不可信，整体放弃
			return nil, nil
		}
		total.Min = total.Min.Add(sub.Min)
		total.Max = total.Max.Add(sub.Max)
	}
	return total, nil
}

// GetPriceRange 零件综合价格区间：采购价与BOM成本取并集的最小最大值；两侧均无价时返回nil
func (s *PricingService) GetPriceRange(ctx context.Context, partID string, qty float64, includeSupplier, includeBOM bool) (*PriceRange, error) {
	if includeSupplier && includeBOM {
		if cached := s.cacheGet(ctx, partID, qty); cached != nil {
			return cached, nil
		}
	}
	result, err := s.priceRangeWith(ctx, partID, qty, includeSupplier, includeBOM, map[string]bool{partID: true})
	if err != nil {
		return nil, err
	}
	if result != nil && includeSupplier && includeBOM {
		s.cacheSet(ctx, partID, qty, result)
	}
	return result, nil
}

// PriceString 价格区间展示文本，无报价时为空串
func (s *PricingService) PriceString(r *PriceRange) string {
	if r == nil {
		return ""
	}
	if r.Min.Equal(r.Max) {
		return r.Min.String()
	}
	return r.Min.String() + " - " + r.Max.String()
}

func (s *PricingService) priceRange(ctx context.Context, partID string, qty float64, visited map[string]bool) (*PriceRange, error) {
	return s.priceRangeWith(ctx, partID, qty, true, true, visited)
}

func (s *PricingService) priceRangeWith(ctx context.Context, partID string, qty float64, includeSupplier, includeBOM bool, visited map[string]bool) (*PriceRange, error) {
	var supplier, bom *PriceRange
	var err error
	if includeSupplier {
		supplier, err = s.SupplierPriceRange(ctx, partID, qty)
		if err != nil {
			return nil, err
		}
	}
	if includeBOM {
		bom, err = s.bomPriceRange(ctx, partID, qty, visited)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case supplier == nil && bom == nil:
		return nil, nil
	case supplier == nil:
		return bom, nil
	case bom == nil:
		return supplier, nil
	}

	result := &PriceRange{Min: supplier.Min, Max: supplier.Max}
	if bom.Min.LessThan(result.Min) {
		result.Min = bom.Min
	}
	if bom.Max.GreaterThan(result.Max) {
		result.Max = bom.Max
	}
	return result, nil
}

// Invalidate 清除零件的价格缓存（BOM或价目变更后调用）
func (s *PricingService) Invalidate(ctx context.Context, partID string) {
	if s.rdb == nil {
		return
	}
	keys, err := s.rdb.Keys(ctx, fmt.Sprintf("part:price:%s:*", partID)).Result()
	if err != nil || len(keys) == 0 {
		return
	}
	s.rdb.Del(ctx, keys...)
}

func priceCacheKey(partID string, qty float64) string {
	return fmt.Sprintf("part:price:%s:%s", partID, decimal.NewFromFloat(qty).String())
}

func (s *PricingService) cacheGet(ctx context.Context, partID string, qty float64) *PriceRange {
	if s.rdb == nil {
		return nil
	}
	raw, err := s.rdb.Get(ctx, priceCacheKey(partID, qty)).Result()
	if err != nil {
		return nil
	}
	var r PriceRange
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil
	}
	return &r
}

func (s *PricingService) cacheSet(ctx context.Context, partID string, qty float64, r *PriceRange) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, priceCacheKey(partID, qty), raw, priceCacheTTL).Err(); err != nil {
		s.logger.Warn("写入价格缓存失败", zap.String("part_id", partID), zap.Error(err))
	}
}
