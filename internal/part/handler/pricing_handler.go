package handler

import (
	"strconv"

	"github.com/bitfantasy/partstock/internal/part/service"
	"github.com/gin-gonic/gin"
)

type PricingHandler struct {
	svc *service.PricingService
}

func NewPricingHandler(svc *service.PricingService) *PricingHandler {
	return &PricingHandler{svc: svc}
}

// PriceRange 零件价格区间
// GET /api/v1/parts/:id/pricing?quantity=10&supplier=true&bom=true
func (h *PricingHandler) PriceRange(c *gin.Context) {
	qty := 1.0
	if v := c.Query("quantity"); v != "" {
		q, err := strconv.ParseFloat(v, 64)
		if err != nil || q <= 0 {
			BadRequest(c, "quantity 必须为正数")
			return
		}
		qty = q
	}
	includeSupplier := c.Query("supplier") != "false"
	includeBOM := c.Query("bom") != "false"

	r, err := h.svc.GetPriceRange(c.Request.Context(), c.Param("id"), qty, includeSupplier, includeBOM)
	if err != nil {
		InternalError(c, "获取价格区间失败: "+err.Error())
		return
	}
	if r == nil {
		Success(c, gin.H{"available": false})
		return
	}
	Success(c, gin.H{
		"available": true,
		"min":       r.Min,
		"max":       r.Max,
		"display":   h.svc.PriceString(r),
	})
}

// SupplierRange 采购单价区间
// GET /api/v1/parts/:id/pricing/supplier?quantity=10
func (h *PricingHandler) SupplierRange(c *gin.Context) {
	qty := 1.0
	if v := c.Query("quantity"); v != "" {
		if q, err := strconv.ParseFloat(v, 64); err == nil && q > 0 {
			qty = q
		}
	}
	r, err := h.svc.SupplierPriceRange(c.Request.Context(), c.Param("id"), qty)
	if err != nil {
		InternalError(c, "获取采购价区间失败: "+err.Error())
		return
	}
	if r == nil {
		Success(c, gin.H{"available": false})
		return
	}
	Success(c, gin.H{
		"available": true,
		"min":       r.Min,
		"max":       r.Max,
	})
}

// Invalidate 清除价格缓存
// DELETE /api/v1/parts/:id/pricing/cache
func (h *PricingHandler) Invalidate(c *gin.Context) {
	h.svc.Invalidate(c.Request.Context(), c.Param("id"))
	Success(c, nil)
}
