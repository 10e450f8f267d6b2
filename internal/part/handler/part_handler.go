package handler

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/bitfantasy/partstock/internal/part/entity"
	"github.com/bitfantasy/partstock/internal/part/repository"
	"github.com/bitfantasy/partstock/internal/part/service"
	stocksvc "github.com/bitfantasy/partstock/internal/stock/service"
	"github.com/gin-gonic/gin"
)

type PartHandler struct {
	svc        *service.PartService
	bomSvc     *service.BOMService
	pricingSvc *service.PricingService
	stockSvc   *stocksvc.StockService
}

func NewPartHandler(svc *service.PartService, bomSvc *service.BOMService, pricingSvc *service.PricingService, stockSvc *stocksvc.StockService) *PartHandler {
	return &PartHandler{
		svc:        svc,
		bomSvc:     bomSvc,
		pricingSvc: pricingSvc,
		stockSvc:   stockSvc,
	}
}

// Create 创建零件
// POST /api/v1/parts
func (h *PartHandler) Create(c *gin.Context) {
	var input service.CreatePartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	part, err := h.svc.Create(c.Request.Context(), &input, GetUserID(c))
	if err != nil {
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "创建零件失败: "+err.Error())
		return
	}
	Created(c, part)
}

// List 分页查询零件
// GET /api/v1/parts
func (h *PartHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	params := repository.ListParams{
		CategoryID: c.Query("category_id"),
		Keyword:    c.Query("keyword"),
		Page:       page,
		PageSize:   pageSize,
	}
	if v := c.Query("active"); v != "" {
		active := v == "true"
		params.Active = &active
	}
	if v := c.Query("is_template"); v != "" {
		isTemplate := v == "true"
		params.IsTemplate = &isTemplate
	}
	if v := c.Query("assembly"); v != "" {
		assembly := v == "true"
		params.Assembly = &assembly
	}

	parts, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		InternalError(c, "获取零件列表失败: "+err.Error())
		return
	}
	Success(c, ListResponse{
		Items: parts,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	})
}

// Get 获取零件详情
// GET /api/v1/parts/:id
func (h *PartHandler) Get(c *gin.Context) {
	part, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "零件不存在")
			return
		}
		InternalError(c, "获取零件失败: "+err.Error())
		return
	}
	Success(c, part)
}

// Update 更新零件
// PUT /api/v1/parts/:id
func (h *PartHandler) Update(c *gin.Context) {
	var input service.UpdatePartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	part, err := h.svc.Update(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "更新零件失败: "+err.Error())
		return
	}
	Success(c, part)
}

// SetCategory 调整零件分类
// PUT /api/v1/parts/:id/category
func (h *PartHandler) SetCategory(c *gin.Context) {
	var input struct {
		CategoryID *string `json:"category_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	part, err := h.svc.SetCategory(c.Request.Context(), c.Param("id"), input.CategoryID)
	if err != nil {
		InternalError(c, "调整分类失败: "+err.Error())
		return
	}
	Success(c, part)
}

// SetVariantOf 调整变体挂载位置
// PUT /api/v1/parts/:id/variant-of
func (h *PartHandler) SetVariantOf(c *gin.Context) {
	var input struct {
		ParentID *string `json:"parent_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	part, err := h.svc.SetVariantOf(c.Request.Context(), c.Param("id"), input.ParentID)
	if err != nil {
		var cycleErr *service.CycleError
		if errors.As(err, &cycleErr) {
			BadRequest(c, cycleErr.Error())
			return
		}
		InternalError(c, "调整变体失败: "+err.Error())
		return
	}
	Success(c, part)
}

// Variants 变体树查询
// GET /api/v1/parts/:id/variants
func (h *PartHandler) Variants(c *gin.Context) {
	descendants, err := h.svc.Descendants(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取变体失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": descendants})
}

// Ancestors 祖先链查询
// GET /api/v1/parts/:id/ancestors
func (h *PartHandler) Ancestors(c *gin.Context) {
	ancestors, err := h.svc.Ancestors(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取祖先链失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": ancestors})
}

// SetTrackable 设置可追溯标记
// PUT /api/v1/parts/:id/trackable
func (h *PartHandler) SetTrackable(c *gin.Context) {
	var input struct {
		Trackable bool `json:"trackable"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.SetTrackable(c.Request.Context(), c.Param("id"), input.Trackable); err != nil {
		InternalError(c, "设置可追溯标记失败: "+err.Error())
		return
	}
	Success(c, nil)
}

// Deactivate 停用零件
// DELETE /api/v1/parts/:id
func (h *PartHandler) Deactivate(c *gin.Context) {
	if err := h.svc.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		InternalError(c, "停用零件失败: "+err.Error())
		return
	}
	Success(c, nil)
}

// Star 收藏零件
// POST /api/v1/parts/:id/star
func (h *PartHandler) Star(c *gin.Context) {
	if err := h.svc.Star(c.Request.Context(), c.Param("id"), GetUserID(c)); err != nil {
		InternalError(c, "收藏失败: "+err.Error())
		return
	}
	Success(c, nil)
}

// Unstar 取消收藏
// DELETE /api/v1/parts/:id/star
func (h *PartHandler) Unstar(c *gin.Context) {
	if err := h.svc.Unstar(c.Request.Context(), c.Param("id"), GetUserID(c)); err != nil {
		InternalError(c, "取消收藏失败: "+err.Error())
		return
	}
	Success(c, nil)
}

// Barcode 生成条码载荷
// GET /api/v1/parts/:id/barcode
func (h *PartHandler) Barcode(c *gin.Context) {
	payload, err := h.svc.Barcode(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "零件不存在")
		return
	}
	Success(c, payload)
}

// DeepCopy 深拷贝零件
// POST /api/v1/parts/:id/copy
func (h *PartHandler) DeepCopy(c *gin.Context) {
	var input service.DeepCopyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	part, err := h.svc.DeepCopy(c.Request.Context(), c.Param("id"), &input, GetUserID(c))
	if err != nil {
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "复制零件失败: "+err.Error())
		return
	}
	Created(c, part)
}

// ContextData 零件展示上下文：库存、订单、收藏等汇总数据
type ContextData struct {
	Part            *entity.Part        `json:"part"`
	Starred         bool                `json:"starred"`
	TotalStock      float64             `json:"total_stock"`
	Available       float64             `json:"available"`
	Allocated       float64             `json:"allocated"`
	OnOrder         float64             `json:"on_order"`
	BeingBuilt      float64             `json:"being_built"`
	Required        float64             `json:"required"`
	QuantityToOrder float64             `json:"quantity_to_order"`
	CanBuild        float64             `json:"can_build"`
	BOMValid        bool                `json:"bom_valid"`
	PriceRange      *service.PriceRange `json:"price_range,omitempty"`
}

// Context 零件展示上下文
// GET /api/v1/parts/:id/context
func (h *PartHandler) Context(c *gin.Context) {
	ctx := c.Request.Context()
	partID := c.Param("id")

	part, err := h.svc.Get(ctx, partID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "零件不存在")
			return
		}
		InternalError(c, "获取零件失败: "+err.Error())
		return
	}

	data := ContextData{Part: part}
	if data.Starred, err = h.svc.IsStarred(ctx, partID, GetUserID(c)); err != nil {
		InternalError(c, "获取收藏状态失败: "+err.Error())
		return
	}
	if data.TotalStock, err = h.stockSvc.TotalStock(ctx, partID); err != nil {
		InternalError(c, "统计库存失败: "+err.Error())
		return
	}
	if data.Available, err = h.stockSvc.AvailableStock(ctx, partID); err != nil {
		InternalError(c, "统计可用库存失败: "+err.Error())
		return
	}
	if data.Allocated, err = h.stockSvc.AllocationCount(ctx, partID); err != nil {
		InternalError(c, "统计占用失败: "+err.Error())
		return
	}
	if data.OnOrder, err = h.stockSvc.OnOrder(ctx, partID); err != nil {
		InternalError(c, "统计在途失败: "+err.Error())
		return
	}
	if data.BeingBuilt, err = h.stockSvc.QuantityBeingBuilt(ctx, partID); err != nil {
		InternalError(c, "统计在产失败: "+err.Error())
		return
	}
	if data.Required, err = h.stockSvc.RequiredForOrders(ctx, partID); err != nil {
		InternalError(c, "统计需求失败: "+err.Error())
		return
	}
	if data.QuantityToOrder, err = h.stockSvc.QuantityToOrder(ctx, partID); err != nil {
		InternalError(c, "计算补货量失败: "+err.Error())
		return
	}
	if part.Assembly {
		if data.CanBuild, err = h.stockSvc.CanBuild(ctx, partID); err != nil {
			InternalError(c, "计算可产数量失败: "+err.Error())
			return
		}
		if data.BOMValid, err = h.bomSvc.IsValid(ctx, partID); err != nil {
			InternalError(c, "校验BOM失败: "+err.Error())
			return
		}
	}

	qty := 1.0
	if v := c.Query("quantity"); v != "" {
		if q, parseErr := strconv.ParseFloat(v, 64); parseErr == nil && q > 0 {
			qty = q
		}
	}
	if data.PriceRange, err = h.pricingSvc.GetPriceRange(ctx, partID, qty, true, true); err != nil {
		InternalError(c, "获取价格区间失败: "+err.Error())
		return
	}

	Success(c, data)
}

// Serials 序列号状态
// GET /api/v1/parts/:id/serials
func (h *PartHandler) Serials(c *gin.Context) {
	ctx := c.Request.Context()
	partID := c.Param("id")

	latest, err := h.stockSvc.LatestSerialNumber(ctx, partID)
	if err != nil {
		InternalError(c, "获取序列号失败: "+err.Error())
		return
	}
	qty := 1
	if v := c.Query("quantity"); v != "" {
		if n, parseErr := strconv.Atoi(v); parseErr == nil && n > 0 {
			qty = n
		}
	}
	next, err := h.stockSvc.NextSerialNumbers(ctx, partID, qty)
	if err != nil {
		InternalError(c, "计算序列号建议失败: "+err.Error())
		return
	}
	resp := gin.H{
		"latest": latest,
		"next":   next,
	}
	if v := c.Query("check"); v != "" {
		conflicts, err := h.stockSvc.ConflictingSerials(ctx, partID, strings.Split(v, ","))
		if err != nil {
			InternalError(c, "检查序列号冲突失败: "+err.Error())
			return
		}
		resp["conflicts"] = conflicts
	}
	Success(c, resp)
}
