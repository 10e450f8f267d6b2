package handler

import (
	partsvc "github.com/bitfantasy/partstock/internal/part/service"
	"github.com/bitfantasy/partstock/internal/stock/service"
	"github.com/gin-gonic/gin"
)

// Handlers 处理器集合
type Handlers struct {
	Stock *StockHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.StockService) *Handlers {
	return &Handlers{
		Stock: NewStockHandler(svc),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// ============================================================
// Stock Handler
// ============================================================

type StockHandler struct {
	svc *service.StockService
}

func NewStockHandler(svc *service.StockService) *StockHandler {
	return &StockHandler{svc: svc}
}

// Add 入库
// POST /api/v1/stock
func (h *StockHandler) Add(c *gin.Context) {
	var input service.AddStockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	item, err := h.svc.AddStock(c.Request.Context(), &input)
	if err != nil {
		if partsvc.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "入库失败: "+err.Error())
		return
	}
	Created(c, item)
}

// ListByPart 零件库存记录
// GET /api/v1/parts/:id/stock
func (h *StockHandler) ListByPart(c *gin.Context) {
	items, err := h.svc.ListByPart(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取库存记录失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": items})
}

// Metrics 零件库存汇总
// GET /api/v1/parts/:id/stock/metrics
func (h *StockHandler) Metrics(c *gin.Context) {
	ctx := c.Request.Context()
	partID := c.Param("id")

	total, err := h.svc.TotalStock(ctx, partID)
	if err != nil {
		InternalError(c, "统计库存失败: "+err.Error())
		return
	}
	available, err := h.svc.AvailableStock(ctx, partID)
	if err != nil {
		InternalError(c, "统计可用库存失败: "+err.Error())
		return
	}
	net, err := h.svc.NetStock(ctx, partID)
	if err != nil {
		InternalError(c, "统计净库存失败: "+err.Error())
		return
	}
	onOrder, err := h.svc.OnOrder(ctx, partID)
	if err != nil {
		InternalError(c, "统计在途失败: "+err.Error())
		return
	}
	building, err := h.svc.QuantityBeingBuilt(ctx, partID)
	if err != nil {
		InternalError(c, "统计在产失败: "+err.Error())
		return
	}
	toOrder, err := h.svc.QuantityToOrder(ctx, partID)
	if err != nil {
		InternalError(c, "计算补货量失败: "+err.Error())
		return
	}
	canBuild, err := h.svc.CanBuild(ctx, partID)
	if err != nil {
		InternalError(c, "计算可产数量失败: "+err.Error())
		return
	}

	Success(c, gin.H{
		"total":             total,
		"available":         available,
		"net":               net,
		"on_order":          onOrder,
		"being_built":       building,
		"quantity_to_order": toOrder,
		"need_to_restock":   toOrder > 0,
		"can_build":         canBuild,
	})
}

// CreateLocation 创建库位
// POST /api/v1/stock/locations
func (h *StockHandler) CreateLocation(c *gin.Context) {
	var input service.CreateLocationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	loc, err := h.svc.CreateLocation(c.Request.Context(), &input)
	if err != nil {
		InternalError(c, "创建库位失败: "+err.Error())
		return
	}
	Created(c, loc)
}
