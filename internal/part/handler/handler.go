package handler

import (
	"strconv"

	"github.com/bitfantasy/partstock/internal/part/service"
	stocksvc "github.com/bitfantasy/partstock/internal/stock/service"
	"github.com/gin-gonic/gin"
)

// Handlers 处理器集合
type Handlers struct {
	Part      *PartHandler
	Category  *CategoryHandler
	BOM       *BOMHandler
	Parameter *ParameterHandler
	Pricing   *PricingHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, stockSvc *stocksvc.StockService) *Handlers {
	return &Handlers{
		Part:      NewPartHandler(svc.Part, svc.BOM, svc.Pricing, stockSvc),
		Category:  NewCategoryHandler(svc.Category),
		BOM:       NewBOMHandler(svc.BOM, svc.Pricing),
		Parameter: NewParameterHandler(svc.Parameter),
		Pricing:   NewPricingHandler(svc.Pricing),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
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

// Unauthorized 未授权响应
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// Forbidden 禁止访问响应
func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

// ============================================================
// Category Handler
// ============================================================

type CategoryHandler struct {
	svc *service.CategoryService
}

func NewCategoryHandler(svc *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{svc: svc}
}

func (h *CategoryHandler) Create(c *gin.Context) {
	var input service.CreateCategoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	category, err := h.svc.Create(c.Request.Context(), &input)
	if err != nil {
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "创建分类失败: "+err.Error())
		return
	}
	Created(c, category)
}

func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.svc.List(c.Request.Context())
	if err != nil {
		InternalError(c, "获取分类列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": categories})
}

func (h *CategoryHandler) Get(c *gin.Context) {
	category, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		NotFound(c, "分类不存在")
		return
	}
	Success(c, category)
}

func (h *CategoryHandler) ListChildren(c *gin.Context) {
	children, err := h.svc.ListChildren(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取子分类失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": children})
}

func (h *CategoryHandler) AttachTemplate(c *gin.Context) {
	var input service.AttachTemplateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	link, err := h.svc.AttachTemplate(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		InternalError(c, "挂接参数模板失败: "+err.Error())
		return
	}
	Created(c, link)
}

func (h *CategoryHandler) DetachTemplate(c *gin.Context) {
	if err := h.svc.DetachTemplate(c.Request.Context(), c.Param("template_id")); err != nil {
		InternalError(c, "移除参数模板失败: "+err.Error())
		return
	}
	Success(c, nil)
}

// ============================================================
// Parameter Handler
// ============================================================

type ParameterHandler struct {
	svc *service.ParameterService
}

func NewParameterHandler(svc *service.ParameterService) *ParameterHandler {
	return &ParameterHandler{svc: svc}
}

func (h *ParameterHandler) CreateTemplate(c *gin.Context) {
	var input service.CreateTemplateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	template, err := h.svc.CreateTemplate(c.Request.Context(), &input)
	if err != nil {
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "创建参数模板失败: "+err.Error())
		return
	}
	Created(c, template)
}

func (h *ParameterHandler) ListTemplates(c *gin.Context) {
	templates, err := h.svc.ListTemplates(c.Request.Context())
	if err != nil {
		InternalError(c, "获取参数模板失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": templates})
}

func (h *ParameterHandler) Add(c *gin.Context) {
	var input service.AddInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	param, err := h.svc.Add(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "添加参数失败: "+err.Error())
		return
	}
	Created(c, param)
}

func (h *ParameterHandler) List(c *gin.Context) {
	params, err := h.svc.ListFor(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取参数失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": params})
}

func (h *ParameterHandler) UpdateValue(c *gin.Context) {
	var input struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	param, err := h.svc.UpdateValue(c.Request.Context(), c.Param("param_id"), input.Value)
	if err != nil {
		InternalError(c, "更新参数失败: "+err.Error())
		return
	}
	Success(c, param)
}

func (h *ParameterHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("param_id")); err != nil {
		InternalError(c, "删除参数失败: "+err.Error())
		return
	}
	Success(c, nil)
}

func (h *ParameterHandler) CopyFrom(c *gin.Context) {
	var input struct {
		SourcePartID string `json:"source_part_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	if err := h.svc.CopyFrom(c.Request.Context(), c.Param("id"), input.SourcePartID); err != nil {
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "复制参数失败: "+err.Error())
		return
	}
	Success(c, nil)
}

func (h *ParameterHandler) TemplatesForCategory(c *gin.Context) {
	templates, err := h.svc.TemplatesFor(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取可用参数模板失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": templates})
}
