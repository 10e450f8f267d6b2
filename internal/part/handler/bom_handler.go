package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"

	"github.com/bitfantasy/partstock/internal/part/service"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

type BOMHandler struct {
	svc        *service.BOMService
	pricingSvc *service.PricingService
}

func NewBOMHandler(svc *service.BOMService, pricingSvc *service.PricingService) *BOMHandler {
	return &BOMHandler{svc: svc, pricingSvc: pricingSvc}
}

// List BOM行列表
// GET /api/v1/parts/:id/bom?include_inherited=true
func (h *BOMHandler) List(c *gin.Context) {
	includeInherited := c.Query("include_inherited") != "false"
	items, err := h.svc.ItemsFor(c.Request.Context(), c.Param("id"), includeInherited)
	if err != nil {
		InternalError(c, "获取BOM失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": items})
}

// UsedIn 反查使用方
// GET /api/v1/parts/:id/used-in
func (h *BOMHandler) UsedIn(c *gin.Context) {
	includeInherited := c.Query("include_inherited") != "false"
	items, err := h.svc.UsedIn(c.Request.Context(), c.Param("id"), includeInherited)
	if err != nil {
		InternalError(c, "反查BOM失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": items})
}

// Add 新增BOM行
// POST /api/v1/parts/:id/bom
func (h *BOMHandler) Add(c *gin.Context) {
	var input service.AddItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	partID := c.Param("id")
	item, err := h.svc.AddItem(c.Request.Context(), partID, &input)
	if err != nil {
		var cycleErr *service.CycleError
		if errors.As(err, &cycleErr) || service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "添加BOM行失败: "+err.Error())
		return
	}
	h.pricingSvc.Invalidate(c.Request.Context(), partID)
	Created(c, item)
}

// Update 更新BOM行
// PUT /api/v1/bom-items/:item_id
func (h *BOMHandler) Update(c *gin.Context) {
	var input service.UpdateItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	item, err := h.svc.UpdateItem(c.Request.Context(), c.Param("item_id"), &input)
	if err != nil {
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "更新BOM行失败: "+err.Error())
		return
	}
	h.pricingSvc.Invalidate(c.Request.Context(), item.PartID)
	Success(c, item)
}

// Delete 删除BOM行
// DELETE /api/v1/bom-items/:item_id
func (h *BOMHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteItem(c.Request.Context(), c.Param("item_id")); err != nil {
		InternalError(c, "删除BOM行失败: "+err.Error())
		return
	}
	Success(c, nil)
}

// Clear 清空BOM
// DELETE /api/v1/parts/:id/bom
func (h *BOMHandler) Clear(c *gin.Context) {
	partID := c.Param("id")
	if err := h.svc.ClearBOM(c.Request.Context(), partID); err != nil {
		InternalError(c, "清空BOM失败: "+err.Error())
		return
	}
	h.pricingSvc.Invalidate(c.Request.Context(), partID)
	Success(c, nil)
}

// Validate 签核BOM
// POST /api/v1/parts/:id/bom/validate
func (h *BOMHandler) Validate(c *gin.Context) {
	if err := h.svc.Validate(c.Request.Context(), c.Param("id"), GetUserID(c)); err != nil {
		InternalError(c, "签核BOM失败: "+err.Error())
		return
	}
	Success(c, nil)
}

// IsValid BOM是否与签核一致
// GET /api/v1/parts/:id/bom/valid
func (h *BOMHandler) IsValid(c *gin.Context) {
	valid, err := h.svc.IsValid(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "校验BOM失败: "+err.Error())
		return
	}
	Success(c, gin.H{"valid": valid})
}

// Copy 从另一零件复制BOM
// POST /api/v1/parts/:id/bom/copy
func (h *BOMHandler) Copy(c *gin.Context) {
	var input service.CopyFromInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	partID := c.Param("id")
	if err := h.svc.CopyFrom(c.Request.Context(), partID, &input); err != nil {
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "复制BOM失败: "+err.Error())
		return
	}
	h.pricingSvc.Invalidate(c.Request.Context(), partID)
	Success(c, nil)
}

// Required 多级展开需求量
// GET /api/v1/parts/:id/bom/required
func (h *BOMHandler) Required(c *gin.Context) {
	required, err := h.svc.RequiredParts(c.Request.Context(), c.Param("id"))
	if err != nil {
		var cycleErr *service.CycleError
		if errors.As(err, &cycleErr) {
			BadRequest(c, cycleErr.Error())
			return
		}
		InternalError(c, "展开BOM失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": required})
}

// Allowed 候选子件列表
// GET /api/v1/parts/:id/bom/allowed
func (h *BOMHandler) Allowed(c *gin.Context) {
	allowed, err := h.svc.AllowedSubParts(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "获取候选子件失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": allowed})
}

// Export 导出BOM为xlsx
// GET /api/v1/parts/:id/bom/export
func (h *BOMHandler) Export(c *gin.Context) {
	f, filename, err := h.svc.ExportBOM(c.Request.Context(), c.Param("id"))
	if err != nil {
		InternalError(c, "导出BOM失败: "+err.Error())
		return
	}
	writeExcel(c, f, filename)
}

// Template 下载BOM导入模板
// GET /api/v1/bom/template
func (h *BOMHandler) Template(c *gin.Context) {
	f, err := h.svc.GenerateTemplate()
	if err != nil {
		InternalError(c, "生成模板失败: "+err.Error())
		return
	}
	writeExcel(c, f, "BOM导入模板.xlsx")
}

// Import 从Excel导入BOM
// POST /api/v1/parts/:id/bom/import
func (h *BOMHandler) Import(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少上传文件")
		return
	}
	src, err := file.Open()
	if err != nil {
		InternalError(c, "读取上传文件失败: "+err.Error())
		return
	}
	defer src.Close()

	f, err := excelize.OpenReader(src)
	if err != nil {
		BadRequest(c, "无法解析Excel文件: "+err.Error())
		return
	}
	defer f.Close()

	partID := c.Param("id")
	result, err := h.svc.ImportBOM(c.Request.Context(), partID, f)
	if err != nil {
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "导入BOM失败: "+err.Error())
		return
	}
	h.pricingSvc.Invalidate(c.Request.Context(), partID)
	Success(c, result)
}

// ImportLegacy 从旧版制表符分隔文本导入BOM
// POST /api/v1/parts/:id/bom/import-legacy
func (h *BOMHandler) ImportLegacy(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少上传文件")
		return
	}
	src, err := file.Open()
	if err != nil {
		InternalError(c, "读取上传文件失败: "+err.Error())
		return
	}
	defer src.Close()

	partID := c.Param("id")
	result, err := h.svc.ImportLegacyBOM(c.Request.Context(), partID, src)
	if err != nil {
		if service.IsValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "导入BOM失败: "+err.Error())
		return
	}
	h.pricingSvc.Invalidate(c.Request.Context(), partID)
	Success(c, result)
}

// writeExcel 把xlsx文件写入响应
func writeExcel(c *gin.Context, f *excelize.File, filename string) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		InternalError(c, "生成Excel失败: "+err.Error())
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", url.PathEscape(filename)))
	c.Data(200, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
