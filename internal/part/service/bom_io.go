package service

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bitfantasy/partstock/internal/part/entity"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
	"gorm.io/gorm"
)

var bomExportHeaders = []string{
	"序号", "子件名称", "料号", "版本", "数量", "单位", "位号", "可选", "下发", "备注",
}

// ImportResult BOM导入结果统计
type ImportResult struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// ExportBOM 导出零件BOM为xlsx
func (s *BOMService) ExportBOM(ctx context.Context, partID string) (*excelize.File, string, error) {
	part, err := s.partRepo.FindByID(ctx, partID)
	if err != nil {
		return nil, "", fmt.Errorf("part not found: %w", err)
	}

	items, err := s.ItemsFor(ctx, partID, true)
	if err != nil {
		return nil, "", fmt.Errorf("list items: %w", err)
	}

	f := excelize.NewFile()
	sheet := "BOM"
	f.SetSheetName("Sheet1", sheet)

	// 表头样式: 加粗
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	// 写入表头
	for i, h := range bomExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	// 写入数据行
	for rowIdx, item := range items {
		row := rowIdx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), rowIdx+1)
		if item.SubPart != nil {
			f.SetCellValue(sheet, fmt.Sprintf("B%d", row), item.SubPart.Name)
			f.SetCellValue(sheet, fmt.Sprintf("C%d", row), item.SubPart.IPN)
			f.SetCellValue(sheet, fmt.Sprintf("D%d", row), item.SubPart.Revision)
			f.SetCellValue(sheet, fmt.Sprintf("F%d", row), item.SubPart.Units)
		}
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), item.Quantity)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), item.Reference)
		optional := "否"
		if item.Optional {
			optional = "是"
		}
		f.SetCellValue(sheet, fmt.Sprintf("H%d", row), optional)
		inherited := "否"
		if item.Inherited {
			inherited = "是"
		}
		f.SetCellValue(sheet, fmt.Sprintf("I%d", row), inherited)
		f.SetCellValue(sheet, fmt.Sprintf("J%d", row), item.Note)
	}

	// 列宽自适应
	colWidths := []float64{6, 20, 16, 8, 8, 6, 14, 6, 6, 20}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("BOM_%s.xlsx", part.FullName())
	return f, filename, nil
}

// GenerateTemplate 生成BOM导入模板xlsx
func (s *BOMService) GenerateTemplate() (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "BOM模板"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})

	for i, h := range bomExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	// 示例行
	f.SetCellValue(sheet, "A2", 1)
	f.SetCellValue(sheet, "B2", "示例电阻")
	f.SetCellValue(sheet, "C2", "R-0402-10K")
	f.SetCellValue(sheet, "E2", 4)
	f.SetCellValue(sheet, "G2", "R1,R2,R3,R4")

	return f, nil
}

// ImportBOM 从Excel导入BOM行，按料号或名称匹配已有零件
func (s *BOMService) ImportBOM(ctx context.Context, partID string, f *excelize.File) (*ImportResult, error) {
	part, err := s.partRepo.FindByID(ctx, partID)
	if err != nil {
		return nil, fmt.Errorf("part not found: %w", err)
	}
	if !part.Assembly {
		return nil, NewValidationError("part_id", "非装配件不能导入BOM")
	}

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read excel: %w", err)
	}

	result := &ImportResult{}
	if len(rows) < 2 {
		return result, nil
	}

	for _, row := range rows[1:] { // 跳过表头
		if len(row) < 3 || (row[1] == "" && row[2] == "") {
			result.Failed++
			continue
		}

		name := row[1]
		ipn := row[2]
		qty := 1.0
		if len(row) > 4 {
			if q, parseErr := strconv.ParseFloat(row[4], 64); parseErr == nil {
				qty = q
			}
		}
		reference := ""
		if len(row) > 6 {
			reference = row[6]
		}
		note := ""
		if len(row) > 9 {
			note = row[9]
		}

		if err := s.importLine(ctx, partID, name, ipn, qty, reference, note, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ImportLegacyBOM 从制表符分隔的旧版BOM文本导入；非UTF-8内容按GBK解码
func (s *BOMService) ImportLegacyBOM(ctx context.Context, partID string, reader io.Reader) (*ImportResult, error) {
	part, err := s.partRepo.FindByID(ctx, partID)
	if err != nil {
		return nil, fmt.Errorf("part not found: %w", err)
	}
	if !part.Assembly {
		return nil, NewValidationError("part_id", "非装配件不能导入BOM")
	}

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read legacy bom: %w", err)
	}
	if !utf8.Valid(raw) {
		// GBK → UTF-8
		raw, err = io.ReadAll(transform.NewReader(bytes.NewReader(raw), simplifiedchinese.GBK.NewDecoder()))
		if err != nil {
			return nil, fmt.Errorf("decode gbk: %w", err)
		}
	}

	result := &ImportResult{}
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		// 第一行是表头，跳过
		if lineNo == 1 {
			continue
		}

		fields := strings.Split(line, "\t")
		// 去除每个字段的双引号
		for i := range fields {
			fields[i] = strings.Trim(fields[i], "\"")
		}

		// 至少需要4列（序号、数量、位号、名称）
		if len(fields) < 4 || fields[3] == "" {
			result.Failed++
			continue
		}

		// 备注列为 NC 的跳过
		if len(fields) > 5 && strings.EqualFold(strings.TrimSpace(fields[5]), "NC") {
			result.Skipped++
			continue
		}

		qty := 1.0
		if q, parseErr := strconv.ParseFloat(fields[1], 64); parseErr == nil {
			qty = q
		}
		reference := fields[2]
		name := fields[3]
		ipn := ""
		if len(fields) > 4 {
			ipn = fields[4]
		}

		if err := s.importLine(ctx, partID, name, ipn, qty, reference, "", result); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan legacy bom: %w", err)
	}
	return result, nil
}

// importLine 按料号优先、名称兜底匹配子件并写入一行BOM；已有同子件行时累加用量
func (s *BOMService) importLine(ctx context.Context, partID, name, ipn string, qty float64, reference, note string, result *ImportResult) error {
	sub, err := s.matchPart(ctx, name, ipn)
	if err != nil {
		return err
	}
	if sub == nil || sub.ID == partID {
		result.Failed++
		return nil
	}

	existing, err := s.bomRepo.FindByPartAndSubPart(ctx, partID, sub.ID)
	if err == nil {
		existing.Quantity += qty
		if reference != "" {
			if existing.Reference != "" {
				existing.Reference += ","
			}
			existing.Reference += reference
		}
		existing.UpdatedAt = time.Now()
		if err := s.bomRepo.UpdateItem(ctx, existing); err != nil {
			return fmt.Errorf("update bom item: %w", err)
		}
		result.Success++
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("check existing bom item: %w", err)
	}

	if err := s.CheckAddToBOM(ctx, partID, sub.ID); err != nil {
		result.Failed++
		return nil
	}
	item := &entity.BomItem{
		ID:        uuid.New().String()[:32],
		PartID:    partID,
		SubPartID: sub.ID,
		Quantity:  qty,
		Reference: reference,
		Note:      note,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.bomRepo.CreateItem(ctx, item); err != nil {
		return fmt.Errorf("create bom item: %w", err)
	}
	result.Success++
	return nil
}

// matchPart 按料号或名称匹配零件；匹配不到返回nil
func (s *BOMService) matchPart(ctx context.Context, name, ipn string) (*entity.Part, error) {
	var part entity.Part
	if ipn != "" {
		err := s.partRepo.DB().WithContext(ctx).
			Where("LOWER(ipn) = LOWER(?)", ipn).
			First(&part).Error
		if err == nil {
			return &part, nil
		}
		if !isNotFound(err) {
			return nil, fmt.Errorf("match part by ipn: %w", err)
		}
	}
	if name != "" {
		err := s.partRepo.DB().WithContext(ctx).
			Where("LOWER(name) = LOWER(?)", name).
			First(&part).Error
		if err == nil {
			return &part, nil
		}
		if !isNotFound(err) {
			return nil, fmt.Errorf("match part by name: %w", err)
		}
	}
	return nil, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
