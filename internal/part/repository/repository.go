package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Part      *PartRepository
	Category  *CategoryRepository
	BOM       *BOMRepository
	Parameter *ParameterRepository
	Star      *StarRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Part:      NewPartRepository(db),
		Category:  NewCategoryRepository(db),
		BOM:       NewBOMRepository(db),
		Parameter: NewParameterRepository(db),
		Star:      NewStarRepository(db),
	}
}
