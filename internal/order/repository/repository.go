package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 订单域仓库集合
type Repositories struct {
	Build    *BuildRepository
	Sales    *SalesRepository
	Purchase *PurchaseRepository
	Supplier *SupplierRepository
}

// NewRepositories 创建订单域仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Build:    NewBuildRepository(db),
		Sales:    NewSalesRepository(db),
		Purchase: NewPurchaseRepository(db),
		Supplier: NewSupplierRepository(db),
	}
}
