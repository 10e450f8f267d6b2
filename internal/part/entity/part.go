package entity

import (
	"strings"
	"time"
)

// Part 零件主数据（模板-变体树节点）
type Part struct {
	ID          string `json:"id" gorm:"primaryKey;size:32"`
	Name        string `json:"name" gorm:"size:128;not null;index"`
	IPN         string `json:"ipn,omitempty" gorm:"column:ipn;size:64;index"` // 内部料号
	Revision    string `json:"revision,omitempty" gorm:"size:32"`
	Description string `json:"description,omitempty"`
	Keywords    string `json:"keywords,omitempty" gorm:"size:256"`
	Units       string `json:"units" gorm:"size:16;not null;default:pcs"`
	Link        string `json:"link,omitempty" gorm:"size:256"`
	Notes       string `json:"notes,omitempty"`

	CategoryID  *string `json:"category_id,omitempty" gorm:"size:32;index"`
	VariantOfID *string `json:"variant_of_id,omitempty" gorm:"size:32;index"`
	// TreeID 变体树根的ID，序列号唯一性按整棵树划分
	TreeID string `json:"tree_id" gorm:"size:32;not null;index"`

	IsTemplate   bool `json:"is_template"`
	Assembly     bool `json:"assembly"`
	Component    bool `json:"component"`
	Trackable    bool `json:"trackable"`
	Purchaseable bool `json:"purchaseable"`
	Salable      bool `json:"salable"`
	Active       bool `json:"active"`
	Virtual      bool `json:"virtual"`

	MinimumStock  float64 `json:"minimum_stock" gorm:"type:numeric(15,4);not null;default:0"`
	DefaultExpiry int     `json:"default_expiry" gorm:"default:0"` // 天数，0表示不过期

	DefaultLocationID     *string `json:"default_location_id,omitempty" gorm:"size:32"`
	DefaultSupplierPartID *string `json:"default_supplier_part_id,omitempty" gorm:"size:32"`
	ResponsibleID         *string `json:"responsible_id,omitempty" gorm:"size:32"`

	// BOM签核快照
	BOMChecksum    string     `json:"bom_checksum,omitempty" gorm:"size:32"`
	BOMCheckedByID *string    `json:"bom_checked_by,omitempty" gorm:"size:32"`
	BOMCheckedDate *time.Time `json:"bom_checked_date,omitempty"`

	CreatedBy string    `json:"created_by,omitempty" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Category   *PartCategory   `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	VariantOf  *Part           `json:"variant_of,omitempty" gorm:"foreignKey:VariantOfID"`
	Variants   []Part          `json:"variants,omitempty" gorm:"foreignKey:VariantOfID"`
	BomItems   []BomItem       `json:"bom_items,omitempty" gorm:"foreignKey:PartID"`
	Parameters []PartParameter `json:"parameters,omitempty" gorm:"foreignKey:PartID"`
	BOMChecker *User           `json:"bom_checker,omitempty" gorm:"foreignKey:BOMCheckedByID"`
}

func (Part) TableName() string {
	return "parts"
}

// FullName 展示名：料号、名称、版本用 " | " 拼接
func (p *Part) FullName() string {
	elements := make([]string, 0, 3)
	if p.IPN != "" {
		elements = append(elements, p.IPN)
	}
	elements = append(elements, p.Name)
	if p.Revision != "" {
		elements = append(elements, p.Revision)
	}
	return strings.Join(elements, " | ")
}

// PartCategory 零件分类（邻接表树）
type PartCategory struct {
	ID              string  `json:"id" gorm:"primaryKey;size:32"`
	Name            string  `json:"name" gorm:"size:128;not null"`
	Description     string  `json:"description,omitempty"`
	ParentID        *string `json:"parent_id,omitempty" gorm:"size:32;index"`
	Pathstring      string  `json:"pathstring" gorm:"size:512"`
	DefaultLocation *string `json:"default_location_id,omitempty" gorm:"column:default_location_id;size:32"`
	DefaultKeywords string  `json:"default_keywords,omitempty" gorm:"size:256"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Parent   *PartCategory  `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	Children []PartCategory `json:"children,omitempty" gorm:"foreignKey:ParentID"`
}

func (PartCategory) TableName() string {
	return "part_categories"
}

// CategoryParameterTemplate 分类级参数模板（新建零件时自动带入）
type CategoryParameterTemplate struct {
	ID           string `json:"id" gorm:"primaryKey;size:32"`
	CategoryID   string `json:"category_id" gorm:"size:32;not null;uniqueIndex:idx_category_template"`
	TemplateID   string `json:"template_id" gorm:"size:32;not null;uniqueIndex:idx_category_template"`
	DefaultValue string `json:"default_value,omitempty" gorm:"size:256"`

	// Relations
	Category *PartCategory          `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Template *PartParameterTemplate `json:"template,omitempty" gorm:"foreignKey:TemplateID"`
}

func (CategoryParameterTemplate) TableName() string {
	return "category_parameter_templates"
}
