package entity

import "time"

// PartParameterTemplate 参数模板（名称全局唯一，忽略大小写）
type PartParameterTemplate struct {
	ID    string `json:"id" gorm:"primaryKey;size:32"`
	Name  string `json:"name" gorm:"size:128;not null;uniqueIndex"`
	Units string `json:"units,omitempty" gorm:"size:32"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PartParameterTemplate) TableName() string {
	return "part_parameter_templates"
}

// PartParameter 零件参数值，(part, template) 唯一
type PartParameter struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	PartID     string `json:"part_id" gorm:"size:32;not null;uniqueIndex:idx_part_parameter"`
	TemplateID string `json:"template_id" gorm:"size:32;not null;uniqueIndex:idx_part_parameter"`
	Value      string `json:"value" gorm:"size:256;not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Part     *Part                  `json:"part,omitempty" gorm:"foreignKey:PartID"`
	Template *PartParameterTemplate `json:"template,omitempty" gorm:"foreignKey:TemplateID"`
}

func (PartParameter) TableName() string {
	return "part_parameters"
}
