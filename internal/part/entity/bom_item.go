package entity

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"time"
)

// BomItem BOM行：零件与其子件及用量
type BomItem struct {
	ID        string  `json:"id" gorm:"primaryKey;size:32"`
	PartID    string  `json:"part_id" gorm:"size:32;not null;index"`
	SubPartID string  `json:"sub_part_id" gorm:"size:32;not null;index"`
	Quantity  float64 `json:"quantity" gorm:"type:numeric(15,4);not null;default:1"`
	Optional  bool    `json:"optional"`
	// Inherited 标记该行自动下发到所有变体
	Inherited bool   `json:"inherited"`
	Reference string `json:"reference,omitempty" gorm:"size:256"` // 位号
	Note      string `json:"note,omitempty" gorm:"size:512"`
	Checksum  string `json:"checksum,omitempty" gorm:"size:32"` // 最近签核时的行哈希

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Part    *Part `json:"part,omitempty" gorm:"foreignKey:PartID"`
	SubPart *Part `json:"sub_part,omitempty" gorm:"foreignKey:SubPartID"`
}

func (BomItem) TableName() string {
	return "bom_items"
}

// LineHash 行内容哈希（归属、子件、用量、位号）
func (b *BomItem) LineHash() string {
	h := md5.New()
	h.Write([]byte(b.PartID))
	h.Write([]byte(b.SubPartID))
	h.Write([]byte(strconv.FormatFloat(b.Quantity, 'f', -1, 64)))
	h.Write([]byte(b.Reference))
	return hex.EncodeToString(h.Sum(nil))
}
