package repository

import (
	"context"

	"github.com/bitfantasy/partstock/internal/part/entity"
	"gorm.io/gorm"
)

type StarRepository struct {
	db *gorm.DB
}

func NewStarRepository(db *gorm.DB) *StarRepository {
	return &StarRepository{db: db}
}

// Create 创建收藏
func (r *StarRepository) Create(ctx context.Context, star *entity.PartStar) error {
	return r.db.WithContext(ctx).Create(star).Error
}

// FindByPartAndUser 查找用户对零件的收藏
func (r *StarRepository) FindByPartAndUser(ctx context.Context, partID, userID string) (*entity.PartStar, error) {
	var star entity.PartStar
	err := r.db.WithContext(ctx).
		Where("part_id = ? AND user_id = ?", partID, userID).
		First(&star).Error
	if err != nil {
		return nil, err
	}
	return &star, nil
}

// DeleteByPartAndUser 取消收藏
func (r *StarRepository) DeleteByPartAndUser(ctx context.Context, partID, userID string) error {
	return r.db.WithContext(ctx).Delete(&entity.PartStar{}, "part_id = ? AND user_id = ?", partID, userID).Error
}

// ListByUser 查询用户的收藏
func (r *StarRepository) ListByUser(ctx context.Context, userID string) ([]entity.PartStar, error) {
	var stars []entity.PartStar
	err := r.db.WithContext(ctx).
		Preload("Part").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&stars).Error
	return stars, err
}

// CountByPart 统计零件被收藏数
func (r *StarRepository) CountByPart(ctx context.Context, partID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.PartStar{}).Where("part_id = ?", partID).Count(&count).Error
	return count, err
}
