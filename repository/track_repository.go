package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"Toonbeat/model"
)

// TrackRepository 曲目数据访问接口
type TrackRepository interface {
	Create(ctx context.Context, track *model.Track) error
	GetByID(ctx context.Context, id string) (*model.Track, error)
	GetTracksByIDs(ctx context.Context, ids []string) ([]model.Track, error)
	List(ctx context.Context, limit, offset int) ([]model.Track, error)
}

// gormTrackRepository GORM 实现
type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository 创建 GORM 曲目仓库
func NewGormTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

func (r *gormTrackRepository) Create(ctx context.Context, track *model.Track) error {
	return r.db.WithContext(ctx).Create(track).Error
}

// GetByID returns nil, nil when the track does not exist.
func (r *gormTrackRepository) GetByID(ctx context.Context, id string) (*model.Track, error) {
	var track model.Track
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&track).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &track, nil
}

// GetTracksByIDs returns the tracks that exist among ids, in no particular
// order. Duplicate ids are fine.
func (r *gormTrackRepository) GetTracksByIDs(ctx context.Context, ids []string) ([]model.Track, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tracks []model.Track
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&tracks).Error
	return tracks, err
}

func (r *gormTrackRepository) List(ctx context.Context, limit, offset int) ([]model.Track, error) {
	if limit <= 0 {
		limit = 50
	}
	var tracks []model.Track
	err := r.db.WithContext(ctx).
		Order("title ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&tracks).Error
	return tracks, err
}
