package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Toonbeat/model"
)

// ErrProjectNotFound is returned when a project has never been saved.
var ErrProjectNotFound = errors.New("project not found")

// ProjectRepository 项目快照数据访问接口
type ProjectRepository interface {
	GetByID(ctx context.Context, id string) (*model.Project, error)
	List(ctx context.Context) ([]model.Project, error)
	// SaveSnapshot replaces every marker and note of the project.
	SaveSnapshot(ctx context.Context, projectID string, snap model.Snapshot) error
	LoadSnapshot(ctx context.Context, projectID string) (*model.Snapshot, error)
	Delete(ctx context.Context, projectID string) error
}

// gormProjectRepository GORM 实现
type gormProjectRepository struct {
	db *gorm.DB
}

// NewGormProjectRepository 创建 GORM 项目仓库
func NewGormProjectRepository(db *gorm.DB) ProjectRepository {
	return &gormProjectRepository{db: db}
}

func (r *gormProjectRepository) GetByID(ctx context.Context, id string) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &project, nil
}

func (r *gormProjectRepository) List(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	err := r.db.WithContext(ctx).Order("updated_at DESC").Find(&projects).Error
	return projects, err
}

func (r *gormProjectRepository) SaveSnapshot(ctx context.Context, projectID string, snap model.Snapshot) error {
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project := model.Project{ID: projectID, Name: projectID, CreatedAt: now, UpdatedAt: now}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
		}).Create(&project).Error
		if err != nil {
			return err
		}

		if err := tx.Where("project_id = ?", projectID).Delete(&model.ProjectMarker{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&model.ProjectNote{}).Error; err != nil {
			return err
		}

		if len(snap.Markers) > 0 {
			markers := make([]model.ProjectMarker, 0, len(snap.Markers))
			for _, m := range snap.Markers {
				markers = append(markers, model.ProjectMarker{
					ID:        m.ID,
					ProjectID: projectID,
					TrackID:   m.TrackID,
					PositionY: m.PositionY,
				})
			}
			if err := tx.CreateInBatches(markers, 100).Error; err != nil {
				return err
			}
		}

		if len(snap.Notes) > 0 {
			notes := make([]model.ProjectNote, 0, len(snap.Notes))
			for _, n := range snap.Notes {
				notes = append(notes, model.ProjectNote{
					ID:        n.ID,
					ProjectID: projectID,
					Content:   n.Content,
					PositionX: n.PositionX,
					PositionY: n.PositionY,
					Width:     n.Width,
					Height:    n.Height,
					TextColor: n.TextColor,
				})
			}
			if err := tx.CreateInBatches(notes, 100).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *gormProjectRepository) LoadSnapshot(ctx context.Context, projectID string) (*model.Snapshot, error) {
	if _, err := r.GetByID(ctx, projectID); err != nil {
		return nil, err
	}

	var markers []model.ProjectMarker
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("position_y ASC, id ASC").
		Find(&markers).Error
	if err != nil {
		return nil, err
	}

	var notes []model.ProjectNote
	err = r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("position_y ASC, id ASC").
		Find(&notes).Error
	if err != nil {
		return nil, err
	}

	snap := &model.Snapshot{
		Markers: make([]model.MarkerSnapshot, 0, len(markers)),
		Notes:   make([]model.NoteSnapshot, 0, len(notes)),
	}
	for _, m := range markers {
		snap.Markers = append(snap.Markers, model.MarkerSnapshot{
			ID:        m.ID,
			TrackID:   m.TrackID,
			PositionY: m.PositionY,
		})
	}
	for _, n := range notes {
		snap.Notes = append(snap.Notes, model.NoteSnapshot{
			ID:        n.ID,
			Content:   n.Content,
			PositionX: n.PositionX,
			PositionY: n.PositionY,
			Width:     n.Width,
			Height:    n.Height,
			TextColor: n.TextColor,
		})
	}
	return snap, nil
}

// Delete removes the project and its content. Deleting an unknown project
// is not an error.
func (r *gormProjectRepository) Delete(ctx context.Context, projectID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&model.ProjectMarker{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&model.ProjectNote{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", projectID).Delete(&model.Project{}).Error
	})
}
