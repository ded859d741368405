package model

import "time"

// Snapshot is the serializable form of a project's markers and notes handed
// to the persistence layer on an explicit save.
type Snapshot struct {
	Markers []MarkerSnapshot `json:"markers"`
	Notes   []NoteSnapshot   `json:"notes"`
}

// MarkerSnapshot is a persisted TrackMarker reduced to its track reference.
type MarkerSnapshot struct {
	ID        string  `json:"id"`
	TrackID   string  `json:"trackId"`
	PositionY float64 `json:"positionY"`
}

// NoteSnapshot is a persisted MemoNote.
type NoteSnapshot struct {
	ID        string  `json:"id"`
	Content   string  `json:"content"`
	PositionX float64 `json:"positionX"`
	PositionY float64 `json:"positionY"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	TextColor string  `json:"textColor,omitempty"`
}

// Project 项目 (one webtoon episode being scored)
type Project struct {
	ID        string    `json:"id" gorm:"primaryKey;size:64"`
	Name      string    `json:"name" gorm:"size:255"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (Project) TableName() string {
	return "projects"
}

// ProjectMarker 项目中的音频标记
type ProjectMarker struct {
	ID        string  `gorm:"primaryKey;size:64"`
	ProjectID string  `gorm:"size:64;index;not null"`
	TrackID   string  `gorm:"size:64;not null"`
	PositionY float64 `gorm:"not null"`
}

// TableName 指定表名
func (ProjectMarker) TableName() string {
	return "project_markers"
}

// ProjectNote 项目中的文字备注
type ProjectNote struct {
	ID        string  `gorm:"primaryKey;size:64"`
	ProjectID string  `gorm:"size:64;index;not null"`
	Content   string  `gorm:"type:text"`
	PositionX float64 `gorm:"not null"`
	PositionY float64 `gorm:"not null"`
	Width     float64
	Height    float64
	TextColor string `gorm:"size:32"`
}

// TableName 指定表名
func (ProjectNote) TableName() string {
	return "project_notes"
}
