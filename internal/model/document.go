package model

import "time"

// Document is user-owned content that embedding records are derived from.
type Document struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	UserID      uint        `gorm:"not null;index" json:"user_id"`
	Kind        ContentType `gorm:"size:32;not null;index" json:"kind"`
	Title       string      `gorm:"size:256;not null" json:"title"`
	Description string      `gorm:"type:text" json:"description,omitempty"`
	Content     string      `gorm:"type:text" json:"content,omitempty"`
	Summary     string      `gorm:"type:text" json:"summary,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ContentProjection is the slice of a Document attached to search hits.
type ContentProjection struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Content     string `json:"content,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

func (d *Document) Projection() ContentProjection {
	return ContentProjection{
		Title:       d.Title,
		Description: d.Description,
		Content:     d.Content,
		Summary:     d.Summary,
	}
}
