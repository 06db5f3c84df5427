package models

import "time"

// Category is a node of the category forest. Children and entries are
// looked up by id through the store; there are no preloaded relations.
type Category struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"type:text;not null" json:"name"`
	Description string `gorm:"type:text;not null;default:''" json:"description"`
	ParentID    *uint  `gorm:"index:idx_category_parent" json:"parent_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
