package models

import (
	"time"

	"gorm.io/datatypes"
)

// Prompt is a single catalog entry: an uploaded image together with the
// generation parameters recovered from it and the user's annotations.
type Prompt struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Title      string `gorm:"type:text;not null" json:"title"`
	PromptText string `gorm:"type:text;not null;default:''" json:"prompt_text"`

	// Generation parameters, nil when the image did not carry them
	NegativePrompt *string `gorm:"type:text" json:"negative_prompt"`
	Seed           *int64  `json:"seed"`
	Steps          *int64  `json:"steps"`
	Checkpoint     *string `gorm:"type:text;index:idx_prompt_checkpoint" json:"checkpoint"`
	Loras          *string `gorm:"type:text" json:"loras"`

	// Comma separated, normalized tag list
	Tags          string  `gorm:"type:text;not null;default:''" json:"tags"`
	ImageFilename *string `gorm:"type:text" json:"image_filename"`
	CategoryID    *uint   `gorm:"index:idx_prompt_category" json:"category_id"`

	// Node graph as embedded in the image
	RawMetadata datatypes.JSON `json:"raw_metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValueCount is one row of a grouped count.
type ValueCount struct {
	Value string `json:"name" yaml:"name"`
	Count int64  `json:"count" yaml:"count"`
}
