package store

import (
	"context"
	"errors"

	"github.com/mwantia/promptgallery/pkg/db/models"
)

// ErrNotFound is returned when a record with the requested id does not exist.
var ErrNotFound = errors.New("record not found")

// PromptFilter narrows ListPrompts. Zero values disable a condition.
type PromptFilter struct {
	// CategoryIDs restricts results to entries in any of the listed
	// categories. A nil slice disables the condition, an empty non-nil
	// slice matches nothing.
	CategoryIDs []uint
	// Tag matches a whole token of the comma separated tag list.
	Tag string
	// Query matches a substring of the title or the prompt text.
	Query string

	Limit  int
	Offset int
}

// CatalogStore defines the interface for database operations
type CatalogStore interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
	Health(ctx context.Context) error

	// Transaction runs fn against a store bound to a single transaction.
	// Every read and write inside fn must go through the store it receives.
	Transaction(ctx context.Context, fn func(tx CatalogStore) error) error

	// Prompt operations
	CreatePrompt(ctx context.Context, prompt *models.Prompt) error
	GetPrompt(ctx context.Context, id uint) (*models.Prompt, error)
	UpdatePrompt(ctx context.Context, prompt *models.Prompt) error
	DeletePrompt(ctx context.Context, id uint) error
	ListPrompts(ctx context.Context, filter PromptFilter) ([]models.Prompt, int64, error)
	CountPrompts(ctx context.Context) (int64, error)
	CountPromptsInCategory(ctx context.Context, categoryID uint) (int64, error)
	CountByCheckpoint(ctx context.Context) ([]models.ValueCount, error)
	PluckTags(ctx context.Context) ([]string, error)
	PluckLoras(ctx context.Context) ([]string, error)

	// Category operations
	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategory(ctx context.Context, id uint) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	RootCategories(ctx context.Context) ([]models.Category, error)
	ChildCategories(ctx context.Context, parentID uint) ([]models.Category, error)
	UpdateCategory(ctx context.Context, category *models.Category) error
	SetCategoryParent(ctx context.Context, id uint, parentID *uint) error
	DeleteCategory(ctx context.Context, id uint) error
	CountChildCategories(ctx context.Context, parentID uint) (int64, error)
}
