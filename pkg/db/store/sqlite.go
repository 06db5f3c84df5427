package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/promptgallery/pkg/db/migrations"
	"github.com/mwantia/promptgallery/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Siblings are listed alphabetically, ties broken by insertion order.
const categoryOrder = "name ASC, id ASC"

// SQLiteStore implements CatalogStore using SQLite
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

var _ CatalogStore = (*SQLiteStore)(nil)

// DB returns the underlying GORM database instance
func (s *SQLiteStore) DB() *gorm.DB {
	return s.db
}

// Path returns the database path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path     string
	LogLevel logger.LogLevel
}

// ParseLogLevel maps a configured gorm log level name to its value.
// Unknown names select logger.Silent.
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "info":
		return logger.Info
	case "warn", "warning":
		return logger.Warn
	case "error":
		return logger.Error
	default:
		return logger.Silent
	}
}

// NewSQLiteStore creates a new SQLite-backed catalog store
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	if cfg.Path != ":memory:" && !strings.HasPrefix(cfg.Path, "file:") {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Default to silent logging
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return &SQLiteStore{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Connect initializes the database connection
func (s *SQLiteStore) Connect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(1) // SQLite only supports 1 writer
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// Migrate runs all pending schema migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrations.NewMigrator(s.db).Migrate(ctx)
}

// Health checks database connectivity
func (s *SQLiteStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLiteStore) Transaction(ctx context.Context, fn func(tx CatalogStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SQLiteStore{db: tx, path: s.path})
	})
}

// Prompt operations

func (s *SQLiteStore) CreatePrompt(ctx context.Context, prompt *models.Prompt) error {
	return s.db.WithContext(ctx).Create(prompt).Error
}

func (s *SQLiteStore) GetPrompt(ctx context.Context, id uint) (*models.Prompt, error) {
	var prompt models.Prompt
	if err := s.db.WithContext(ctx).First(&prompt, id).Error; err != nil {
		return nil, notFound(err, "prompt", id)
	}
	return &prompt, nil
}

func (s *SQLiteStore) UpdatePrompt(ctx context.Context, prompt *models.Prompt) error {
	return s.db.WithContext(ctx).Save(prompt).Error
}

func (s *SQLiteStore) DeletePrompt(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Prompt{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("prompt %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ListPrompts(ctx context.Context, filter PromptFilter) ([]models.Prompt, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Prompt{})

	if filter.CategoryIDs != nil {
		if len(filter.CategoryIDs) == 0 {
			return []models.Prompt{}, 0, nil
		}
		query = query.Where("category_id IN ?", filter.CategoryIDs)
	}
	if filter.Tag != "" {
		query = query.Where(`(',' || tags || ',') LIKE ? ESCAPE '\'`, "%,"+escapeLike(filter.Tag)+",%")
	}
	if filter.Query != "" {
		pattern := "%" + escapeLike(filter.Query) + "%"
		query = query.Where(`title LIKE ? ESCAPE '\' OR prompt_text LIKE ? ESCAPE '\'`, pattern, pattern)
	}

	// Count and Find must not share a statement
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := query.Order("id DESC")
	if filter.Limit > 0 {
		page = page.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		page = page.Offset(filter.Offset)
	}

	prompts := []models.Prompt{}
	if err := page.Find(&prompts).Error; err != nil {
		return nil, 0, err
	}
	return prompts, total, nil
}

func (s *SQLiteStore) CountPrompts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Prompt{}).Count(&count).Error
	return count, err
}

func (s *SQLiteStore) CountPromptsInCategory(ctx context.Context, categoryID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Prompt{}).
		Where("category_id = ?", categoryID).
		Count(&count).Error
	return count, err
}

func (s *SQLiteStore) CountByCheckpoint(ctx context.Context) ([]models.ValueCount, error) {
	var counts []models.ValueCount
	err := s.db.WithContext(ctx).Model(&models.Prompt{}).
		Select("checkpoint AS value, COUNT(*) AS count").
		Where("checkpoint IS NOT NULL AND checkpoint <> ''").
		Group("checkpoint").
		Order("count DESC, value ASC").
		Scan(&counts).Error
	return counts, err
}

func (s *SQLiteStore) PluckTags(ctx context.Context) ([]string, error) {
	var tags []string
	err := s.db.WithContext(ctx).Model(&models.Prompt{}).
		Where("tags <> ''").
		Order("id ASC").
		Pluck("tags", &tags).Error
	return tags, err
}

func (s *SQLiteStore) PluckLoras(ctx context.Context) ([]string, error) {
	var loras []string
	err := s.db.WithContext(ctx).Model(&models.Prompt{}).
		Where("loras IS NOT NULL AND loras <> ''").
		Order("id ASC").
		Pluck("loras", &loras).Error
	return loras, err
}

// Category operations

func (s *SQLiteStore) CreateCategory(ctx context.Context, category *models.Category) error {
	return s.db.WithContext(ctx).Create(category).Error
}

func (s *SQLiteStore) GetCategory(ctx context.Context, id uint) (*models.Category, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, notFound(err, "category", id)
	}
	return &category, nil
}

func (s *SQLiteStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	err := s.db.WithContext(ctx).Order(categoryOrder).Find(&categories).Error
	return categories, err
}

func (s *SQLiteStore) RootCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	err := s.db.WithContext(ctx).
		Where("parent_id IS NULL").
		Order(categoryOrder).
		Find(&categories).Error
	return categories, err
}

func (s *SQLiteStore) ChildCategories(ctx context.Context, parentID uint) ([]models.Category, error) {
	categories := []models.Category{}
	err := s.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order(categoryOrder).
		Find(&categories).Error
	return categories, err
}

func (s *SQLiteStore) UpdateCategory(ctx context.Context, category *models.Category) error {
	return s.db.WithContext(ctx).Save(category).Error
}

// SetCategoryParent changes only the parent_id column of a category.
func (s *SQLiteStore) SetCategoryParent(ctx context.Context, id uint, parentID *uint) error {
	result := s.db.WithContext(ctx).Model(&models.Category{}).
		Where("id = ?", id).
		Update("parent_id", parentID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) DeleteCategory(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Category{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) CountChildCategories(ctx context.Context, parentID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Category{}).
		Where("parent_id = ?", parentID).
		Count(&count).Error
	return count, err
}

func notFound(err error, kind string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
