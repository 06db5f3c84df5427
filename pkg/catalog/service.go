package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mwantia/promptgallery/pkg/category"
	"github.com/mwantia/promptgallery/pkg/db/models"
	"github.com/mwantia/promptgallery/pkg/db/store"
	"github.com/mwantia/promptgallery/pkg/log"
	"github.com/mwantia/promptgallery/pkg/metadata"
	"github.com/mwantia/promptgallery/pkg/uploads"
)

// DefaultPerPage is used when neither the query nor the service sets a page size.
const DefaultPerPage = 12

// ErrValidation is wrapped by every error caused by invalid user input.
var ErrValidation = errors.New("validation failed")

// Image is an uploaded file as received from the user.
type Image struct {
	Filename string
	Data     []byte
}

type AddInput struct {
	Title      string
	PromptText string
	Tags       string
	CategoryID *uint
	Image      *Image
}

// EditInput replaces the editable fields of an entry. A nil Image keeps
// the stored image.
type EditInput struct {
	Title      string
	Tags       string
	CategoryID *uint
	Image      *Image
}

type ListQuery struct {
	// CategoryID includes entries of the category and all its descendants.
	CategoryID *uint
	Tag        string
	Query      string
	Page       int
	PerPage    int
}

type Page struct {
	Items   []models.Prompt `json:"items"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
	Pages   int             `json:"pages"`
}

type Stats struct {
	Total       int64               `json:"total" yaml:"total"`
	Checkpoints []models.ValueCount `json:"checkpoints" yaml:"checkpoints"`
	Loras       []models.ValueCount `json:"loras" yaml:"loras"`
	Tags        []models.ValueCount `json:"tags" yaml:"tags"`
}

// Service implements the catalog operations on top of the store, the
// category tree and the upload sink.
type Service struct {
	Log log.LoggerService `fabric:"logger:catalog"`

	store   store.CatalogStore
	tree    *category.Tree
	sink    *uploads.Sink
	perPage int
}

func NewService(s store.CatalogStore, tree *category.Tree, sink *uploads.Sink, perPage int) *Service {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	return &Service{
		Log:     log.NewNopLogger(),
		store:   s,
		tree:    tree,
		sink:    sink,
		perPage: perPage,
	}
}

// Add stores a new entry. When an image is given it is saved under a
// generated name and its embedded metadata fills the generation fields;
// an image without usable metadata still produces an entry.
func (s *Service) Add(ctx context.Context, in AddInput) (*models.Prompt, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if err := s.checkImage(in.Image); err != nil {
		return nil, err
	}

	prompt := &models.Prompt{
		Title:      title,
		PromptText: strings.TrimSpace(in.PromptText),
		Tags:       CleanTags(in.Tags),
		CategoryID: in.CategoryID,
	}

	if in.Image != nil {
		name, err := s.saveImage(in.Image)
		if err != nil {
			return nil, err
		}
		prompt.ImageFilename = &name
		s.applyMetadata(prompt, in.Image.Data, name)
	}

	err := s.store.Transaction(ctx, func(tx store.CatalogStore) error {
		if err := checkCategory(ctx, tx, in.CategoryID); err != nil {
			return err
		}
		if err := tx.CreatePrompt(ctx, prompt); err != nil {
			return fmt.Errorf("failed to create prompt: %w", err)
		}
		return nil
	})
	if err != nil {
		s.discard(prompt.ImageFilename)
		return nil, err
	}

	s.Log.Info("Added prompt '%s' (%d)", prompt.Title, prompt.ID)
	return prompt, nil
}

// Edit replaces title, tags, category and optionally the image of an entry.
// The prompt text and generation fields are kept.
func (s *Service) Edit(ctx context.Context, id uint, in EditInput) (*models.Prompt, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if err := s.checkImage(in.Image); err != nil {
		return nil, err
	}

	prompt, err := s.store.GetPrompt(ctx, id)
	if err != nil {
		return nil, err
	}

	prompt.Title = title
	prompt.Tags = CleanTags(in.Tags)
	prompt.CategoryID = in.CategoryID

	previous := prompt.ImageFilename
	if in.Image != nil {
		name, err := s.saveImage(in.Image)
		if err != nil {
			return nil, err
		}
		prompt.ImageFilename = &name
	}

	err = s.store.Transaction(ctx, func(tx store.CatalogStore) error {
		if err := checkCategory(ctx, tx, in.CategoryID); err != nil {
			return err
		}
		if err := tx.UpdatePrompt(ctx, prompt); err != nil {
			return fmt.Errorf("failed to update prompt %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		if in.Image != nil {
			s.discard(prompt.ImageFilename)
		}
		return nil, err
	}
	if in.Image != nil {
		s.discard(previous)
	}

	s.Log.Info("Updated prompt '%s' (%d)", prompt.Title, prompt.ID)
	return prompt, nil
}

// Delete removes an entry and its stored image. An image file that is
// already gone is ignored.
func (s *Service) Delete(ctx context.Context, id uint) error {
	prompt, err := s.store.GetPrompt(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeletePrompt(ctx, id); err != nil {
		return err
	}

	s.discard(prompt.ImageFilename)
	s.Log.Info("Deleted prompt '%s' (%d)", prompt.Title, prompt.ID)
	return nil
}

// Reextract reads the stored image again and refreshes every generation
// field from its metadata.
func (s *Service) Reextract(ctx context.Context, id uint) (*models.Prompt, error) {
	prompt, err := s.store.GetPrompt(ctx, id)
	if err != nil {
		return nil, err
	}
	if prompt.ImageFilename == nil {
		return nil, fmt.Errorf("%w: prompt %d has no image", ErrValidation, id)
	}

	data, err := s.sink.ReadFile(*prompt.ImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to read image of prompt %d: %w", id, err)
	}

	bundle, err := metadata.Extract(data)
	if err != nil {
		return nil, err
	}
	s.logWarnings(*prompt.ImageFilename, bundle)

	if text, ok := positiveText(bundle); ok {
		prompt.PromptText = text
	}
	setGenerationFields(prompt, bundle)

	if err := s.store.UpdatePrompt(ctx, prompt); err != nil {
		return nil, fmt.Errorf("failed to update prompt %d: %w", id, err)
	}

	s.Log.Info("Re-extracted metadata of prompt %d", prompt.ID)
	return prompt, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Prompt, error) {
	return s.store.GetPrompt(ctx, id)
}

// List returns one page of entries, newest first.
func (s *Service) List(ctx context.Context, q ListQuery) (*Page, error) {
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = s.perPage
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	filter := store.PromptFilter{
		Tag:    normalizeTag(q.Tag),
		Query:  strings.TrimSpace(q.Query),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	if q.CategoryID != nil {
		ids, err := s.tree.DescendantIDs(ctx, *q.CategoryID)
		if err != nil {
			return nil, err
		}
		filter.CategoryIDs = ids
	}

	items, total, err := s.store.ListPrompts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}

	return &Page{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   int((total + int64(perPage) - 1) / int64(perPage)),
	}, nil
}

// Tags returns every distinct tag in use, sorted.
func (s *Service) Tags(ctx context.Context) ([]string, error) {
	lists, err := s.store.PluckTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}

	seen := make(map[string]struct{})
	tags := []string{}
	for _, list := range lists {
		for _, tag := range SplitTags(list) {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags, nil
}

// Stats counts entries and how often each checkpoint, LoRA and tag is used.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.store.CountPrompts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count prompts: %w", err)
	}

	checkpoints, err := s.store.CountByCheckpoint(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count checkpoints: %w", err)
	}
	sortCounts(checkpoints)

	loras, err := s.store.PluckLoras(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load loras: %w", err)
	}
	tags, err := s.store.PluckTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}

	return &Stats{
		Total:       total,
		Checkpoints: checkpoints,
		Loras:       countValues(loras, "None"),
		Tags:        countValues(tags),
	}, nil
}

// checkCategory verifies that the category exists. Callers run it through
// the transaction that writes the entry.
func checkCategory(ctx context.Context, st store.CatalogStore, id *uint) error {
	if id == nil {
		return nil
	}
	if _, err := st.GetCategory(ctx, *id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: category %d does not exist", ErrValidation, *id)
		}
		return err
	}
	return nil
}

func (s *Service) checkImage(img *Image) error {
	if img == nil {
		return nil
	}
	if len(img.Data) == 0 {
		return fmt.Errorf("%w: image '%s' is empty", ErrValidation, img.Filename)
	}
	if !s.sink.Allowed(img.Filename) {
		return fmt.Errorf("%w: file type of '%s' is not allowed", ErrValidation, img.Filename)
	}
	return nil
}

func (s *Service) saveImage(img *Image) (string, error) {
	name := uploads.GenerateName(img.Filename)
	if _, err := s.sink.Save(img.Data, name); err != nil {
		return "", err
	}
	return name, nil
}

// applyMetadata fills the generation fields from the image. Extraction
// problems are logged and leave the fields empty.
func (s *Service) applyMetadata(prompt *models.Prompt, data []byte, name string) {
	bundle, err := metadata.Extract(data)
	if err != nil {
		s.Log.Warn("No usable metadata in image '%s': %v", name, err)
		return
	}
	s.logWarnings(name, bundle)

	if text, ok := positiveText(bundle); ok {
		prompt.PromptText = text
	}
	setGenerationFields(prompt, bundle)
}

func (s *Service) logWarnings(name string, bundle metadata.Bundle) {
	for _, warning := range bundle.Warnings {
		s.Log.Warn("Ignored value in image '%s': %s", name, warning)
	}
}

func (s *Service) discard(name *string) {
	if name == nil {
		return
	}
	if err := s.sink.Remove(*name); err != nil {
		s.Log.Warn("Failed to remove image '%s': %v", *name, err)
	}
}

// positiveText returns the extracted prompt unless it is missing or blank.
func positiveText(bundle metadata.Bundle) (string, bool) {
	if bundle.PositivePrompt == nil || strings.TrimSpace(*bundle.PositivePrompt) == "" {
		return "", false
	}
	return *bundle.PositivePrompt, true
}

func setGenerationFields(prompt *models.Prompt, bundle metadata.Bundle) {
	prompt.NegativePrompt = bundle.NegativePrompt
	prompt.Seed = bundle.Seed
	prompt.Steps = bundle.Steps
	prompt.Checkpoint = bundle.Checkpoint
	prompt.Loras = bundle.Loras
	prompt.RawMetadata = bundle.Raw
}
