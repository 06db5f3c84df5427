package category

import (
	"context"
	"fmt"
	"strings"

	"github.com/mwantia/promptgallery/pkg/db/models"
	"github.com/mwantia/promptgallery/pkg/db/store"
	"github.com/mwantia/promptgallery/pkg/log"
)

// Indent is prepended once per depth level to option labels.
const Indent = "\u3000"

// Tree maintains the category forest. Every operation works on ids through
// the store; mutations validate and write inside one store transaction.
type Tree struct {
	Log log.LoggerService `fabric:"logger:category"`

	store store.CatalogStore
}

// Option is one entry of the flat selection list built by Options.
type Option struct {
	ID    uint   `json:"id"`
	Label string `json:"label"`
	Depth int    `json:"depth"`
}

// TreeNode is a category with its nested children.
type TreeNode struct {
	ID          uint        `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	ParentID    *uint       `json:"parent_id"`
	Children    []*TreeNode `json:"children"`
}

func NewTree(s store.CatalogStore) *Tree {
	return &Tree{
		Log:   log.NewNopLogger(),
		store: s,
	}
}

func (t *Tree) Get(ctx context.Context, id uint) (*models.Category, error) {
	return t.store.GetCategory(ctx, id)
}

func (t *Tree) List(ctx context.Context) ([]models.Category, error) {
	return t.store.ListCategories(ctx)
}

func (t *Tree) Roots(ctx context.Context) ([]models.Category, error) {
	return t.store.RootCategories(ctx)
}

func (t *Tree) Children(ctx context.Context, id uint) ([]models.Category, error) {
	if _, err := t.store.GetCategory(ctx, id); err != nil {
		return nil, err
	}
	return t.store.ChildCategories(ctx, id)
}

// Descendants returns every category below id, depth-first with parents
// before their children. The category itself is not included.
func (t *Tree) Descendants(ctx context.Context, id uint) ([]models.Category, error) {
	return descendants(ctx, t.store, id)
}

// DescendantIDs returns id followed by the ids of all its descendants.
func (t *Tree) DescendantIDs(ctx context.Context, id uint) ([]uint, error) {
	below, err := descendants(ctx, t.store, id)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(below)+1)
	ids = append(ids, id)
	for _, c := range below {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// Path returns the names from the root down to id.
func (t *Tree) Path(ctx context.Context, id uint) ([]string, error) {
	chain, err := ancestry(ctx, t.store, id)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(chain))
	for i, c := range chain {
		names[i] = c.Name
	}
	return names, nil
}

// PathCategories returns the categories from the root down to id.
func (t *Tree) PathCategories(ctx context.Context, id uint) ([]models.Category, error) {
	return ancestry(ctx, t.store, id)
}

// IsAncestorOf reports whether a lies on the parent chain of b.
// A category is not its own ancestor.
func (t *Tree) IsAncestorOf(ctx context.Context, a, b uint) (bool, error) {
	return isAncestorOf(ctx, t.store, a, b)
}

// Create adds a new category below parent, or a root when parent is nil.
func (t *Tree) Create(ctx context.Context, name, description string, parent *uint) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidCategory
	}

	category := &models.Category{
		Name:        name,
		Description: strings.TrimSpace(description),
		ParentID:    parent,
	}

	err := t.store.Transaction(ctx, func(tx store.CatalogStore) error {
		if parent != nil {
			if _, err := tx.GetCategory(ctx, *parent); err != nil {
				return err
			}
		}
		return tx.CreateCategory(ctx, category)
	})
	if err != nil {
		return nil, err
	}

	t.Log.Info("Created category '%s' (%d)", category.Name, category.ID)
	return category, nil
}

// Update renames a category and re-parents it when parent differs from the
// stored parent.
func (t *Tree) Update(ctx context.Context, id uint, name, description string, parent *uint) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidCategory
	}

	var category *models.Category
	err := t.store.Transaction(ctx, func(tx store.CatalogStore) error {
		current, err := tx.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		if !sameParent(current.ParentID, parent) {
			if err := checkMove(ctx, tx, id, parent); err != nil {
				return err
			}
		}

		current.Name = name
		current.Description = strings.TrimSpace(description)
		current.ParentID = parent
		if err := tx.UpdateCategory(ctx, current); err != nil {
			return err
		}
		category = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.Log.Info("Updated category '%s' (%d)", category.Name, category.ID)
	return category, nil
}

// Move re-parents id below parent, or makes it a root when parent is nil.
// The move is refused with a CycleError when parent is id itself or one of
// its descendants.
func (t *Tree) Move(ctx context.Context, id uint, parent *uint) error {
	err := t.store.Transaction(ctx, func(tx store.CatalogStore) error {
		if _, err := tx.GetCategory(ctx, id); err != nil {
			return err
		}
		if err := checkMove(ctx, tx, id, parent); err != nil {
			return err
		}
		return tx.SetCategoryParent(ctx, id, parent)
	})
	if err != nil {
		return err
	}

	if parent == nil {
		t.Log.Info("Moved category %d to the top level", id)
	} else {
		t.Log.Info("Moved category %d below %d", id, *parent)
	}
	return nil
}

// Delete removes a category that has neither entries nor subcategories.
func (t *Tree) Delete(ctx context.Context, id uint) error {
	err := t.store.Transaction(ctx, func(tx store.CatalogStore) error {
		if _, err := tx.GetCategory(ctx, id); err != nil {
			return err
		}

		entries, err := tx.CountPromptsInCategory(ctx, id)
		if err != nil {
			return err
		}
		children, err := tx.CountChildCategories(ctx, id)
		if err != nil {
			return err
		}
		if entries > 0 || children > 0 {
			return &NotEmptyError{ID: id, Entries: entries, Children: children}
		}

		return tx.DeleteCategory(ctx, id)
	})
	if err != nil {
		return err
	}

	t.Log.Info("Deleted category %d", id)
	return nil
}

// Options returns every category as a flat depth-first list with labels
// indented by depth. When exclude is set, that category and its whole
// subtree are left out.
func (t *Tree) Options(ctx context.Context, exclude *uint) ([]Option, error) {
	index, roots, err := t.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	type frame struct {
		category models.Category
		depth    int
	}

	options := []Option{}
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{category: roots[i]})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if exclude != nil && top.category.ID == *exclude {
			continue
		}

		options = append(options, Option{
			ID:    top.category.ID,
			Label: strings.Repeat(Indent, top.depth) + top.category.Name,
			Depth: top.depth,
		})

		children := index[top.category.ID]
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{category: children[i], depth: top.depth + 1})
		}
	}

	return options, nil
}

// Build returns the whole forest as nested nodes.
func (t *Tree) Build(ctx context.Context) ([]*TreeNode, error) {
	index, roots, err := t.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	forest := make([]*TreeNode, 0, len(roots))
	pending := make([]*TreeNode, 0, len(roots))
	for _, root := range roots {
		node := newTreeNode(root)
		forest = append(forest, node)
		pending = append(pending, node)
	}

	for len(pending) > 0 {
		node := pending[0]
		pending = pending[1:]

		for _, child := range index[node.ID] {
			childNode := newTreeNode(child)
			node.Children = append(node.Children, childNode)
			pending = append(pending, childNode)
		}
	}

	return forest, nil
}

// snapshot loads all categories once and groups them by parent id.
func (t *Tree) snapshot(ctx context.Context) (map[uint][]models.Category, []models.Category, error) {
	all, err := t.store.ListCategories(ctx)
	if err != nil {
		return nil, nil, err
	}

	index := make(map[uint][]models.Category)
	roots := []models.Category{}
	for _, c := range all {
		if c.ParentID == nil {
			roots = append(roots, c)
			continue
		}
		index[*c.ParentID] = append(index[*c.ParentID], c)
	}
	return index, roots, nil
}

func newTreeNode(c models.Category) *TreeNode {
	return &TreeNode{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		ParentID:    c.ParentID,
		Children:    []*TreeNode{},
	}
}

func descendants(ctx context.Context, s store.CatalogStore, id uint) ([]models.Category, error) {
	if _, err := s.GetCategory(ctx, id); err != nil {
		return nil, err
	}

	result := []models.Category{}
	visited := map[uint]bool{id: true}
	stack := []models.Category{}

	push := func(parent uint) error {
		children, err := s.ChildCategories(ctx, parent)
		if err != nil {
			return err
		}
		// reversed so the first sibling is popped first
		for i := len(children) - 1; i >= 0; i-- {
			if visited[children[i].ID] {
				return fmt.Errorf("%w: category %d reached twice below %d", ErrCorruptHierarchy, children[i].ID, id)
			}
			visited[children[i].ID] = true
			stack = append(stack, children[i])
		}
		return nil
	}

	if err := push(id); err != nil {
		return nil, err
	}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		result = append(result, current)
		if err := push(current.ID); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// ancestry returns the parent chain of id, root first.
func ancestry(ctx context.Context, s store.CatalogStore, id uint) ([]models.Category, error) {
	current, err := s.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}

	chain := []models.Category{*current}
	visited := map[uint]bool{id: true}
	for current.ParentID != nil {
		parentID := *current.ParentID
		if visited[parentID] {
			return nil, fmt.Errorf("%w: category %d is its own ancestor", ErrCorruptHierarchy, parentID)
		}
		visited[parentID] = true

		if current, err = s.GetCategory(ctx, parentID); err != nil {
			return nil, err
		}
		chain = append(chain, *current)
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func isAncestorOf(ctx context.Context, s store.CatalogStore, a, b uint) (bool, error) {
	chain, err := ancestry(ctx, s, b)
	if err != nil {
		return false, err
	}
	// the last element is b itself
	for _, c := range chain[:len(chain)-1] {
		if c.ID == a {
			return true, nil
		}
	}
	return false, nil
}

// checkMove validates moving id below parent against the stored hierarchy.
func checkMove(ctx context.Context, s store.CatalogStore, id uint, parent *uint) error {
	if parent == nil {
		return nil
	}
	if *parent == id {
		return &CycleError{ID: id, Parent: *parent}
	}

	cycle, err := isAncestorOf(ctx, s, id, *parent)
	if err != nil {
		return err
	}
	if cycle {
		return &CycleError{ID: id, Parent: *parent}
	}
	return nil
}

func sameParent(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
