package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mwantia/promptgallery/pkg/db/models"
	"github.com/mwantia/promptgallery/pkg/db/store"
	"github.com/mwantia/promptgallery/pkg/export"
)

// exportPageSize bounds how many entries are loaded per store query while exporting.
const exportPageSize = 200

// Export writes every entry matching q in the given format and returns the
// number of rows written. Paging fields of q are ignored.
func (s *Service) Export(ctx context.Context, w io.Writer, format string, q ListQuery) (int, error) {
	var prompts []models.Prompt

	q.PerPage = exportPageSize
	for q.Page = 1; ; q.Page++ {
		page, err := s.List(ctx, q)
		if err != nil {
			return 0, err
		}
		prompts = append(prompts, page.Items...)
		if q.Page >= page.Pages {
			break
		}
	}

	paths, err := s.categoryPaths(ctx, prompts)
	if err != nil {
		return 0, err
	}

	rows := export.Rows(prompts, paths)
	if err := export.Write(w, format, rows); err != nil {
		return 0, err
	}

	s.Log.Info("Exported %d prompts as %s", len(rows), format)
	return len(rows), nil
}

func (s *Service) categoryPaths(ctx context.Context, prompts []models.Prompt) (map[uint]string, error) {
	paths := make(map[uint]string)
	for _, p := range prompts {
		if p.CategoryID == nil {
			continue
		}
		if _, ok := paths[*p.CategoryID]; ok {
			continue
		}
		names, err := s.tree.Path(ctx, *p.CategoryID)
		if errors.Is(err, store.ErrNotFound) {
			s.Log.Warn("Prompt %d references missing category %d", p.ID, *p.CategoryID)
			paths[*p.CategoryID] = ""
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve category %d: %w", *p.CategoryID, err)
		}
		paths[*p.CategoryID] = strings.Join(names, " / ")
	}
	return paths, nil
}
