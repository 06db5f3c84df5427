package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mwantia/promptgallery/pkg/db/models"
	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

// Row is the flattened export form of a catalog entry.
type Row struct {
	ID             int64     `parquet:"id" yaml:"id"`
	Title          string    `parquet:"title" yaml:"title"`
	PromptText     string    `parquet:"prompt_text" yaml:"prompt_text"`
	NegativePrompt *string   `parquet:"negative_prompt" yaml:"negative_prompt,omitempty"`
	Seed           *int64    `parquet:"seed" yaml:"seed,omitempty"`
	Steps          *int64    `parquet:"steps" yaml:"steps,omitempty"`
	Checkpoint     *string   `parquet:"checkpoint" yaml:"checkpoint,omitempty"`
	Loras          []string  `parquet:"loras" yaml:"loras,omitempty"`
	Tags           []string  `parquet:"tags" yaml:"tags,omitempty"`
	Category       string    `parquet:"category" yaml:"category,omitempty"`
	ImageFilename  *string   `parquet:"image_filename" yaml:"image_filename,omitempty"`
	CreatedAt      time.Time `parquet:"created_at" yaml:"created_at"`
}

// Rows converts prompts to export rows. paths maps category ids to their
// breadcrumb; entries whose category is missing from paths export an
// empty category.
func Rows(prompts []models.Prompt, paths map[uint]string) []Row {
	rows := make([]Row, 0, len(prompts))
	for _, p := range prompts {
		row := Row{
			ID:             int64(p.ID),
			Title:          p.Title,
			PromptText:     p.PromptText,
			NegativePrompt: p.NegativePrompt,
			Seed:           p.Seed,
			Steps:          p.Steps,
			Checkpoint:     p.Checkpoint,
			Loras:          split(p.Loras),
			Tags:           split(&p.Tags),
			ImageFilename:  p.ImageFilename,
			CreatedAt:      p.CreatedAt.UTC(),
		}
		if p.CategoryID != nil {
			row.Category = paths[*p.CategoryID]
		}
		rows = append(rows, row)
	}
	return rows
}

// WriteParquet writes rows as a single parquet file.
func WriteParquet(w io.Writer, rows []Row) error {
	pw := parquet.NewGenericWriter[Row](w)
	if _, err := pw.Write(rows); err != nil {
		_ = pw.Close()
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}

// WriteYAML writes rows as a yaml sequence.
func WriteYAML(w io.Writer, rows []Row) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

// Write dispatches on format, which is either "parquet" or "yaml".
func Write(w io.Writer, format string, rows []Row) error {
	switch strings.ToLower(format) {
	case "parquet":
		return WriteParquet(w, rows)
	case "yaml", "yml":
		return WriteYAML(w, rows)
	default:
		return fmt.Errorf("unsupported export format '%s'", format)
	}
}

func split(s *string) []string {
	if s == nil || *s == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(*s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
