package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mwantia/promptgallery/internal/agent"
	"github.com/mwantia/promptgallery/pkg/catalog"
	"github.com/mwantia/promptgallery/pkg/db/models"
	"github.com/spf13/cobra"
)

func NewPromptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prompt",
		Aliases: []string{"prompts"},
		Short:   "Manage catalog entries",
		Long:    "Add, list, edit and remove catalog entries and export the catalog.",
	}

	cmd.AddCommand(NewPromptAddCommand())
	cmd.AddCommand(NewPromptListCommand())
	cmd.AddCommand(NewPromptShowCommand())
	cmd.AddCommand(NewPromptEditCommand())
	cmd.AddCommand(NewPromptRemoveCommand())
	cmd.AddCommand(NewPromptReextractCommand())
	cmd.AddCommand(NewPromptExportCommand())

	return cmd
}

func NewPromptAddCommand() *cobra.Command {
	var title, text, tags, image string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a catalog entry",
		Long:  "Add a catalog entry. When an image is given, its embedded generation metadata fills prompt, model, LoRAs, seed and steps.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			categoryID, err := categoryFlag(cmd, "category")
			if err != nil {
				return err
			}

			in := catalog.AddInput{
				Title:      title,
				PromptText: text,
				Tags:       tags,
				CategoryID: categoryID,
			}
			if image != "" {
				if in.Image, err = readImage(image); err != nil {
					return err
				}
			}

			return withAgent(cmd, func(ctx context.Context, gsa *agent.GalleryAgent) error {
				prompt, err := gsa.Catalog.Add(ctx, in)
				if err != nil {
					return err
				}
				return showPrompt(ctx, cmd.OutOrStdout(), gsa, prompt)
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "title of the entry")
	cmd.Flags().StringVarP(&text, "prompt", "p", "", "prompt text, replaced by the prompt found in the image")
	cmd.Flags().StringVar(&tags, "tags", "", "comma separated tags")
	cmd.Flags().StringVarP(&image, "image", "i", "", "path of the image to upload")
	cmd.Flags().Uint("category", 0, "category id")
	cmd.MarkFlagRequired("title")

	return cmd
}

func NewPromptListCommand() *cobra.Command {
	var query catalog.ListQuery

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List catalog entries",
		Long:    "List catalog entries, newest first. Filtering by category includes all of its subcategories.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if query.CategoryID, err = categoryFlag(cmd, "category"); err != nil {
				return err
			}

			return withAgent(cmd, func(ctx context.Context, gsa *agent.GalleryAgent) error {
				page, err := gsa.Catalog.List(ctx, query)
				if err != nil {
					return err
				}

				rows := make([][]string, 0, len(page.Items))
				for _, p := range page.Items {
					rows = append(rows, []string{
						strconv.FormatUint(uint64(p.ID), 10),
						p.Title,
						deref(p.Checkpoint),
						p.Tags,
						p.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}

				out := cmd.OutOrStdout()
				renderTable(out, []string{"ID", "Title", "Checkpoint", "Tags", "Created"}, rows)
				fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("page %d of %d, %d entries", page.Page, max(page.Pages, 1), page.Total)))
				return nil
			})
		},
	}

	cmd.Flags().Uint("category", 0, "only entries in this category or below")
	cmd.Flags().StringVar(&query.Tag, "tag", "", "only entries carrying this tag")
	cmd.Flags().StringVarP(&query.Query, "query", "q", "", "search title and prompt text")
	cmd.Flags().IntVar(&query.Page, "page", 1, "page to show")
	cmd.Flags().IntVar(&query.PerPage, "per-page", 0, "entries per page (default from http.page_size)")

	return cmd
}

func NewPromptShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a catalog entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withAgent(cmd, func(ctx context.Context, gsa *agent.GalleryAgent) error {
				prompt, err := gsa.Catalog.Get(ctx, id)
				if err != nil {
					return err
				}
				return showPrompt(ctx, cmd.OutOrStdout(), gsa, prompt)
			})
		},
	}

	return cmd
}

func NewPromptEditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a catalog entry",
		Long:  "Edit title, tags, category or image of a catalog entry. Flags that are not given keep their current value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withAgent(cmd, func(ctx context.Context, gsa *agent.GalleryAgent) error {
				current, err := gsa.Catalog.Get(ctx, id)
				if err != nil {
					return err
				}

				in := catalog.EditInput{
					Title:      current.Title,
					Tags:       current.Tags,
					CategoryID: current.CategoryID,
				}
				flags := cmd.Flags()
				if flags.Changed("title") {
					in.Title, _ = flags.GetString("title")
				}
				if flags.Changed("tags") {
					in.Tags, _ = flags.GetString("tags")
				}
				if flags.Changed("category") {
					if in.CategoryID, err = categoryFlag(cmd, "category"); err != nil {
						return err
					}
				}
				if top, _ := flags.GetBool("no-category"); top {
					in.CategoryID = nil
				}
				if path, _ := flags.GetString("image"); path != "" {
					if in.Image, err = readImage(path); err != nil {
						return err
					}
				}

				prompt, err := gsa.Catalog.Edit(ctx, id, in)
				if err != nil {
					return err
				}
				return showPrompt(ctx, cmd.OutOrStdout(), gsa, prompt)
			})
		},
	}

	cmd.Flags().StringP("title", "t", "", "new title")
	cmd.Flags().String("tags", "", "new comma separated tags")
	cmd.Flags().Uint("category", 0, "new category id")
	cmd.Flags().Bool("no-category", false, "remove the entry from its category")
	cmd.Flags().StringP("image", "i", "", "path of a replacement image")
	cmd.MarkFlagsMutuallyExclusive("category", "no-category")

	return cmd
}

func NewPromptRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a catalog entry and its image",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withAgent(cmd, func(ctx context.Context, gsa *agent.GalleryAgent) error {
				if err := gsa.Catalog.Delete(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed prompt %d\n", id)
				return nil
			})
		},
	}

	return cmd
}

func NewPromptReextractCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reextract <id>",
		Short: "Read the generation metadata of the stored image again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withAgent(cmd, func(ctx context.Context, gsa *agent.GalleryAgent) error {
				prompt, err := gsa.Catalog.Reextract(ctx, id)
				if err != nil {
					return err
				}
				return showPrompt(ctx, cmd.OutOrStdout(), gsa, prompt)
			})
		},
	}

	return cmd
}

func NewPromptExportCommand() *cobra.Command {
	var query catalog.ListQuery
	var format, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog as parquet or yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if query.CategoryID, err = categoryFlag(cmd, "category"); err != nil {
				return err
			}

			return withAgent(cmd, func(ctx context.Context, gsa *agent.GalleryAgent) error {
				var w io.Writer = cmd.OutOrStdout()
				if output != "" && output != "-" {
					file, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("failed to create export file: %w", err)
					}
					defer file.Close()
					w = file
				}

				n, err := gsa.Catalog.Export(ctx, w, format, query)
				if err != nil {
					return err
				}
				if w != cmd.OutOrStdout() {
					fmt.Fprintf(cmd.OutOrStdout(), "Exported %d prompts to %s\n", n, output)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "parquet", "export format (parquet, yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().Uint("category", 0, "only entries in this category or below")
	cmd.Flags().StringVar(&query.Tag, "tag", "", "only entries carrying this tag")
	cmd.Flags().StringVarP(&query.Query, "query", "q", "", "search title and prompt text")

	return cmd
}

func readImage(path string) (*catalog.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return &catalog.Image{Filename: filepath.Base(path), Data: data}, nil
}

func showPrompt(ctx context.Context, w io.Writer, gsa *agent.GalleryAgent, p *models.Prompt) error {
	category := ""
	if p.CategoryID != nil {
		names, err := gsa.Tree.Path(ctx, *p.CategoryID)
		if err != nil {
			return err
		}
		category = strings.Join(names, " / ")
	}

	image := ""
	if p.ImageFilename != nil {
		image = filepath.Join(gsa.Sink.Dir(), *p.ImageFilename)
	}

	renderFields(w, [][2]string{
		{"ID", strconv.FormatUint(uint64(p.ID), 10)},
		{"Title", p.Title},
		{"Category", category},
		{"Tags", p.Tags},
		{"Prompt", p.PromptText},
		{"Negative", deref(p.NegativePrompt)},
		{"Checkpoint", deref(p.Checkpoint)},
		{"LoRAs", deref(p.Loras)},
		{"Seed", deref(p.Seed)},
		{"Steps", deref(p.Steps)},
		{"Image", image},
		{"Created", p.CreatedAt.Local().Format("2006-01-02 15:04:05")},
	})
	return nil
}
