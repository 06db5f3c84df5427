package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss/tree"
	"github.com/mwantia/promptgallery/internal/agent"
	"github.com/mwantia/promptgallery/pkg/category"
	"github.com/spf13/cobra"
)

func NewCategoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "category",
		Aliases: []string{"categories", "cat"},
		Short:   "Manage the category hierarchy",
		Long:    "List, create, rename, move and remove categories. Categories form a forest; a category can never be moved below itself.",
	}

	cmd.AddCommand(NewCategoryListCommand())
	cmd.AddCommand(NewCategoryAddCommand())
	cmd.AddCommand(NewCategoryEditCommand())
	cmd.AddCommand(NewCategoryMoveCommand())
	cmd.AddCommand(NewCategoryRemoveCommand())

	return cmd
}

func NewCategoryListCommand() *cobra.Command {
	var flat bool

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "Show the category tree",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, func(ctx context.Context, gsa *agent.GalleryAgent) error {
				out := cmd.OutOrStdout()

				if flat {
					options, err := gsa.Tree.Options(ctx, nil)
					if err != nil {
						return err
					}
					for _, o := range options {
						fmt.Fprintf(out, "%4d  %s\n", o.ID, o.Label)
					}
					return nil
				}

				forest, err := gsa.Tree.Build(ctx)
				if err != nil {
					return err
				}
				if len(forest) == 0 {
					fmt.Fprintln(out, dimStyle.Render("no categories"))
					return nil
				}

				root := tree.New().
					Enumerator(tree.RoundedEnumerator).
					EnumeratorStyle(borderStyle)
				for _, node := range forest {
					root.Child(renderNode(node))
				}
				fmt.Fprintln(out, root.String())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&flat, "flat", false, "print the indented selection list instead of a tree")

	return cmd
}

func renderNode(node *category.TreeNode) any {
	label := fmt.Sprintf("%s %s", node.Name, dimStyle.Render("#"+strconv.FormatUint(uint64(node.ID), 10)))
	if len(node.Children) == 0 {
		return label
	}

	t := tree.Root(label).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(borderStyle)
	for _, child := range node.Children {
		t.Child(renderNode(child))
	}
	return t
}

func NewCategoryAddCommand() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, err := categoryFlag(cmd, "parent")
			if err != nil {
				return err
			}

			return withAgent(cmd, func(ctx context.Context, gsa *agent.GalleryAgent) error {
				c, err := gsa.Tree.Create(ctx, args[0], description, parent)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created category '%s' (%d)\n", c.Name, c.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "category description")
	cmd.Flags().Uint("parent", 0, "parent category id")

	return cmd
}

func NewCategoryEditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Rename or describe a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withAgent(cmd, func(ctx context.Context, gsa *agent.GalleryAgent) error {
				current, err := gsa.Tree.Get(ctx, id)
				if err != nil {
					return err
				}

				name, description := current.Name, current.Description
				if cmd.Flags().Changed("name") {
					name, _ = cmd.Flags().GetString("name")
				}
				if cmd.Flags().Changed("description") {
					description, _ = cmd.Flags().GetString("description")
				}

				c, err := gsa.Tree.Update(ctx, id, name, description, current.ParentID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated category '%s' (%d)\n", c.Name, c.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringP("name", "n", "", "new name")
	cmd.Flags().StringP("description", "d", "", "new description")

	return cmd
}

func NewCategoryMoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mv <id> [parent-id]",
		Short: "Move a category below another one",
		Long:  "Move a category below another one. Without a parent id the category becomes a top-level category.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var parent *uint
			if len(args) == 2 {
				p, err := parseID(args[1])
				if err != nil {
					return err
				}
				parent = &p
			}

			return withAgent(cmd, func(ctx context.Context, gsa *agent.GalleryAgent) error {
				if err := gsa.Tree.Move(ctx, id, parent); err != nil {
					if errors.Is(err, category.ErrCycle) {
						return fmt.Errorf("refusing move: %w", err)
					}
					return err
				}

				names, err := gsa.Tree.Path(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved category %d to %s\n", id, strings.Join(names, " / "))
				return nil
			})
		},
	}

	return cmd
}

func NewCategoryRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove an empty category",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withAgent(cmd, func(ctx context.Context, gsa *agent.GalleryAgent) error {
				if err := gsa.Tree.Delete(ctx, id); err != nil {
					var notEmpty *category.NotEmptyError
					if errors.As(err, &notEmpty) {
						return fmt.Errorf("category %d still holds %d entries and %d subcategories, move or remove them first",
							notEmpty.ID, notEmpty.Entries, notEmpty.Children)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed category %d\n", id)
				return nil
			})
		},
	}

	return cmd
}
