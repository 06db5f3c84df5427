package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mwantia/promptgallery/internal/agent"
	"github.com/mwantia/promptgallery/pkg/db/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewStatsCommand() *cobra.Command {
	var asYAML bool
	var limit int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show usage counts of checkpoints, LoRAs and tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAgent(cmd, func(ctx context.Context, gsa *agent.GalleryAgent) error {
				stats, err := gsa.Catalog.Stats(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asYAML {
					enc := yaml.NewEncoder(out)
					enc.SetIndent(2)
					if err := enc.Encode(stats); err != nil {
						return err
					}
					return enc.Close()
				}

				fmt.Fprintf(out, "%s %d\n\n", labelStyle.Render("Entries:"), stats.Total)
				renderCounts(cmd, "Checkpoint", stats.Checkpoints, limit)
				renderCounts(cmd, "LoRA", stats.Loras, limit)
				renderCounts(cmd, "Tag", stats.Tags, limit)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print the statistics as yaml")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "only show the most used values of each list")

	return cmd
}

func renderCounts(cmd *cobra.Command, header string, counts []models.ValueCount, limit int) {
	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}

	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{c.Value, strconv.FormatInt(c.Count, 10)})
	}
	renderTable(cmd.OutOrStdout(), []string{header, "Count"}, rows)
}
