package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/doclens-ai/doclens/internal/app"
	"github.com/doclens-ai/doclens/internal/search"
)

// newSearchCmd creates the search subcommand.
func newSearchCmd() *cobra.Command {
	var (
		topK int
		mode string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed chunks directly",
		Long: `Search returns ranked chunks without answer generation. Modes: hybrid
(vector plus full text, fused), vector, or lexical.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
			defer cancel()

			query := strings.Join(args, " ")

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			var hits []search.Hit
			switch mode {
			case "lexical":
				hits, err = application.Searcher.Lexical(ctx, ownerID, query, topK)
			case "vector":
				var vec []float32
				if vec, err = application.Embedder.EmbedSingle(ctx, query); err == nil {
					hits, err = application.Searcher.Vector(ctx, ownerID, vec, topK)
				}
			case "hybrid":
				var vec []float32
				if vec, err = application.Embedder.EmbedSingle(ctx, query); err == nil {
					hits, err = application.Searcher.Hybrid(ctx, ownerID, query, vec, topK)
				}
			default:
				return fmt.Errorf("invalid mode %q, expected hybrid, vector, or lexical", mode)
			}
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			if outputJSON {
				return printJSON(map[string]interface{}{"query": query, "results": hits})
			}

			if len(hits) == 0 {
				fmt.Println("No results.")
				return nil
			}
			for i, hit := range hits {
				content := hit.Content
				if len(content) > 120 {
					content = content[:120] + "..."
				}
				color.New(color.FgCyan).Printf("%d. %s (chunk %d, score %.4f)\n",
					i+1, hit.Filename, hit.ChunkIndex, hit.Score)
				fmt.Printf("   %s\n", content)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "number of results")
	cmd.Flags().StringVar(&mode, "mode", "hybrid", "search mode (hybrid, vector, lexical)")

	return cmd
}
