package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/doclens-ai/doclens/internal/app"
)

// newAskCmd creates the ask subcommand.
func newAskCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question against indexed documents",
		Long: `Ask retrieves the most relevant chunks, generates a grounded answer,
and prints it with citations. Requires a configured chat model.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			query := strings.Join(args, " ")

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			if application.RAG == nil {
				return fmt.Errorf("chat model is not configured, set OPENAI_API_KEY")
			}

			var spin *spinner.Spinner
			if !outputJSON {
				spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				spin.Suffix = " thinking..."
				spin.Start()
			}

			result, err := application.RAG.Ask(ctx, ownerID, query, topK)
			if spin != nil {
				spin.Stop()
			}
			if err != nil {
				return fmt.Errorf("answer query: %w", err)
			}

			if outputJSON {
				return printJSON(result)
			}

			fmt.Println(result.Answer)
			if result.Summary != "" {
				fmt.Println()
				color.New(color.FgYellow).Println("Summary:")
				fmt.Println(result.Summary)
			}

			if len(result.Citations) > 0 {
				fmt.Println()
				color.New(color.FgCyan).Println("Sources:")
				for i, hit := range result.Citations {
					fmt.Printf("  %d. %s (chunk %d, score %.4f)\n",
						i+1, hit.Filename, hit.ChunkIndex, hit.Score)
				}
			}
			if result.Cached {
				color.New(color.FgYellow).Println("\n(cached answer)")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of chunks to retrieve (default: configured top_k)")

	return cmd
}
