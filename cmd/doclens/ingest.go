package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/doclens-ai/doclens/internal/app"
	"github.com/doclens-ai/doclens/internal/storage"
)

// newIngestCmd creates the ingest subcommand.
func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest local files through the processing pipeline",
		Long: `Ingest extracts, chunks, deduplicates, masks, embeds, and indexes each
file. Documents become searchable once they reach the ready status.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := storage.Migrate(ctx, application.DB, cfg.Embedding.Dimension); err != nil {
				return fmt.Errorf("migrate schema: %w", err)
			}

			var bar *progressbar.ProgressBar
			if !outputJSON && len(args) > 1 {
				bar = progressbar.NewOptions(len(args),
					progressbar.OptionSetDescription("ingesting"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}

			type fileResult struct {
				File       string `json:"file"`
				DocumentID string `json:"document_id,omitempty"`
				Status     string `json:"status"`
				Chunks     int    `json:"chunks,omitempty"`
				Error      string `json:"error,omitempty"`
			}
			var results []fileResult

			for _, path := range args {
				res := ingestFile(ctx, application, path)
				results = append(results, fileResult{
					File:       path,
					DocumentID: res.documentID,
					Status:     res.status,
					Chunks:     res.chunks,
					Error:      res.errMsg,
				})
				if bar != nil {
					bar.Add(1)
				}
			}

			if outputJSON {
				return printJSON(map[string]interface{}{"results": results})
			}

			for _, res := range results {
				if res.Error != "" {
					color.New(color.FgRed).Printf("✗ %s: %s\n", res.File, res.Error)
					continue
				}
				color.New(color.FgGreen).Printf("✓ %s\n", res.File)
				fmt.Printf("  Document ID: %s\n", res.DocumentID)
				fmt.Printf("  Chunks indexed: %d\n", res.Chunks)
			}
			return nil
		},
	}
	return cmd
}

type ingestResult struct {
	documentID string
	status     string
	chunks     int
	errMsg     string
}

// ingestFile registers one file as a document and runs the pipeline on it.
func ingestFile(ctx context.Context, application *app.App, path string) ingestResult {
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	if _, err := os.Stat(path); err != nil {
		return ingestResult{status: "error", errMsg: err.Error()}
	}

	doc := &storage.Document{
		OwnerID:  ownerID,
		Filename: filepath.Base(path),
		MimeType: mime.TypeByExtension(filepath.Ext(path)),
		Path:     path,
		Meta:     storage.JSONMap{},
	}
	if err := application.Repos.Documents.Create(ctx, doc); err != nil {
		return ingestResult{status: "error", errMsg: err.Error()}
	}

	report, err := application.Pipeline.Run(ctx, doc)
	if err != nil {
		return ingestResult{documentID: doc.ID.String(), status: "error", errMsg: err.Error()}
	}

	chunks := 0
	if v, ok := report.Meta["indexed_chunks"].(int); ok {
		chunks = v
	}
	return ingestResult{documentID: doc.ID.String(), status: "ready", chunks: chunks}
}
