package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/doclens-ai/doclens/internal/app"
)

// newDocumentsCmd creates the documents subcommand group.
func newDocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List and delete documents",
	}
	cmd.AddCommand(newDocumentsListCmd())
	cmd.AddCommand(newDocumentsDeleteCmd())
	return cmd
}

func newDocumentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the owner's documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			docs, err := application.Repos.Documents.ListByOwner(ctx, ownerID)
			if err != nil {
				return fmt.Errorf("list documents: %w", err)
			}

			if outputJSON {
				return printJSON(map[string]interface{}{"documents": docs})
			}

			if len(docs) == 0 {
				fmt.Println("No documents.")
				return nil
			}
			for _, doc := range docs {
				statusColor := color.New(color.FgGreen)
				switch doc.Status {
				case "error":
					statusColor = color.New(color.FgRed)
				case "pending", "processing":
					statusColor = color.New(color.FgYellow)
				}
				fmt.Printf("%s  ", doc.ID)
				statusColor.Printf("%-10s", doc.Status)
				fmt.Printf("  %s  %s\n", doc.CreatedAt.Format("2006-01-02 15:04"), doc.Filename)
			}
			return nil
		},
	}
}

func newDocumentsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid document id: %w", err)
			}

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.Repos.Documents.Delete(ctx, ownerID, id); err != nil {
				return fmt.Errorf("delete document: %w", err)
			}

			if outputJSON {
				return printJSON(map[string]string{"deleted": id.String()})
			}
			color.New(color.FgGreen).Printf("✓ Deleted %s\n", id)
			return nil
		},
	}
}
