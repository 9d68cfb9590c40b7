package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SanyamVb/Multi-modal-RAG/internal/config"
	"github.com/SanyamVb/Multi-modal-RAG/internal/database"
	"github.com/SanyamVb/Multi-modal-RAG/internal/domain"
	"github.com/SanyamVb/Multi-modal-RAG/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func StatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show corpus statistics",
		Long:  "Show document, chunk, and image counts for the ingested corpus",
		RunE:  runStatus,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	documentRepo := repository.NewDocumentRepository(pool)
	docs, err := documentRepo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	byStatus := map[domain.DocumentStatus]int{}
	var chunks, images int
	for _, doc := range docs {
		byStatus[doc.Status]++
		chunks += doc.ChunkCount
		images += doc.ImageCount
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"documents": map[string]interface{}{
				"ready":     byStatus[domain.DocumentStatusReady],
				"ingesting": byStatus[domain.DocumentStatusIngesting],
				"failed":    byStatus[domain.DocumentStatusFailed],
				"total":     len(docs),
			},
			"chunks": chunks,
			"images": images,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Documents: %d ready, %d ingesting, %d failed\n",
			byStatus[domain.DocumentStatusReady],
			byStatus[domain.DocumentStatusIngesting],
			byStatus[domain.DocumentStatusFailed])
		fmt.Printf("Chunks:    %d\n", chunks)
		fmt.Printf("Images:    %d\n", images)
	}

	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return pool, nil
}
