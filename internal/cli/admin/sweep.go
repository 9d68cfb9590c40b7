package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/SanyamVb/Multi-modal-RAG/internal/config"
	"github.com/SanyamVb/Multi-modal-RAG/internal/jobs"
	"github.com/SanyamVb/Multi-modal-RAG/internal/repository"
	"github.com/SanyamVb/Multi-modal-RAG/internal/storage"
	"github.com/spf13/cobra"
)

func SweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove leftovers of failed ingestions",
		Long:  "Run one janitor pass that removes stale in-flight ingestions and failed documents together with their chunks, images, and stored originals",
		RunE:  runSweep,
	}

	cmd.Flags().Int("ttl", 0, "Age in minutes before an in-flight ingestion counts as stale (default from config)")

	return cmd
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	ttlMinutes := cfg.StaleIngestTTLMinutes
	if flagTTL, _ := cmd.Flags().GetInt("ttl"); flagTTL > 0 {
		ttlMinutes = flagTTL
	}

	var janitorStorage jobs.JanitorStorage
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		janitorStorage = s3Client
	}

	janitor := jobs.NewJanitor(
		repository.NewDocumentRepository(pool),
		repository.NewChunkRepository(pool),
		repository.NewImageRepository(pool),
		janitorStorage,
		time.Duration(ttlMinutes)*time.Minute,
	)

	if err := janitor.ProcessJobs(ctx); err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	fmt.Println("Sweep complete")
	return nil
}
