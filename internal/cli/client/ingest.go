package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// IngestResult is the per-document outcome reported by the API.
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	ImageCount int    `json:"image_count"`
}

// BatchItem is one entry of a batch ingestion response.
type BatchItem struct {
	Filename string        `json:"filename"`
	Result   *IngestResult `json:"result,omitempty"`
	Error    string        `json:"error,omitempty"`
	Code     string        `json:"code,omitempty"`
}

// IngestCmd creates the ingest command.
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest documents",
		Long: `Uploads one or more files and runs them through the ingestion pipeline.

Examples:
  # Ingest a single PDF
  mmrag ingest report.pdf

  # Ingest several files at once; each file succeeds or fails on its own
  mmrag ingest notes.md paper.pdf readme.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runIngest(args, outputJSON)
		},
	}

	return cmd
}

func runIngest(paths []string, outputJSON bool) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("cannot read %s: %w", path, err)
		}
	}

	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.PostMultipart(apiPrefix+"/documents", paths)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	// A single file answers with one result, a batch with per-file items.
	if len(paths) == 1 {
		var result IngestResult
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
		return printIngestResults([]BatchItem{{Filename: result.Filename, Result: &result}}, outputJSON)
	}

	var items []BatchItem
	if err := json.Unmarshal(resp.Data, &items); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return printIngestResults(items, outputJSON)
}

func printIngestResults(items []BatchItem, outputJSON bool) error {
	if outputJSON {
		output, _ := json.MarshalIndent(items, "", "  ")
		fmt.Println(string(output))
	} else {
		var failed int
		for _, item := range items {
			if item.Result != nil {
				fmt.Printf("Ingested %s: %d chunks, %d images\n", item.Filename, item.Result.ChunkCount, item.Result.ImageCount)
				fmt.Printf("  ID: %s\n", item.Result.DocumentID)
			} else {
				failed++
				fmt.Printf("Failed %s: %s\n", item.Filename, item.Error)
			}
		}
		if failed > 0 {
			fmt.Printf("\n%d of %d files failed\n", failed, len(items))
		}
	}

	for _, item := range items {
		if item.Result == nil {
			return fmt.Errorf("some files were not ingested")
		}
	}
	return nil
}
