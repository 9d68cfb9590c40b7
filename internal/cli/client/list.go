package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// Document represents a document from the API.
type Document struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
	Status      string `json:"status"`
	ChunkCount  int    `json:"chunk_count"`
	ImageCount  int    `json:"image_count"`
	CreatedAt   string `json:"created_at"`
}

// ListCmd creates the list command.
func ListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ingested documents",
		Long:  "Lists all documents that finished ingestion and are queryable.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runList(outputJSON)
		},
	}

	return cmd
}

func runList(outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Get(apiPrefix + "/documents")
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	var docs []Document
	if err := json.Unmarshal(resp.Data, &docs); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(docs, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(docs) == 0 {
		fmt.Println("No documents found.")
		return nil
	}

	fmt.Printf("Found %d documents:\n\n", len(docs))
	for i, doc := range docs {
		fmt.Printf("%d. %s\n", i+1, doc.Filename)
		fmt.Printf("   Chunks: %d, Images: %d, Size: %s\n", doc.ChunkCount, doc.ImageCount, formatSize(doc.SizeBytes))
		if doc.CreatedAt != "" {
			fmt.Printf("   Ingested: %s\n", doc.CreatedAt)
		}
		fmt.Printf("   ID: %s\n", doc.ID)
		if i < len(docs)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	return nil
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
