package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// GetCmd creates the get command.
func GetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "get <document_id>",
		Short:   "Get a document by ID",
		Long:    "Retrieves document metadata including ingestion status and chunk counts.",
		Aliases: []string{"view"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runGet(args[0], outputJSON)
		},
	}

	return cmd
}

func runGet(documentID string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Get(fmt.Sprintf("%s/documents/%s", apiPrefix, documentID))
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(resp.Data, &doc); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(doc, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Filename: %s\n", doc.Filename)
		fmt.Printf("Status: %s\n", doc.Status)
		if doc.ContentType != "" {
			fmt.Printf("Type: %s\n", doc.ContentType)
		}
		fmt.Printf("Size: %s\n", formatSize(doc.SizeBytes))
		fmt.Printf("Chunks: %d\n", doc.ChunkCount)
		fmt.Printf("Images: %d\n", doc.ImageCount)
		fmt.Printf("Ingested: %s\n", doc.CreatedAt)
		fmt.Printf("ID: %s\n", doc.ID)
	}

	return nil
}
