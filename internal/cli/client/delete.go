package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// DeleteAllResult is the API response for a full purge.
type DeleteAllResult struct {
	Deleted int64 `json:"deleted"`
}

func DeleteCmd() *cobra.Command {
	var (
		all   bool
		force bool
	)

	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a document and its derived content",
		Long: `Deletes a document together with its chunks, images, and stored original.

Examples:
  # Delete a single document
  mmrag delete <document_id>

  # Purge the whole corpus (asks for confirmation)
  mmrag delete --all

  # Purge without confirmation
  mmrag delete --all --force`,
		Args: func(cmd *cobra.Command, args []string) error {
			allFlag, _ := cmd.Flags().GetBool("all")
			if allFlag {
				if len(args) != 0 {
					return fmt.Errorf("--all takes no arguments")
				}
				return nil
			}
			if len(args) != 1 {
				return fmt.Errorf("requires exactly 1 argument (document_id) or use --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			if all {
				return runDeleteAll(outputJSON, force)
			}
			return runDelete(args[0], outputJSON)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Delete every document in the corpus")
	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt (only with --all)")

	return cmd
}

func runDelete(documentID string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	if _, err := api.Delete(fmt.Sprintf("%s/documents/%s", apiPrefix, documentID)); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(map[string]interface{}{
			"id":     documentID,
			"status": "deleted",
		}, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Deleted document: %s\n", documentID)
	}

	return nil
}

func runDeleteAll(outputJSON, force bool) error {
	if !force {
		fmt.Print("This removes every document, chunk, and image. Continue? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		answer := strings.ToLower(strings.TrimSpace(input))
		if answer != "y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Delete(apiPrefix + "/documents")
	if err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	var result DeleteAllResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("Deleted %d documents\n", result.Deleted)
	}

	return nil
}
