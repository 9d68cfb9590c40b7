package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// DownloadResult is the API response carrying the presigned link.
type DownloadResult struct {
	URL string `json:"url"`
}

// DownloadCmd creates the download command.
func DownloadCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <document_id>",
		Short: "Download the original file of a document",
		Long:  "Fetches a presigned link to the archived original. Prints the link, or saves the file when --out is given.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDownload(args[0], output, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&output, "out", "O", "", "Write the file to this path instead of printing the link")

	return cmd
}

func runDownload(documentID, outputPath string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Get(fmt.Sprintf("%s/documents/%s/download", apiPrefix, documentID))
	if err != nil {
		return fmt.Errorf("failed to get download link: %w", err)
	}

	var result DownloadResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputPath == "" {
		if outputJSON {
			output, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(output))
		} else {
			fmt.Println(result.URL)
		}
		return nil
	}

	err = api.DownloadFileWithProgress(result.URL, outputPath, func(current, total int64) {
		if total > 0 {
			fmt.Printf("\rDownloading... %d%%", current*100/total)
		}
	})
	if err != nil {
		return err
	}
	fmt.Printf("\rSaved to %s\n", outputPath)

	return nil
}
