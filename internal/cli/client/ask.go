package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// AskRequest represents the answers API request.
type AskRequest struct {
	Question string        `json:"question"`
	Scope    []string      `json:"scope,omitempty"`
	History  []HistoryTurn `json:"history,omitempty"`
	TopK     int           `json:"top_k,omitempty"`
	MinScore float64       `json:"min_score,omitempty"`
}

// HistoryTurn is one prior exchange in a conversation.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Citation links an answer back to a retrieved passage.
type Citation struct {
	Marker     string  `json:"marker"`
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Ordinal    int     `json:"ordinal"`
	Page       int     `json:"page,omitempty"`
	Score      float64 `json:"score"`
}

// AnswerImage is an image the model chose to attach to its answer.
type AnswerImage struct {
	ImageID    string `json:"image_id"`
	DocumentID string `json:"document_id"`
	MediaType  string `json:"media_type"`
	Data       []byte `json:"data"`
}

// AskResponse represents the answers API response.
type AskResponse struct {
	Answer    string        `json:"answer"`
	Mode      string        `json:"mode"`
	Retrieved int           `json:"retrieved"`
	Citations []Citation    `json:"citations"`
	Images    []AnswerImage `json:"images"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	var (
		scope      []string
		allDocs    bool
		topK       int
		minScore   float64
		saveImages string
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the corpus",
		Long: `Retrieves relevant passages and generates a grounded answer with citations.

Without --scope or --all the question is answered in plain chat mode,
without document context.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			if allDocs && len(scope) > 0 {
				return fmt.Errorf("--all and --scope are mutually exclusive")
			}
			return runAsk(args[0], scope, allDocs, topK, minScore, saveImages, outputJSON)
		},
	}

	cmd.Flags().StringSliceVar(&scope, "scope", nil, "Restrict retrieval to these document IDs (repeatable)")
	cmd.Flags().BoolVar(&allDocs, "all", false, "Search every ingested document")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of passages to retrieve (default from server)")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "Minimum similarity score (default from server)")
	cmd.Flags().StringVar(&saveImages, "save-images", "", "Write attached images into this directory")

	return cmd
}

// allDocumentIDs lists every queryable document so --all can expand to an
// explicit scope client-side.
func allDocumentIDs(api *APIClient) ([]string, error) {
	resp, err := api.Get(apiPrefix + "/documents")
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	var docs []Document
	if err := json.Unmarshal(resp.Data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

func runAsk(question string, scope []string, allDocs bool, topK int, minScore float64, saveImages string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	if allDocs {
		scope, err = allDocumentIDs(api)
		if err != nil {
			return err
		}
		if len(scope) == 0 {
			return fmt.Errorf("no documents ingested; use ingest first or drop --all")
		}
	}

	req := AskRequest{
		Question: question,
		Scope:    scope,
		TopK:     topK,
		MinScore: minScore,
	}

	resp, err := api.Post(apiPrefix+"/answers", req)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	var askResp AskResponse
	if err := json.Unmarshal(resp.Data, &askResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(askResp, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Println(askResp.Answer)

		if askResp.Mode == "chat" {
			fmt.Println("\n(no relevant passages found; answered without document context)")
		} else if len(askResp.Citations) > 0 {
			fmt.Println("\nSources:")
			for _, c := range askResp.Citations {
				line := fmt.Sprintf("  [%s] document %s", c.Marker, c.DocumentID)
				if c.Page > 0 {
					line += fmt.Sprintf(", page %d", c.Page)
				}
				line += fmt.Sprintf(" (%.2f)", c.Score)
				fmt.Println(line)
			}
		}

		if len(askResp.Images) > 0 && saveImages == "" {
			fmt.Printf("\n%d images attached (use --save-images to write them)\n", len(askResp.Images))
		}
	}

	if saveImages != "" && len(askResp.Images) > 0 {
		if err := writeImages(saveImages, askResp.Images); err != nil {
			return err
		}
		if !outputJSON {
			fmt.Printf("\nSaved %d images to %s\n", len(askResp.Images), saveImages)
		}
	}

	return nil
}

func writeImages(dir string, images []AnswerImage) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	for i, img := range images {
		name := fmt.Sprintf("img%d%s", i+1, extensionFor(img.MediaType))
		if err := os.WriteFile(filepath.Join(dir, name), img.Data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

func extensionFor(mediaType string) string {
	switch strings.ToLower(mediaType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
