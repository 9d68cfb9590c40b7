package main

import (
	"fmt"
	"os"

	"github.com/SanyamVb/Multi-modal-RAG/internal/cli"
	"github.com/SanyamVb/Multi-modal-RAG/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mmragd",
		Short: "mmrag daemon and CLI",
		Long:  "mmrag daemon for running the API server and maintaining the document store",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.StatusCmd())
	rootCmd.AddCommand(admin.SweepCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
