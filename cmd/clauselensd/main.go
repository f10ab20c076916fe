package main

import (
	"fmt"
	"os"

	"github.com/clauselens/clauselens/internal/cli"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clauselensd",
		Short: "ClauseLens daemon",
		Long:  "ClauseLens daemon for running the document analysis API server and background workers",
	}

	rootCmd.AddCommand(cli.ServeCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
