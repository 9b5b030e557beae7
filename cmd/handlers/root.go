package handlers

import (
	"fmt"
	"os"

	"blogsmith/internal/config"

	"github.com/spf13/cobra"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "blogsmith",
		Short: "Blogsmith generates batches of blog articles and keeps them distinct from each other.",
		Long: `Blogsmith runs batches of article-generation jobs through a hybrid
similarity gate: every draft is compared against the articles already
approved in the batch using character-shingle fingerprints and semantic
embeddings, and too-similar drafts are regenerated with varied prompts
before being accepted or rejected.`,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.blogsmith.yaml)")

	rootCmd.AddCommand(NewBatchCmd())
	rootCmd.AddCommand(NewCheckCmd())
	rootCmd.AddCommand(NewReportCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if _, err := config.Load(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}
