package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiURL string = "http://localhost:8787"
	output string = "text" // "text" or "json"
)

var rootCmd = &cobra.Command{
	Use:   "reelrank",
	Short: "reelrank CLI - Query the recommendation service",
	Long: `reelrank CLI provides command-line access to a running reelrank server.
Fetch feeds, trending and similar posts, inspect user profiles and record interactions.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if env := os.Getenv("REELRANK_API_URL"); env != "" && !cmd.Flags().Changed("api") {
			apiURL = env
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", apiURL, "API server URL (defaults to REELRANK_API_URL env var)")
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(trendingCmd)
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(interactCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
