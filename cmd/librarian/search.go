package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var searchK int

func init() {
	searchCmd.Flags().IntVarP(&searchK, "k", "k", 0, "Number of results (0 = configured default)")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank books by semantic similarity to a query",
	Long: `Rank books by semantic similarity to a natural-language query.

Examples:
  librarian search "dark fantasy with a revenge plot"
  librarian search "cozy slice of life" -k 10 --human`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

// SearchOutput is the JSON output of the search command.
type SearchOutput struct {
	Query    string       `json:"query"`
	Strategy string       `json:"strategy"`
	Results  []BookResult `json:"results"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		hits, err := a.router.Search(ctx, args[0], searchK)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}

		out := SearchOutput{
			Query:    args[0],
			Strategy: string(a.router.Strategy()),
			Results:  bookResults(hits),
		}
		if !humanOutput {
			return outputJSON(out)
		}

		if len(out.Results) == 0 {
			fmt.Println("No matching books found")
			return nil
		}
		fmt.Printf("Found %d books:\n\n", len(out.Results))
		printBooksHuman(os.Stdout, out.Results)
		return nil
	})
}
