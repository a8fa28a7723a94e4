package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/librarian/internal/domain"
)

var askK int

func init() {
	askCmd.Flags().IntVarP(&askK, "k", "k", 0, "Number of context documents (0 = configured default)")
	rootCmd.AddCommand(askCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question grounded on the best matching books",
	Long: `Retrieve the best matching books and ask the language model to answer
using only their titles, authors, categories and summaries.

Examples:
  librarian ask "Which manga is about a surgeon chasing a serial killer?"
  librarian ask "Recommend a short sci-fi novel" -k 3 --human`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

// AskOutput is the JSON output of the ask command.
type AskOutput struct {
	Question          string       `json:"question"`
	Answer            string       `json:"answer"`
	Sources           []BookResult `json:"sources"`
	NoRelevantContext bool         `json:"no_relevant_context"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := AskOutput{Question: args[0]}

		ctx, usage := domain.NewContextWithUsage(ctx)
		answer, err := a.rag.Ask(ctx, args[0], askK)
		switch {
		case errors.Is(err, domain.ErrNoRelevantContext):
			out.NoRelevantContext = true
		case err != nil:
			return fmt.Errorf("ask: %w", err)
		default:
			out.Answer = answer.Text
		}
		out.Sources = bookResults(answer.Sources)

		if !humanOutput {
			return outputJSON(out)
		}

		if out.NoRelevantContext {
			fmt.Println("No relevant books found for this question")
			return nil
		}
		fmt.Println(out.Answer)
		fmt.Printf("\nSources:\n\n")
		printBooksHuman(os.Stdout, out.Sources)
		fmt.Printf("Tokens: embedding=%d prompt=%d completion=%d\n",
			usage.EmbeddingTokens, usage.PromptTokens, usage.CompletionTokens)
		return nil
	})
}
