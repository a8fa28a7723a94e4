package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/librarian/internal/usecase/indexer"
)

var indexForce bool

func init() {
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "Re-embed every document, even ones with a current embedding")
	rootCmd.AddCommand(indexCmd)
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed book descriptions that lack a current embedding",
	Long: `Embed book descriptions and store the vectors next to the documents.

Documents already embedded with the configured model and dimension are
skipped unless --force is set. Failed documents are reported and the run
continues.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

// IndexOutput is the JSON output of the index command.
type IndexOutput struct {
	Scanned         int      `json:"scanned"`
	Selected        int      `json:"selected"`
	Indexed         int      `json:"indexed"`
	Skipped         int      `json:"skipped"`
	EmbedFailed     int      `json:"embed_failed"`
	PersistFailed   int      `json:"persist_failed"`
	FailedIDs       []string `json:"failed_ids,omitempty"`
	DurationMs      int64    `json:"duration_ms"`
	EmbeddingTokens int      `json:"embedding_tokens"`
}

func runIndex(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		rep, err := a.indexer.Run(ctx, indexer.Options{Force: indexForce})
		if snap := a.snapshot(); snap != nil && rep.Indexed > 0 {
			snap.Invalidate()
		}
		if err != nil {
			return fmt.Errorf("index: %w", err)
		}

		out := IndexOutput{
			Scanned:         rep.Scanned,
			Selected:        rep.Selected,
			Indexed:         rep.Indexed,
			Skipped:         rep.Skipped,
			EmbedFailed:     rep.EmbedFailed,
			PersistFailed:   rep.PersistFailed,
			FailedIDs:       rep.FailedIDs,
			DurationMs:      rep.Duration.Milliseconds(),
			EmbeddingTokens: rep.EmbeddingTokens,
		}
		if !humanOutput {
			return outputJSON(out)
		}

		fmt.Printf("Scanned %d documents, embedded %d, skipped %d (%s)\n",
			out.Scanned, out.Indexed, out.Skipped, rep.Duration.Round(time.Millisecond))
		if failed := out.EmbedFailed + out.PersistFailed; failed > 0 {
			fmt.Printf("Failed: %d (embed %d, persist %d): %s\n",
				failed, out.EmbedFailed, out.PersistFailed, strings.Join(out.FailedIDs, ", "))
		}
		return nil
	})
}
