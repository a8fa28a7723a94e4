package librarian

import (
	"time"

	"github.com/kailas-cloud/librarian/internal/domain/search/result"
	"github.com/kailas-cloud/librarian/internal/usecase/indexer"
	"github.com/kailas-cloud/librarian/internal/usecase/retrieval"
)

// Strategy selects the ranking backend.
type Strategy string

// Strategy constants.
const (
	// StrategyMemory ranks an in-process snapshot by exact cosine similarity.
	StrategyMemory Strategy = "memory"
	// StrategyServer delegates ranking to the store's approximate vector index.
	StrategyServer Strategy = "server"
)

// Book is a ranked search hit. Missing text fields carry display defaults.
type Book struct {
	ID          string
	Score       float64
	Title       string
	Author      string
	Category    string
	Description string
	Year        *int
	Rating      *float64
}

// Answer is a generated reply and the books it was grounded on.
type Answer struct {
	Text    string
	Sources []Book
	// NoRelevantContext is set when retrieval found nothing and no model was called.
	NoRelevantContext bool
}

// IndexReport summarizes an indexing run.
type IndexReport struct {
	Scanned         int
	Selected        int
	Indexed         int
	Skipped         int
	EmbedFailed     int
	PersistFailed   int
	FailedIDs       []string
	Duration        time.Duration
	EmbeddingTokens int
}

func booksFromRanked(rs []result.Ranked) []Book {
	out := make([]Book, len(rs))
	for i := range rs {
		b := rs[i].Book()
		out[i] = Book{
			ID:          rs[i].ID(),
			Score:       rs[i].Score(),
			Title:       b.Title(),
			Author:      b.Author(),
			Category:    b.Category(),
			Description: b.Description(),
		}
		if y, ok := b.Year(); ok {
			out[i].Year = &y
		}
		if v, ok := b.Rating(); ok {
			out[i].Rating = &v
		}
	}
	return out
}

func reportFromIndexer(r indexer.Report) IndexReport {
	return IndexReport{
		Scanned:         r.Scanned,
		Selected:        r.Selected,
		Indexed:         r.Indexed,
		Skipped:         r.Skipped,
		EmbedFailed:     r.EmbedFailed,
		PersistFailed:   r.PersistFailed,
		FailedIDs:       r.FailedIDs,
		Duration:        r.Duration,
		EmbeddingTokens: r.EmbeddingTokens,
	}
}

func (s Strategy) internal() retrieval.Strategy {
	if s == StrategyServer {
		return retrieval.StrategyServer
	}
	return retrieval.StrategyMemory
}
