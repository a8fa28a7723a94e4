package result

import "github.com/kailas-cloud/librarian/internal/domain/book"

// Ranked is a single search hit: a document and its relevance score.
// Memory scores are cosine similarity; server scores are the store's native relevance.
type Ranked struct {
	book  book.Book
	score float64
}

// New creates a ranked result.
func New(b book.Book, score float64) Ranked {
	return Ranked{book: b, score: score}
}

// Book returns the matched document.
func (r *Ranked) Book() book.Book { return r.book }

// ID returns the matched document identifier.
func (r *Ranked) ID() string { return r.book.ID() }

// Score returns the relevance score.
func (r *Ranked) Score() float64 { return r.score }

// Books projects ranked results to their documents, preserving order.
func Books(rs []Ranked) []book.Book {
	out := make([]book.Book, len(rs))
	for i := range rs {
		out[i] = rs[i].book
	}
	return out
}
