package book

import (
	"strconv"
	"strings"
)

// Canonical field names shared by every store adapter.
const (
	FieldTitle          = "title"
	FieldAuthor         = "author"
	FieldCategory       = "category"
	FieldDescription    = "description"
	FieldYear           = "year"
	FieldRating         = "rating"
	FieldEmbedding      = "embedding"
	FieldEmbeddingModel = "embedding_model"
)

// Display defaults for missing fields.
const (
	UnknownTitle  = "Unknown title"
	UnknownAuthor = "Unknown author"
	NotAvailable  = "N/A"
)

// Fields is the hydration input for a Book. Empty strings and nil pointers mean "missing".
type Fields struct {
	Title          string
	Author         string
	Category       string
	Description    string
	Year           *int
	Rating         *float64
	Embedding      []float32
	EmbeddingModel string
}

// Book is a book/manga record with optional fields (immutable value object).
type Book struct {
	id     string
	fields Fields
}

// Reconstruct creates a Book from storage without validation.
func Reconstruct(id string, f Fields) Book {
	return Book{id: id, fields: f}
}

// ID returns the store identifier.
func (b *Book) ID() string { return b.id }

// Title returns the title or UnknownTitle.
func (b *Book) Title() string { return orDefault(b.fields.Title, UnknownTitle) }

// Author returns the author or UnknownAuthor.
func (b *Book) Author() string { return orDefault(b.fields.Author, UnknownAuthor) }

// Category returns the category or N/A.
func (b *Book) Category() string { return orDefault(b.fields.Category, NotAvailable) }

// Description returns the description, empty when missing.
func (b *Book) Description() string { return b.fields.Description }

// HasDescription reports whether the description is present and not blank.
func (b *Book) HasDescription() bool { return strings.TrimSpace(b.fields.Description) != "" }

// Year returns the publication year when known.
func (b *Book) Year() (int, bool) {
	if b.fields.Year == nil {
		return 0, false
	}
	return *b.fields.Year, true
}

// Rating returns the rating when known.
func (b *Book) Rating() (float64, bool) {
	if b.fields.Rating == nil {
		return 0, false
	}
	return *b.fields.Rating, true
}

// YearText renders the year or N/A.
func (b *Book) YearText() string {
	if y, ok := b.Year(); ok {
		return strconv.Itoa(y)
	}
	return NotAvailable
}

// RatingText renders the rating or N/A.
func (b *Book) RatingText() string {
	if r, ok := b.Rating(); ok {
		return strconv.FormatFloat(r, 'f', -1, 64)
	}
	return NotAvailable
}

// Embedding returns the stored embedding, nil when absent.
func (b *Book) Embedding() []float32 { return b.fields.Embedding }

// EmbeddingModel returns the model that produced the stored embedding.
func (b *Book) EmbeddingModel() string { return b.fields.EmbeddingModel }

// HasEmbedding reports whether a non-empty embedding is stored.
func (b *Book) HasEmbedding() bool { return len(b.fields.Embedding) > 0 }

// EmbeddingUsable reports whether the stored embedding was produced by model with dim dimensions.
// A record without a model tag is treated as stale.
func (b *Book) EmbeddingUsable(model string, dim int) bool {
	if !b.HasEmbedding() || b.fields.EmbeddingModel != model {
		return false
	}
	return dim <= 0 || len(b.fields.Embedding) == dim
}

// WithEmbedding returns a copy carrying the given embedding.
func (b *Book) WithEmbedding(vec []float32, model string) Book {
	f := b.fields
	f.Embedding = vec
	f.EmbeddingModel = model
	return Book{id: b.id, fields: f}
}

// WithoutEmbedding returns a copy with the vector dropped, for display projections.
func (b *Book) WithoutEmbedding() Book {
	f := b.fields
	f.Embedding = nil
	return Book{id: b.id, fields: f}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
