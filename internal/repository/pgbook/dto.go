package pgbook

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/librarian/internal/domain/book"
)

// columns whitelists canonical field names; identifiers never come from callers verbatim.
var columns = map[string]string{
	book.FieldTitle:          "title",
	book.FieldAuthor:         "author",
	book.FieldCategory:       "category",
	book.FieldDescription:    "description",
	book.FieldYear:           "year",
	book.FieldRating:         "rating",
	book.FieldEmbedding:      "embedding",
	book.FieldEmbeddingModel: "embedding_model",
}

var textColumns = map[string]bool{
	book.FieldTitle: true, book.FieldAuthor: true, book.FieldCategory: true,
	book.FieldDescription: true, book.FieldEmbeddingModel: true,
}

const (
	displayList = "id, title, author, category, description, year, rating"
	selectList  = displayList + ", embedding, embedding_model"
)

type displayRow struct {
	id                                   string
	title, author, category, description *string
	year                                 *int32
	rating                               *float64
}

func (d *displayRow) dest() []any {
	return []any{&d.id, &d.title, &d.author, &d.category, &d.description, &d.year, &d.rating}
}

func (d *displayRow) fields() book.Fields {
	f := book.Fields{
		Title:       deref(d.title),
		Author:      deref(d.author),
		Category:    deref(d.category),
		Description: deref(d.description),
		Rating:      d.rating,
	}
	if d.year != nil {
		y := int(*d.year)
		f.Year = &y
	}
	return f
}

// scanBook reads a selectList row.
func scanBook(row pgx.Row) (book.Book, error) {
	var (
		d     displayRow
		emb   *pgvector.Vector
		model *string
	)
	if err := row.Scan(append(d.dest(), &emb, &model)...); err != nil {
		return book.Book{}, fmt.Errorf("scan: %w", err)
	}
	f := d.fields()
	if emb != nil {
		f.Embedding = emb.Slice()
	}
	f.EmbeddingModel = deref(model)
	return book.Reconstruct(d.id, f), nil
}

// scanDisplay reads a displayList row followed by a score column.
func scanDisplay(row pgx.Row, score *float64) (book.Book, error) {
	var d displayRow
	if err := row.Scan(append(d.dest(), score)...); err != nil {
		return book.Book{}, fmt.Errorf("scan: %w", err)
	}
	return book.Reconstruct(d.id, d.fields()), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
