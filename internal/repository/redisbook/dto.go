package redisbook

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/book"
)

// displayFields are projected by vector search; the vector blob is never returned.
var displayFields = []string{
	book.FieldTitle, book.FieldAuthor, book.FieldCategory,
	book.FieldDescription, book.FieldYear, book.FieldRating,
}

var writableFields = map[string]bool{
	book.FieldTitle: true, book.FieldAuthor: true, book.FieldCategory: true,
	book.FieldDescription: true, book.FieldYear: true, book.FieldRating: true,
	book.FieldEmbedding: true, book.FieldEmbeddingModel: true,
}

// parseHashFields converts a flat hash map into a Book. Malformed optional values read as missing.
func parseHashFields(id string, m map[string]string) book.Book {
	f := book.Fields{
		Title:          m[book.FieldTitle],
		Author:         m[book.FieldAuthor],
		Category:       m[book.FieldCategory],
		Description:    m[book.FieldDescription],
		EmbeddingModel: m[book.FieldEmbeddingModel],
	}
	if v, err := strconv.Atoi(strings.TrimSpace(m[book.FieldYear])); err == nil {
		f.Year = &v
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(m[book.FieldRating]), 64); err == nil {
		f.Rating = &v
	}
	if blob := m[book.FieldEmbedding]; blob != "" {
		f.Embedding = bytesToVector(blob)
	}
	return book.Reconstruct(id, f)
}

// encodeValue renders a field value the way FT indexes read it from a hash.
func encodeValue(field string, value any) (string, error) {
	if !writableFields[field] {
		return "", fmt.Errorf("unknown field %q: %w", field, domain.ErrInvalidRequest)
	}
	switch v := value.(type) {
	case []float32:
		if field != book.FieldEmbedding {
			return "", fmt.Errorf("vector value for field %q: %w", field, domain.ErrInvalidRequest)
		}
		return vectorToBytes(v), nil
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value %T for field %q: %w", value, field, domain.ErrInvalidRequest)
	}
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
