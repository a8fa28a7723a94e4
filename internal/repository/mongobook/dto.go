package mongobook

import (
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kailas-cloud/librarian/internal/domain/book"
)

// Atlas collections keep the capitalized display keys; vector fields stay lowercase.
var fieldNames = map[string]string{
	book.FieldTitle:          "Title",
	book.FieldAuthor:         "Author",
	book.FieldCategory:       "Category",
	book.FieldDescription:    "Description",
	book.FieldYear:           "Year",
	book.FieldRating:         "Rating",
	book.FieldEmbedding:      "embedding",
	book.FieldEmbeddingModel: "embedding_model",
}

const scoreField = "score"

// displayProjection keeps display fields and the relevance score; the vector is dropped.
func displayProjection() bson.D {
	return bson.D{
		{Key: "_id", Value: 1},
		{Key: "Title", Value: 1},
		{Key: "Author", Value: 1},
		{Key: "Category", Value: 1},
		{Key: "Description", Value: 1},
		{Key: "Year", Value: 1},
		{Key: "Rating", Value: 1},
		{Key: scoreField, Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
	}
}

// parseDocument converts a raw BSON document into a Book. Unexpected types read as missing.
func parseDocument(m bson.M) book.Book {
	f := book.Fields{
		Title:          asString(m["Title"]),
		Author:         asString(m["Author"]),
		Category:       asString(m["Category"]),
		Description:    asString(m["Description"]),
		EmbeddingModel: asString(m["embedding_model"]),
		Embedding:      asVector(m["embedding"]),
	}
	if y, ok := asFloat(m["Year"]); ok {
		yi := int(y)
		f.Year = &yi
	}
	if r, ok := asFloat(m["Rating"]); ok {
		f.Rating = &r
	}
	return book.Reconstruct(documentID(m["_id"]), f)
}

// documentID renders _id for display and lookups. ObjectIDs print as hex;
// other types print with fmt and are resolved back through Repo.ids.
func documentID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}

// idFilter matches ObjectID-shaped identifiers as ObjectIDs and everything else verbatim.
// Used only for ids this repo has not fetched.
func idFilter(id string) bson.D {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.D{{Key: "_id", Value: oid}}
	}
	return bson.D{{Key: "_id", Value: id}}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asVector(v any) []float32 {
	arr, ok := v.(primitive.A)
	if !ok || len(arr) == 0 {
		return nil
	}
	out := make([]float32, len(arr))
	for i, e := range arr {
		f, ok := asFloat(e)
		if !ok {
			return nil
		}
		out[i] = float32(f)
	}
	return out
}
