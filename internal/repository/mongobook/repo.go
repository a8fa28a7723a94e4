package mongobook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/book"
	"github.com/kailas-cloud/librarian/internal/domain/search/result"
)

const backendName = "mongodb-atlas"

// collection is the consumer interface over *mongo.Collection (ISP).
type collection interface {
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error)
	UpdateOne(ctx context.Context, filter, update any, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	Aggregate(ctx context.Context, pipeline any, opts ...*options.AggregateOptions) (*mongo.Cursor, error)
}

// Repo stores books in a MongoDB Atlas collection and searches them with $vectorSearch.
type Repo struct {
	client    *mongo.Client // nil when built over a bare collection
	coll      collection
	indexName string

	mu  sync.RWMutex
	ids map[string]any // display id -> stored _id, filled by FetchAllWithField
}

// New creates a book repository. indexName is the Atlas vector search index ("vector_index" when empty).
func New(coll collection, indexName string) *Repo {
	if indexName == "" {
		indexName = "vector_index"
	}
	return &Repo{coll: coll, indexName: indexName, ids: make(map[string]any)}
}

// FetchAllWithField returns every book whose field exists and is non-empty, ordered by _id.
func (r *Repo) FetchAllWithField(ctx context.Context, field string) ([]book.Book, error) {
	name, ok := fieldNames[field]
	if !ok {
		return nil, fmt.Errorf("unknown field %q: %w", field, domain.ErrInvalidRequest)
	}

	var cond bson.D
	if field == book.FieldEmbedding {
		cond = bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: bson.A{}}}
	} else {
		cond = bson.D{{Key: "$exists", Value: true}, {Key: "$ne", Value: ""}}
	}

	cur, err := r.coll.Find(ctx, bson.D{{Key: name, Value: cond}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find books: %w: %w", domain.ErrStore, err)
	}

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode books: %w: %w", domain.ErrStore, err)
	}

	books := make([]book.Book, 0, len(docs))
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range docs {
		b := parseDocument(d)
		r.ids[b.ID()] = d["_id"]
		if field == book.FieldDescription && !b.HasDescription() {
			continue
		}
		books = append(books, b)
	}
	return books, nil
}

// UpsertField sets one field with $set on an existing document. Documents are never created:
// an id that matches nothing is a store error.
// The filter uses the _id exactly as FetchAllWithField read it, so int and string ids keep their BSON type.
func (r *Repo) UpsertField(ctx context.Context, id, field string, value any) error {
	name, ok := fieldNames[field]
	if !ok {
		return fmt.Errorf("unknown field %q: %w", field, domain.ErrInvalidRequest)
	}

	update := bson.D{{Key: "$set", Value: bson.D{{Key: name, Value: value}}}}
	res, err := r.coll.UpdateOne(ctx, r.filterFor(id), update)
	if err != nil {
		return fmt.Errorf("update %s.%s: %w: %w", id, name, domain.ErrStore, err)
	}
	if res == nil || res.MatchedCount == 0 {
		return fmt.Errorf("update %s.%s: %w: %w", id, name, domain.ErrStore, domain.ErrDocumentNotFound)
	}
	return nil
}

func (r *Repo) filterFor(id string) bson.D {
	r.mu.RLock()
	raw, ok := r.ids[id]
	r.mu.RUnlock()
	if ok {
		return bson.D{{Key: "_id", Value: raw}}
	}
	return idFilter(id)
}

// VectorSearch runs the $vectorSearch aggregation and projects display fields with the Atlas score.
// Atlas answers an unknown index with zero hits, so an empty result is checked against the index list.
func (r *Repo) VectorSearch(ctx context.Context, vector []float32, k, candidatePool int) ([]result.Ranked, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: r.indexName},
			{Key: "path", Value: fieldNames[book.FieldEmbedding]},
			{Key: "queryVector", Value: vector},
			{Key: "numCandidates", Value: max(candidatePool, k)},
			{Key: "limit", Value: k},
		}}},
		{{Key: "$project", Value: displayProjection()}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		if isIndexError(err) {
			return nil, domain.NewVectorIndexError(backendName, r.indexName, err)
		}
		return nil, fmt.Errorf("vector search %s: %w: %w", r.indexName, domain.ErrStore, err)
	}

	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode vector hits: %w: %w", domain.ErrStore, err)
	}

	if len(docs) == 0 {
		if err := r.CheckIndex(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}

	ranked := make([]result.Ranked, 0, len(docs))
	for _, d := range docs {
		score, _ := asFloat(d[scoreField])
		ranked = append(ranked, result.New(parseDocument(d), score))
	}
	return ranked, nil
}

// CheckIndex verifies that the Atlas vector search index exists via $listSearchIndexes.
// Deployments without Atlas Search reject the stage; that is reported the same way.
func (r *Repo) CheckIndex(ctx context.Context) error {
	cur, err := r.coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$listSearchIndexes", Value: bson.D{{Key: "name", Value: r.indexName}}}},
	})
	if err != nil {
		return domain.NewVectorIndexError(backendName, r.indexName, err)
	}

	var indexes []bson.M
	if err := cur.All(ctx, &indexes); err != nil {
		return fmt.Errorf("decode search indexes: %w: %w", domain.ErrStore, err)
	}
	if len(indexes) == 0 {
		return domain.NewVectorIndexError(backendName, r.indexName, nil)
	}
	return nil
}

func isIndexError(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		msg := strings.ToLower(ce.Message)
		return strings.Contains(msg, "index") || strings.Contains(msg, "$vectorsearch")
	}
	return false
}
