package mongobook

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/book"
)

// --- FetchAllWithField ---

func TestFetchAllWithField_Description(t *testing.T) {
	repo, mc := newTestRepo(t)
	oid := primitive.NewObjectID()

	mc.findFn = func(_ context.Context, filter any) (*mongo.Cursor, error) {
		f, ok := filter.(bson.D)
		if !ok || len(f) != 1 || f[0].Key != "Description" {
			t.Errorf("unexpected filter: %v", filter)
		}
		return cursorOf(
			bson.M{"_id": oid, "Title": "Solo Leveling", "Description": "Hunters.", "Year": int32(2018), "Rating": 4.7},
			bson.M{"_id": "manual-id", "Description": "  "},
			bson.M{"_id": "x", "Description": "Only a description.", "Year": "2003"},
		)
	}

	books, err := repo.FetchAllWithField(context.Background(), book.FieldDescription)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("expected 2 books, got %d", len(books))
	}
	if books[0].ID() != oid.Hex() || books[0].Title() != "Solo Leveling" {
		t.Errorf("unexpected first book: %s %q", books[0].ID(), books[0].Title())
	}
	if r, ok := books[0].Rating(); !ok || r != 4.7 {
		t.Errorf("Rating() = %f, %v", r, ok)
	}
	if y, ok := books[1].Year(); !ok || y != 2003 {
		t.Errorf("string year should parse: %d %v", y, ok)
	}
	if books[1].Author() != book.UnknownAuthor {
		t.Errorf("expected default author, got %q", books[1].Author())
	}
}

func TestFetchAllWithField_Embedding(t *testing.T) {
	repo, mc := newTestRepo(t)
	mc.findFn = func(_ context.Context, _ any) (*mongo.Cursor, error) {
		return cursorOf(bson.M{
			"_id":             "b1",
			"Description":     "d",
			"embedding":       bson.A{0.25, -0.5, 1.0},
			"embedding_model": "m",
		})
	}

	books, err := repo.FetchAllWithField(context.Background(), book.FieldEmbedding)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	emb := books[0].Embedding()
	if len(emb) != 3 || emb[0] != 0.25 || emb[1] != -0.5 {
		t.Errorf("unexpected embedding: %v", emb)
	}
	if books[0].EmbeddingModel() != "m" {
		t.Errorf("EmbeddingModel() = %q", books[0].EmbeddingModel())
	}
}

func TestFetchAllWithField_UnknownField(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.FetchAllWithField(context.Background(), "isbn")
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestFetchAllWithField_StoreError(t *testing.T) {
	repo, mc := newTestRepo(t)
	mc.findFn = func(_ context.Context, _ any) (*mongo.Cursor, error) {
		return nil, errors.New("server selection timeout")
	}

	_, err := repo.FetchAllWithField(context.Background(), book.FieldDescription)
	if !errors.Is(err, domain.ErrStore) {
		t.Errorf("expected ErrStore, got %v", err)
	}
}

// --- UpsertField ---

func TestUpsertField_SetsMappedField(t *testing.T) {
	repo, mc := newTestRepo(t)
	oid := primitive.NewObjectID()

	mc.updateOneFn = func(_ context.Context, filter, update any, upsert bool) (*mongo.UpdateResult, error) {
		if upsert {
			t.Error("update must not upsert")
		}
		if got := lookup(filter.(bson.D), "_id"); got != oid {
			t.Errorf("filter _id = %v, want ObjectID %s", got, oid.Hex())
		}
		set, _ := lookup(update.(bson.D), "$set").(bson.D)
		if vec, ok := lookup(set, "embedding").([]float32); !ok || len(vec) != 2 {
			t.Errorf("unexpected $set: %v", set)
		}
		return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
	}

	if err := repo.UpsertField(context.Background(), oid.Hex(), book.FieldEmbedding, []float32{1, 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpsertField_StringIDAndCapitalizedField(t *testing.T) {
	repo, mc := newTestRepo(t)
	mc.updateOneFn = func(_ context.Context, filter, update any, _ bool) (*mongo.UpdateResult, error) {
		if got := lookup(filter.(bson.D), "_id"); got != "berserk" {
			t.Errorf("filter _id = %v", got)
		}
		set, _ := lookup(update.(bson.D), "$set").(bson.D)
		if lookup(set, "Title") != "Berserk" {
			t.Errorf("unexpected $set: %v", set)
		}
		return &mongo.UpdateResult{MatchedCount: 1}, nil
	}

	if err := repo.UpsertField(context.Background(), "berserk", book.FieldTitle, "Berserk"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpsertField_Errors(t *testing.T) {
	repo, mc := newTestRepo(t)
	if err := repo.UpsertField(context.Background(), "1", "isbn", "x"); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}

	mc.updateOneFn = func(_ context.Context, _, _ any, _ bool) (*mongo.UpdateResult, error) {
		return nil, errors.New("write conflict")
	}
	if err := repo.UpsertField(context.Background(), "1", book.FieldTitle, "x"); !errors.Is(err, domain.ErrStore) {
		t.Errorf("expected ErrStore, got %v", err)
	}
}

func TestUpsertField_KeepsFetchedIDType(t *testing.T) {
	tests := []struct {
		name   string
		id     any
		wantID string
	}{
		{"int32", int32(7), "7"},
		{"int64", int64(42), "42"},
		{"hex-looking string", "65a1b2c3d4e5f60718293a4b", "65a1b2c3d4e5f60718293a4b"},
		{"double", 3.5, "3.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mc := newTestRepo(t)
			mc.findFn = func(_ context.Context, _ any) (*mongo.Cursor, error) {
				return cursorOf(bson.M{"_id": tt.id, "Description": "Guts swings a very large sword."})
			}
			var gotFilter any
			mc.updateOneFn = func(_ context.Context, filter, _ any, upsert bool) (*mongo.UpdateResult, error) {
				if upsert {
					t.Error("update must not upsert")
				}
				gotFilter = lookup(filter.(bson.D), "_id")
				return &mongo.UpdateResult{MatchedCount: 1}, nil
			}

			books, err := repo.FetchAllWithField(context.Background(), book.FieldDescription)
			if err != nil || len(books) != 1 {
				t.Fatalf("FetchAllWithField: %v, %d books", err, len(books))
			}
			if books[0].ID() != tt.wantID {
				t.Errorf("ID() = %q, want %q", books[0].ID(), tt.wantID)
			}
			if err := repo.UpsertField(context.Background(), books[0].ID(), book.FieldEmbedding, []float32{1}); err != nil {
				t.Fatalf("UpsertField: %v", err)
			}
			if gotFilter != tt.id {
				t.Errorf("filter _id = %#v (%T), want %#v (%T)", gotFilter, gotFilter, tt.id, tt.id)
			}
		})
	}
}

func TestUpsertField_NoMatchIsStoreError(t *testing.T) {
	repo, mc := newTestRepo(t)
	mc.updateOneFn = func(_ context.Context, _, _ any, _ bool) (*mongo.UpdateResult, error) {
		return &mongo.UpdateResult{}, nil
	}

	err := repo.UpsertField(context.Background(), "vagabond", book.FieldEmbedding, []float32{1})
	if !errors.Is(err, domain.ErrStore) {
		t.Errorf("expected ErrStore for an unmatched id, got %v", err)
	}
}

// --- VectorSearch ---

func TestVectorSearch_Pipeline(t *testing.T) {
	repo, mc := newTestRepo(t)

	mc.aggregateFn = func(_ context.Context, pipeline any) (*mongo.Cursor, error) {
		name, body := stageName(t, pipeline, 0)
		if name != "$vectorSearch" {
			t.Fatalf("first stage = %s", name)
		}
		if lookup(body, "index") != "vector_index" || lookup(body, "path") != "embedding" {
			t.Errorf("unexpected target: %v", body)
		}
		if lookup(body, "numCandidates") != 200 || lookup(body, "limit") != 5 {
			t.Errorf("unexpected sizes: %v", body)
		}
		name, proj := stageName(t, pipeline, 1)
		if name != "$project" || lookup(proj, "embedding") != nil {
			t.Errorf("projection must drop the vector: %v", proj)
		}
		return cursorOf(
			bson.M{"_id": "a", "Title": "Vinland Saga", "score": 0.91},
			bson.M{"_id": "b", "score": 0.77},
		)
	}

	res, err := repo.VectorSearch(context.Background(), []float32{0.1, 0.2}, 5, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res))
	}
	if res[0].ID() != "a" || res[0].Score() != 0.91 {
		t.Errorf("unexpected first: %s %f", res[0].ID(), res[0].Score())
	}
}

func TestVectorSearch_EmptyWithIndex(t *testing.T) {
	repo, mc := newTestRepo(t)

	calls := 0
	mc.aggregateFn = func(_ context.Context, pipeline any) (*mongo.Cursor, error) {
		calls++
		name, _ := stageName(t, pipeline, 0)
		if name == "$listSearchIndexes" {
			return cursorOf(bson.M{"name": "vector_index", "status": "READY"})
		}
		return cursorOf()
	}

	res, err := repo.VectorSearch(context.Background(), []float32{1}, 3, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res) != 0 || calls != 2 {
		t.Errorf("expected empty result after index check, got %d results, %d calls", len(res), calls)
	}
}

func TestVectorSearch_EmptyWithoutIndex(t *testing.T) {
	repo, mc := newTestRepo(t)
	mc.aggregateFn = func(_ context.Context, _ any) (*mongo.Cursor, error) { return cursorOf() }

	_, err := repo.VectorSearch(context.Background(), []float32{1}, 3, 3)
	if !errors.Is(err, domain.ErrVectorIndexMissing) || !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected vector index error, got %v", err)
	}
	var vie *domain.VectorIndexError
	if !errors.As(err, &vie) || vie.Index != "vector_index" {
		t.Errorf("expected index name in error: %v", err)
	}
}

func TestVectorSearch_CommandError(t *testing.T) {
	repo, mc := newTestRepo(t)
	mc.aggregateFn = func(_ context.Context, _ any) (*mongo.Cursor, error) {
		return nil, mongo.CommandError{Code: 8, Message: "$vectorSearch is not allowed"}
	}

	_, err := repo.VectorSearch(context.Background(), []float32{1}, 3, 3)
	if !errors.Is(err, domain.ErrVectorIndexMissing) {
		t.Errorf("expected ErrVectorIndexMissing, got %v", err)
	}
}

func TestVectorSearch_TransportError(t *testing.T) {
	repo, mc := newTestRepo(t)
	mc.aggregateFn = func(_ context.Context, _ any) (*mongo.Cursor, error) {
		return nil, errors.New("connection reset")
	}

	_, err := repo.VectorSearch(context.Background(), []float32{1}, 3, 3)
	if !errors.Is(err, domain.ErrStore) || errors.Is(err, domain.ErrVectorIndexMissing) {
		t.Errorf("expected plain store error, got %v", err)
	}
}

func TestPingClose_NoClient(t *testing.T) {
	repo, _ := newTestRepo(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping() = %v", err)
	}
	if err := repo.Close(context.Background()); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
