package mongobook

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mockCollection implements the consumer interface for tests.
type mockCollection struct {
	findFn      func(ctx context.Context, filter any) (*mongo.Cursor, error)
	updateOneFn func(ctx context.Context, filter, update any, upsert bool) (*mongo.UpdateResult, error)
	aggregateFn func(ctx context.Context, pipeline any) (*mongo.Cursor, error)
}

func (m *mockCollection) Find(ctx context.Context, filter any, _ ...*options.FindOptions) (*mongo.Cursor, error) {
	if m.findFn != nil {
		return m.findFn(ctx, filter)
	}
	return cursorOf()
}

func (m *mockCollection) UpdateOne(
	ctx context.Context, filter, update any, opts ...*options.UpdateOptions,
) (*mongo.UpdateResult, error) {
	upsert := false
	for _, o := range opts {
		if o != nil && o.Upsert != nil {
			upsert = *o.Upsert
		}
	}
	if m.updateOneFn != nil {
		return m.updateOneFn(ctx, filter, update, upsert)
	}
	return &mongo.UpdateResult{MatchedCount: 1}, nil
}

func (m *mockCollection) Aggregate(ctx context.Context, pipeline any, _ ...*options.AggregateOptions) (*mongo.Cursor, error) {
	if m.aggregateFn != nil {
		return m.aggregateFn(ctx, pipeline)
	}
	return cursorOf()
}

// cursorOf builds an in-memory cursor over the given documents.
func cursorOf(docs ...bson.M) (*mongo.Cursor, error) {
	items := make([]any, len(docs))
	for i, d := range docs {
		items[i] = d
	}
	return mongo.NewCursorFromDocuments(items, nil, nil)
}

func newTestRepo(t *testing.T) (*Repo, *mockCollection) {
	t.Helper()
	mc := &mockCollection{}
	return New(mc, ""), mc
}

// stageName returns the first key of pipeline stage i.
func stageName(t *testing.T, pipeline any, i int) (string, bson.D) {
	t.Helper()
	p, ok := pipeline.(mongo.Pipeline)
	if !ok {
		t.Fatalf("pipeline type %T", pipeline)
	}
	if i >= len(p) || len(p[i]) == 0 {
		t.Fatalf("pipeline has no stage %d", i)
	}
	body, _ := p[i][0].Value.(bson.D)
	return p[i][0].Key, body
}

func lookup(d bson.D, key string) any {
	for _, e := range d {
		if e.Key == key {
			return e.Value
		}
	}
	return nil
}
