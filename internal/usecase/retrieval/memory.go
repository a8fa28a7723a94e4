package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kailas-cloud/librarian/internal/domain"
	"github.com/kailas-cloud/librarian/internal/domain/book"
	"github.com/kailas-cloud/librarian/internal/domain/search/result"
	"github.com/kailas-cloud/librarian/internal/metrics"
)

// MemoryEngine ranks a corpus snapshot held in process memory by exact cosine similarity.
// The snapshot loads once and is reused until Invalidate.
type MemoryEngine struct {
	source   DocumentSource
	docEmbed domain.Embedder
	query    domain.Embedder
	model    string
	dim      int
	logger   *zap.Logger

	mu   sync.Mutex
	snap atomic.Pointer[Snapshot]
}

// MemoryConfig names the embedding model and dimension stored vectors must match to be reused.
type MemoryConfig struct {
	Model      string
	Dimensions int
}

// NewMemoryEngine creates an in-memory engine. docEmbed vectorizes descriptions at load,
// queryEmbed vectorizes queries; they differ only by instruction prefix.
func NewMemoryEngine(
	source DocumentSource, docEmbed, queryEmbed domain.Embedder, cfg MemoryConfig, logger *zap.Logger,
) *MemoryEngine {
	return &MemoryEngine{
		source:   source,
		docEmbed: docEmbed,
		query:    queryEmbed,
		model:    cfg.Model,
		dim:      cfg.Dimensions,
		logger:   logger,
	}
}

// Load returns the current snapshot, building it on first use.
// Concurrent callers share a single build; a failed build is not memoized.
func (e *MemoryEngine) Load(ctx context.Context) (*Snapshot, error) {
	if s := e.snap.Load(); s != nil {
		return s, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if s := e.snap.Load(); s != nil {
		return s, nil
	}

	s, err := e.build(ctx)
	if err != nil {
		metrics.SnapshotLoadsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	e.snap.Store(s)
	metrics.SnapshotLoadsTotal.WithLabelValues("success").Inc()
	metrics.SnapshotDocuments.Set(float64(s.Len()))
	return s, nil
}

// Invalidate drops the snapshot; the next Load rebuilds it.
func (e *MemoryEngine) Invalidate() {
	e.mu.Lock()
	e.snap.Store(nil)
	e.mu.Unlock()
	e.logger.Info("Snapshot invalidated")
}

func (e *MemoryEngine) build(ctx context.Context) (*Snapshot, error) {
	all, err := e.source.FetchAllWithField(ctx, book.FieldDescription)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}

	docs := make([]book.Book, 0, len(all))
	for i := range all {
		if all[i].HasDescription() {
			docs = append(docs, all[i])
		}
	}

	vectors := make([][]float32, len(docs))
	var (
		missing   []int
		texts     []string
		reuseDims = e.dim
	)
	for i := range docs {
		if docs[i].EmbeddingUsable(e.model, reuseDims) {
			vectors[i] = docs[i].Embedding()
			if reuseDims <= 0 {
				reuseDims = len(vectors[i])
			}
			continue
		}
		missing = append(missing, i)
		texts = append(texts, docs[i].Description())
	}

	if len(texts) > 0 {
		res, err := domain.EmbedAll(ctx, e.docEmbed, texts)
		if err != nil {
			return nil, fmt.Errorf("embed corpus: %w", err)
		}
		for j, i := range missing {
			vectors[i] = res.Embeddings[j]
		}
	}

	if err := sameDimensions(vectors); err != nil {
		return nil, err
	}

	e.logger.Info("Snapshot loaded",
		zap.Int("documents", len(docs)),
		zap.Int("reused_embeddings", len(docs)-len(missing)),
		zap.Int("computed_embeddings", len(missing)))

	return newSnapshot(docs, vectors), nil
}

func sameDimensions(vectors [][]float32) error {
	for i := 1; i < len(vectors); i++ {
		if len(vectors[i]) != len(vectors[0]) {
			return fmt.Errorf("corpus embeddings: %w", domain.NewDimMismatch(len(vectors[0]), len(vectors[i])))
		}
	}
	if len(vectors) > 0 && len(vectors[0]) == 0 {
		return fmt.Errorf("corpus embeddings are empty: %w", domain.ErrEmbeddingProviderError)
	}
	return nil
}

// Search embeds query and returns the k most similar documents.
// A blank query or an empty corpus returns no results without calling the provider.
func (e *MemoryEngine) Search(ctx context.Context, query string, k int) ([]result.Ranked, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	snap, err := e.Load(ctx)
	if err != nil {
		return nil, err
	}
	if snap.Len() == 0 {
		return nil, nil
	}

	q, err := e.query.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(q.Embedding) != snap.Dim() {
		return nil, fmt.Errorf("query embedding: %w", domain.NewDimMismatch(snap.Dim(), len(q.Embedding)))
	}

	return snap.rank(q.Embedding, k), nil
}
