package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterAll_Idempotent(t *testing.T) {
	RegisterAll()
	RegisterAll()

	IndexerDocumentsTotal.WithLabelValues("indexed").Add(3)
	if got := testutil.ToFloat64(IndexerDocumentsTotal.WithLabelValues("indexed")); got < 3 {
		t.Errorf("indexer_documents_total{indexed} = %f, expected >= 3", got)
	}

	SnapshotDocuments.Set(42)
	if got := testutil.ToFloat64(SnapshotDocuments); got != 42 {
		t.Errorf("snapshot_documents = %f, expected 42", got)
	}
}
