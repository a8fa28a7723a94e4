package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/librarian/internal/db"
)

const (
	defaultVectorField = "embedding"
	vectorScoreField   = "__vector_score"
)

// SearchKNN runs FT.SEARCH with a KNN clause. Entry scores are 1 - cosine distance, clamped to [0,1].
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	args, err := knnArgs(q)
	if err != nil {
		return nil, err
	}

	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	switch {
	case serverSaid(err, "no such index", unknownIndex):
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("%w: %w", db.ErrIndexNotFound, err)}
	case err != nil:
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return parseKNNResult(raw)
}

// knnArgs renders the FT.SEARCH arguments (without the command name) for q.
func knnArgs(q *db.KNNQuery) ([]string, error) {
	switch {
	case q.IndexName == "":
		return nil, errors.New("knn: index name is required")
	case len(q.Vector) == 0:
		return nil, errors.New("knn: query vector is required")
	case q.K <= 0:
		return nil, fmt.Errorf("knn: k must be positive, got %d", q.K)
	}

	field := q.VectorField
	if field == "" {
		field = defaultVectorField
	}
	k := strconv.Itoa(q.K)

	clause := "*=>[KNN " + k + " @" + field + " $BLOB"
	params := []string{"BLOB", vectorToBytes(q.Vector)}
	if q.EFRuntime > 0 {
		clause += " EF_RUNTIME $EF"
		params = append(params, "EF", strconv.Itoa(q.EFRuntime))
	}
	clause += "]"

	args := []string{q.IndexName, clause}
	if n := len(q.ReturnFields); n > 0 {
		args = append(args, "RETURN", strconv.Itoa(n+1))
		args = append(args, q.ReturnFields...)
		args = append(args, vectorScoreField)
	}
	args = append(args,
		"SORTBY", vectorScoreField, "ASC",
		"LIMIT", "0", k,
		"PARAMS", strconv.Itoa(len(params)))
	args = append(args, params...)
	return append(args, "DIALECT", "2"), nil
}

// SearchCount runs the query with LIMIT 0 0 and returns the reported total.
func (s *Store) SearchCount(ctx context.Context, index, query string) (int, error) {
	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(index, query, "LIMIT", "0", "0").Build()).ToArray()
	if err != nil {
		return 0, &db.Error{Op: db.OpSearch, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	n, err := raw[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("total: %w", err)}
	}
	return int(n), nil
}

// parseKNNResult reads the RESP2 reply [total, key1, [f, v, ...], key2, [...], ...].
// Malformed pairs are skipped.
func parseKNNResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("total: %w", err)}
	}

	res := &db.SearchResult{Total: int(total), Entries: make([]db.SearchEntry, 0, (len(raw)-1)/2)}
	for i := 1; i+1 < len(raw); i += 2 {
		key, kerr := raw[i].ToString()
		pairs, perr := raw[i+1].ToArray()
		if kerr != nil || perr != nil {
			continue
		}
		fields := fieldMap(pairs)
		entry := db.SearchEntry{Key: key, Fields: fields}
		if d, ok := fields[vectorScoreField]; ok {
			if dist, err := strconv.ParseFloat(d, 64); err == nil {
				entry.Score = min(1, max(0, 1-dist))
			}
			delete(fields, vectorScoreField)
		}
		res.Entries = append(res.Entries, entry)
	}
	return res, nil
}

func fieldMap(pairs []rueidis.RedisMessage) map[string]string {
	out := make(map[string]string, len(pairs)/2)
	for j := 0; j+1 < len(pairs); j += 2 {
		name, nerr := pairs[j].ToString()
		val, verr := pairs[j+1].ToString()
		if nerr == nil && verr == nil {
			out[name] = val
		}
	}
	return out
}

// vectorToBytes encodes v as little-endian FLOAT32, the layout HNSW hash fields store.
func vectorToBytes(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return string(buf)
}
