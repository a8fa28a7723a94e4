package db

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// StorageHash is the only FT storage used: books live in hashes so the
// vector field can hold raw FLOAT32 bytes next to the display fields.
const StorageHash = "HASH"

// DistanceCosine is the vector distance used by every librarian index.
// FT.SEARCH reports it as 1 - cosine similarity.
const DistanceCosine = "COSINE"

// IndexFieldType enumerates supported FT index field types.
type IndexFieldType int

const (
	// IndexFieldNumeric is a sortable numeric field (year, rating).
	IndexFieldNumeric IndexFieldType = iota
	// IndexFieldTag is an exact-match field.
	IndexFieldTag
	// IndexFieldText is a full-text field; Redis only.
	IndexFieldText
	// IndexFieldVector is an HNSW vector field.
	IndexFieldVector
)

// IndexField describes a single field in an FT index schema.
type IndexField struct {
	Name         string
	Type         IndexFieldType
	TagSeparator string

	// HNSW vector options; zero M or EFConstruct leaves the server default.
	Dim         int
	M           int
	EFConstruct int
}

// IndexDefinition is an FT.CREATE request over hashes.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// Validate rejects definitions FT.CREATE would refuse or misread.
func (idx *IndexDefinition) Validate() error {
	switch {
	case !IsValidIdentifier(idx.Name):
		return fmt.Errorf("index name %q: want [a-zA-Z0-9_:-]+", idx.Name)
	case len(idx.Fields) == 0:
		return errors.New("index schema has no fields")
	}

	names := make(map[string]struct{}, len(idx.Fields))
	for i, f := range idx.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema field %d has no name", i)
		}
		if _, dup := names[f.Name]; dup {
			return fmt.Errorf("schema field %q declared twice", f.Name)
		}
		names[f.Name] = struct{}{}
		if f.Type == IndexFieldVector && f.Dim <= 0 {
			return fmt.Errorf("vector field %q needs DIM > 0, got %d", f.Name, f.Dim)
		}
	}
	return nil
}

// CreateArgs renders the FT.CREATE arguments after the command name.
func (idx *IndexDefinition) CreateArgs() ([]string, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	args := []string{idx.Name, "ON", StorageHash}
	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}
	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		f := &idx.Fields[i]
		args = append(args, f.Name)
		switch f.Type {
		case IndexFieldNumeric:
			args = append(args, "NUMERIC", "SORTABLE")
		case IndexFieldTag:
			args = append(args, "TAG")
			if f.TagSeparator != "" {
				args = append(args, "SEPARATOR", f.TagSeparator)
			}
		case IndexFieldText:
			args = append(args, "TEXT")
		case IndexFieldVector:
			args = append(args, f.vectorArgs()...)
		default:
			return nil, fmt.Errorf("unknown type for field %s", f.Name)
		}
	}
	return args, nil
}

func (f *IndexField) vectorArgs() []string {
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.Dim),
		"DISTANCE_METRIC", DistanceCosine,
	}
	if f.M > 0 {
		attrs = append(attrs, "M", strconv.Itoa(f.M))
	}
	if f.EFConstruct > 0 {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(f.EFConstruct))
	}
	return append([]string{"VECTOR", "HNSW", strconv.Itoa(len(attrs))}, attrs...)
}

// IsValidIdentifier reports whether s is a non-empty run of [a-zA-Z0-9_:-].
func IsValidIdentifier(s string) bool {
	return s != "" && !strings.ContainsFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		default:
			return r != '_' && r != ':' && r != '-'
		}
	})
}
