// Package vectorfile provides an embedded flat-file vector index with exact
// (linear scan) similarity search. Vectors are keyed by record ID, so search
// hits resolve to metadata rows without positional coupling.
package vectorfile

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/custodia-labs/mailmind-cli/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// File format constants. Entries are little-endian: a uint16 ID length, the
// ID bytes, then dimension float32 values.
const (
	fileMagic   = "MMVX"
	fileVersion = uint32(1)
)

// Index errors.
var (
	// ErrClosed indicates the index has been closed.
	ErrClosed = errors.New("vectorfile: index is closed")

	// ErrDuplicateID indicates a vector with the same ID is already stored.
	ErrDuplicateID = errors.New("vectorfile: duplicate record ID")

	// ErrDimension indicates a vector of the wrong size.
	ErrDimension = errors.New("vectorfile: dimension mismatch")

	// ErrCorrupt indicates the index file could not be parsed.
	ErrCorrupt = errors.New("vectorfile: corrupt index file")
)

// Index is an exact-search vector index persisted to a single file.
// All vectors are held in memory; Save writes the file atomically.
type Index struct {
	mu        sync.RWMutex
	path      string
	dimension int
	ids       []string
	vectors   [][]float32
	byID      map[string]int
	dirty     bool
	closed    bool
}

// New creates or opens an index at path. An existing file must have been
// written with the same dimension.
func New(path string, dimension int) (*Index, error) {
	if path == "" {
		return nil, errors.New("vectorfile: path cannot be empty")
	}
	if dimension <= 0 {
		return nil, errors.New("vectorfile: dimension must be positive")
	}

	idx := &Index{
		path:      path,
		dimension: dimension,
		byID:      make(map[string]int),
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("vectorfile: open %s: %w", path, err)
	}
	defer f.Close()

	if err := idx.load(bufio.NewReader(f)); err != nil {
		return nil, err
	}
	return idx, nil
}

// Add inserts a vector for the given record ID.
func (idx *Index) Add(_ context.Context, recordID string, embedding []float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return ErrClosed
	}
	if recordID == "" {
		return errors.New("vectorfile: record ID cannot be empty")
	}
	if len(embedding) != idx.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimension, len(embedding), idx.dimension)
	}
	if _, ok := idx.byID[recordID]; ok {
		return ErrDuplicateID
	}

	vec := make([]float32, len(embedding))
	copy(vec, embedding)

	idx.byID[recordID] = len(idx.ids)
	idx.ids = append(idx.ids, recordID)
	idx.vectors = append(idx.vectors, vec)
	idx.dirty = true
	return nil
}

// Search finds the k nearest neighbours to the query vector, ranked by
// descending cosine similarity.
func (idx *Index) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, ErrClosed
	}
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(query), idx.dimension)
	}
	if k <= 0 || len(idx.ids) == 0 {
		return nil, nil
	}

	hits := make([]driven.VectorHit, 0, len(idx.ids))
	for i, vec := range idx.vectors {
		hits = append(hits, driven.VectorHit{
			RecordID:   idx.ids[i],
			Similarity: Cosine(query, vec),
		})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Similarity > hits[b].Similarity
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of stored vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.ids)
}

// Contains reports whether a vector is stored for the given record ID.
func (idx *Index) Contains(recordID string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.byID[recordID]
	return ok
}

// Save writes the index to disk atomically (temp file + rename).
// A no-op when nothing changed since the last save.
func (idx *Index) Save() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return ErrClosed
	}
	if !idx.dirty {
		return nil
	}
	if err := idx.save(); err != nil {
		return err
	}
	idx.dirty = false
	return nil
}

// Close persists pending state and releases the index.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return nil
	}
	if idx.dirty {
		if err := idx.save(); err != nil {
			return err
		}
	}
	idx.closed = true
	return nil
}

// save writes the file. Caller holds the lock.
func (idx *Index) save() error {
	dir := filepath.Dir(idx.path)
	tmp, err := os.CreateTemp(dir, ".vectorfile-*")
	if err != nil {
		return fmt.Errorf("vectorfile: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := idx.write(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("vectorfile: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vectorfile: close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), idx.path); err != nil {
		return fmt.Errorf("vectorfile: rename: %w", err)
	}
	return nil
}

// write serialises the index to w. Caller holds the lock.
func (idx *Index) write(w io.Writer) error {
	if _, err := w.Write([]byte(fileMagic)); err != nil {
		return fmt.Errorf("vectorfile: write header: %w", err)
	}

	header := []uint32{fileVersion, uint32(idx.dimension), uint32(len(idx.ids))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("vectorfile: write header: %w", err)
		}
	}

	for i, id := range idx.ids {
		if err := binary.Write(w, binary.LittleEndian, uint16(len(id))); err != nil {
			return fmt.Errorf("vectorfile: write entry: %w", err)
		}
		if _, err := w.Write([]byte(id)); err != nil {
			return fmt.Errorf("vectorfile: write entry: %w", err)
		}
		for _, f := range idx.vectors[i] {
			if err := binary.Write(w, binary.LittleEndian, math.Float32bits(f)); err != nil {
				return fmt.Errorf("vectorfile: write entry: %w", err)
			}
		}
	}
	return nil
}

// load parses an index file into the receiver.
func (idx *Index) load(r io.Reader) error {
	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return ErrCorrupt
	}
	if string(magic) != fileMagic {
		return ErrCorrupt
	}

	var version, dimension, count uint32
	for _, p := range []*uint32{&version, &dimension, &count} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return ErrCorrupt
		}
	}
	if version != fileVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorrupt, version)
	}
	if int(dimension) != idx.dimension {
		return fmt.Errorf("%w: file dimension %d, index dimension %d",
			ErrDimension, dimension, idx.dimension)
	}

	idx.ids = make([]string, 0, count)
	idx.vectors = make([][]float32, 0, count)
	for i := uint32(0); i < count; i++ {
		var idLen uint16
		if err := binary.Read(r, binary.LittleEndian, &idLen); err != nil {
			return ErrCorrupt
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(r, idBytes); err != nil {
			return ErrCorrupt
		}

		vec := make([]float32, idx.dimension)
		for j := range vec {
			var bits uint32
			if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
				return ErrCorrupt
			}
			vec[j] = math.Float32frombits(bits)
		}

		idx.byID[string(idBytes)] = len(idx.ids)
		idx.ids = append(idx.ids, string(idBytes))
		idx.vectors = append(idx.vectors, vec)
	}
	return nil
}

// Cosine returns the cosine similarity between two equal-length vectors.
// Zero vectors yield 0.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
