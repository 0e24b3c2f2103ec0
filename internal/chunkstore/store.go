// Package chunkstore holds computed chunk data in memory-mapped
// temporary files, one file per (strip, chunk) slot.
//
// Slots go through a write-once/read-once lifecycle: a worker writes a
// slot atomically, the assembler maps it read-only, and the slot is
// deleted as soon as its strip has been consumed. With one strip in
// flight at most chunksPerStrip files exist at any time, which bounds
// peak temporary storage independently of the final image size.
package chunkstore

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/exp/mmap"
)

// Store manages the chunk slot files inside a private directory.
type Store struct {
	dir string
}

// New creates the store directory. The directory and anything left in
// it are removed by Close.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating chunk store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(strip, chunk int) string {
	return filepath.Join(s.dir, fmt.Sprintf("strip_%05d_chunk_%03d.f32", strip, chunk))
}

// Write stores a chunk's values as a dense little-endian float32 array.
// The slot becomes visible atomically: data is written to a temp file
// first and renamed into place, so a reader can never observe a
// half-written chunk.
func (s *Store) Write(strip, chunk int, values []float32) error {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}

	tmp, err := os.CreateTemp(s.dir, "chunk-*.tmp")
	if err != nil {
		return fmt.Errorf("strip %d chunk %d: creating temp file: %w", strip, chunk, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("strip %d chunk %d: writing: %w", strip, chunk, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("strip %d chunk %d: closing: %w", strip, chunk, err)
	}
	if err := os.Rename(tmpName, s.path(strip, chunk)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("strip %d chunk %d: publishing: %w", strip, chunk, err)
	}
	return nil
}

// Map opens a read-only memory-mapped view of a chunk slot. The caller
// must Close the view before the slot is deleted.
func (s *Store) Map(strip, chunk int) (*Mapping, error) {
	r, err := mmap.Open(s.path(strip, chunk))
	if err != nil {
		return nil, fmt.Errorf("strip %d chunk %d: mapping: %w", strip, chunk, err)
	}
	return &Mapping{r: r}, nil
}

// Delete removes a single slot.
func (s *Store) Delete(strip, chunk int) error {
	if err := os.Remove(s.path(strip, chunk)); err != nil {
		return fmt.Errorf("strip %d chunk %d: deleting: %w", strip, chunk, err)
	}
	return nil
}

// DeleteStrip removes all slots belonging to a strip.
func (s *Store) DeleteStrip(strip, chunksPerStrip int) error {
	for c := 0; c < chunksPerStrip; c++ {
		if err := os.Remove(s.path(strip, c)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("strip %d chunk %d: deleting: %w", strip, c, err)
		}
	}
	return nil
}

// Count reports how many slot files currently exist.
func (s *Store) Count() (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "strip_*_chunk_*.f32"))
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// Close removes the store directory and everything in it.
func (s *Store) Close() error {
	return os.RemoveAll(s.dir)
}

// Mapping is a read-only view of one chunk slot backed by mmap. Values
// are copied out row by row; the full array is never materialized on
// the heap.
type Mapping struct {
	r       *mmap.ReaderAt
	scratch []byte
}

// Len returns the number of float32 values in the slot.
func (m *Mapping) Len() int {
	return m.r.Len() / 4
}

// ReadRow copies count values starting at value offset off into dst.
func (m *Mapping) ReadRow(dst []float32, off, count int) error {
	if count > len(dst) {
		count = len(dst)
	}
	if cap(m.scratch) < count*4 {
		m.scratch = make([]byte, count*4)
	}
	buf := m.scratch[:count*4]
	if _, err := m.r.ReadAt(buf, int64(off)*4); err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return nil
}

// Close unmaps the view.
func (m *Mapping) Close() error {
	return m.r.Close()
}
