// Package pyramid builds a DeepZoom tile pyramid: it cuts assembled
// image strips into the maximum-resolution level and derives every
// coarser level by 2:1 downsampling.
package pyramid

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
)

// Reporter receives progress notifications. Step may be called from
// multiple goroutines. Implementations must not affect correctness;
// the zero-value NopReporter is always safe.
type Reporter interface {
	Phase(name string)
	Step(done, total int)
}

// NopReporter discards all progress notifications.
type NopReporter struct{}

func (NopReporter) Phase(string)  {}
func (NopReporter) Step(int, int) {}

// MaxLevel returns the finest pyramid level index for a native image
// size: the smallest L with 2^L >= max(width, height).
func MaxLevel(width, height int) int {
	n := width
	if height > n {
		n = height
	}
	level := 0
	for s := 1; s < n; s <<= 1 {
		level++
	}
	return level
}

// LevelCount returns the number of levels, finest through the 1×1
// pixel level 0.
func LevelCount(width, height int) int {
	return MaxLevel(width, height) + 1
}

// LevelDims returns the pixel dimensions of a level: the native size
// halved (rounding up) once per level below maxLevel, never below 1.
func LevelDims(width, height, level, maxLevel int) (int, int) {
	shift := uint(maxLevel - level)
	w := ceilShift(width, shift)
	h := ceilShift(height, shift)
	return w, h
}

// Grid returns the tile grid size for a level's pixel dimensions.
func Grid(width, height, tileSize int) (cols, rows int) {
	return ceilDiv(width, tileSize), ceilDiv(height, tileSize)
}

// TilePath returns the file path for a tile address.
func TilePath(tilesDir string, level, col, row int) string {
	return filepath.Join(tilesDir, strconv.Itoa(level), fmt.Sprintf("%d_%d.png", col, row))
}

// writeTile encodes a tile as PNG and publishes it atomically so that a
// half-written tile is never visible.
func writeTile(path string, img image.Image) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "tile-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp tile: %w", err)
	}
	tmpName := tmp.Name()

	if err := imaging.Encode(tmp, img, imaging.PNG); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encoding tile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing tile: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publishing tile: %w", err)
	}
	return nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func ceilShift(v int, shift uint) int {
	r := (v + (1 << shift) - 1) >> shift
	if r < 1 {
		r = 1
	}
	return r
}
