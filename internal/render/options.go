package render

import (
	"fmt"
	"runtime"

	"github.com/kiesman99/deepzoom/internal/fractal"
)

// Options contains all rendering parameters. Validate must accept the
// options before any computation or disk writes happen.
type Options struct {
	// Complex-plane window to render.
	Window fractal.Window

	// Output resolution in pixels.
	Width, Height int

	// Escape iteration bound.
	MaxIter int

	// Streaming geometry.
	StripHeight    int
	ChunksPerStrip int
	TileSize       int

	// Parallel compute workers per strip. Zero means GOMAXPROCS.
	Workers int

	// Colormap normalization reference (escape values at or above it
	// take the last palette color).
	ColorReference float64

	// Output location: OutDir/Name.dzi and OutDir/Name_files/.
	OutDir string
	Name   string
}

// Validate checks the configuration surface. All errors here are fatal
// and reported before any work begins.
func (o *Options) Validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("resolution must be positive, got %dx%d", o.Width, o.Height)
	}
	if o.MaxIter <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", o.MaxIter)
	}
	if o.StripHeight <= 0 {
		return fmt.Errorf("strip height must be positive, got %d", o.StripHeight)
	}
	if o.ChunksPerStrip <= 0 {
		return fmt.Errorf("chunks per strip must be positive, got %d", o.ChunksPerStrip)
	}
	if o.ChunksPerStrip > o.Width {
		return fmt.Errorf("chunks per strip (%d) exceeds image width (%d)", o.ChunksPerStrip, o.Width)
	}
	if o.TileSize <= 0 {
		return fmt.Errorf("tile size must be positive, got %d", o.TileSize)
	}
	if o.TileSize%o.StripHeight != 0 && o.StripHeight%o.TileSize != 0 {
		return fmt.Errorf("tile size %d and strip height %d are incompatible: one must divide the other", o.TileSize, o.StripHeight)
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", o.Workers)
	}
	if o.Window.Xmin >= o.Window.Xmax {
		return fmt.Errorf("window xmin %g must be less than xmax %g", o.Window.Xmin, o.Window.Xmax)
	}
	if o.Window.Ymin >= o.Window.Ymax {
		return fmt.Errorf("window ymin %g must be less than ymax %g", o.Window.Ymin, o.Window.Ymax)
	}
	if o.ColorReference <= 0 {
		return fmt.Errorf("color reference must be positive, got %g", o.ColorReference)
	}
	if o.OutDir == "" {
		return fmt.Errorf("output directory is required")
	}
	if o.Name == "" {
		return fmt.Errorf("output name is required")
	}
	return nil
}

// Strips returns the number of horizontal strips; the last strip may
// be shorter than StripHeight.
func (o *Options) Strips() int {
	return (o.Height + o.StripHeight - 1) / o.StripHeight
}

// stripBounds returns the first row and height of a strip.
func (o *Options) stripBounds(strip int) (y0, h int) {
	y0 = strip * o.StripHeight
	h = o.StripHeight
	if y0+h > o.Height {
		h = o.Height - y0
	}
	return y0, h
}

// chunkBounds returns the first column and width of a chunk. Chunk
// boundaries are i*Width/n, which tiles the strip width exactly with
// no gap or overlap.
func (o *Options) chunkBounds(chunk int) (x0, w int) {
	x0 = chunk * o.Width / o.ChunksPerStrip
	x1 := (chunk + 1) * o.Width / o.ChunksPerStrip
	return x0, x1 - x0
}

func (o *Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}
