// Package render drives the streaming fractal pipeline: it schedules
// strips, fans chunk computation out to a bounded worker pool, stitches
// finished chunks into colored strips and feeds them to the tile
// pyramid. Working-set size stays bounded by one strip regardless of
// the output resolution.
package render

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/kiesman99/deepzoom/internal/chunkstore"
	"github.com/kiesman99/deepzoom/internal/fractal"
	"github.com/kiesman99/deepzoom/internal/pyramid"
	"github.com/kiesman99/deepzoom/pkg/colormap"
)

// Reporter receives progress notifications. Step may be called from
// multiple goroutines.
type Reporter interface {
	Phase(name string)
	Step(done, total int)
}

// NopReporter discards all progress notifications.
type NopReporter struct{}

func (NopReporter) Phase(string)  {}
func (NopReporter) Step(int, int) {}

// ChunkError identifies the chunk whose computation or storage failed.
// The owning strip is never assembled.
type ChunkError struct {
	Strip, Chunk int
	Err          error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("strip %d chunk %d: %v", e.Strip, e.Chunk, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// ChunkStore is the slot-addressed temporary storage the pipeline
// streams chunk data through. *chunkstore.Store implements it.
type ChunkStore interface {
	Write(strip, chunk int, values []float32) error
	Map(strip, chunk int) (*chunkstore.Mapping, error)
	DeleteStrip(strip, chunksPerStrip int) error
}

// Renderer runs the full pipeline for one configuration.
type Renderer struct {
	Opts Options

	// LUT defaults to colormap.Default().
	LUT *colormap.LUT

	// Reporter defaults to NopReporter.
	Reporter Reporter

	// Store defaults to a chunkstore under OutDir; a defaulted store is
	// created and removed by Render, an injected one belongs to the
	// caller.
	Store ChunkStore
}

// New returns a renderer with default colormap and progress reporting.
func New(opts Options) *Renderer {
	return &Renderer{Opts: opts}
}

// Render runs the pipeline: validate, compute and assemble strips in
// strictly increasing order, cut the finest level, build the coarser
// levels, and write the descriptor last.
func (r *Renderer) Render(ctx context.Context) error {
	if err := r.Opts.Validate(); err != nil {
		return err
	}

	lut := r.LUT
	if lut == nil {
		lut = colormap.Default()
	}
	reporter := r.Reporter
	if reporter == nil {
		reporter = NopReporter{}
	}

	tilesDir := filepath.Join(r.Opts.OutDir, r.Opts.Name+"_files")
	if err := os.RemoveAll(tilesDir); err != nil {
		return fmt.Errorf("clearing tiles dir: %w", err)
	}
	if err := os.MkdirAll(tilesDir, 0o755); err != nil {
		return fmt.Errorf("creating tiles dir: %w", err)
	}

	store := r.Store
	if store == nil {
		owned, err := chunkstore.New(filepath.Join(r.Opts.OutDir, "."+r.Opts.Name+"_chunks"))
		if err != nil {
			return err
		}
		defer owned.Close()
		store = owned
	}

	cutter, err := pyramid.NewCutter(tilesDir, r.Opts.Width, r.Opts.Height, r.Opts.TileSize)
	if err != nil {
		return err
	}

	strips := r.Opts.Strips()
	reporter.Phase(fmt.Sprintf("computing %d strips", strips))

	for strip := 0; strip < strips; strip++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.computeStrip(ctx, store, strip); err != nil {
			return err
		}
		img, err := r.assembleStrip(store, lut, strip)
		if err != nil {
			return err
		}
		if err := store.DeleteStrip(strip, r.Opts.ChunksPerStrip); err != nil {
			return err
		}
		if err := cutter.AddStrip(img); err != nil {
			return err
		}
		reporter.Step(strip+1, strips)
	}

	if err := cutter.Finish(); err != nil {
		return err
	}

	builder := &pyramid.Builder{
		TilesDir: tilesDir,
		Width:    r.Opts.Width,
		Height:   r.Opts.Height,
		TileSize: r.Opts.TileSize,
		Workers:  r.Opts.workers(),
		Reporter: reporter,
	}
	if err := builder.Build(ctx); err != nil {
		return err
	}

	// The descriptor is the last artifact: its existence means the
	// pyramid is complete.
	d := pyramid.NewDescriptor(r.Opts.Width, r.Opts.Height, r.Opts.TileSize)
	return d.Write(filepath.Join(r.Opts.OutDir, r.Opts.Name+".dzi"))
}

// computeStrip dispatches the strip's chunks to a bounded worker pool
// and blocks until every chunk is written. The first failure cancels
// the remaining workers.
func (r *Renderer) computeStrip(ctx context.Context, store ChunkStore, strip int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Opts.workers())

	for chunk := 0; chunk < r.Opts.ChunksPerStrip; chunk++ {
		chunk := chunk
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			values := r.computeChunk(strip, chunk)
			if err := store.Write(strip, chunk, values); err != nil {
				return &ChunkError{Strip: strip, Chunk: chunk, Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

// computeChunk evaluates every pixel of a chunk in row-major order.
// The buffer is local to the worker, so per-strip memory stays at
// workers × chunk size.
func (r *Renderer) computeChunk(strip, chunk int) []float32 {
	y0, h := r.Opts.stripBounds(strip)
	x0, w := r.Opts.chunkBounds(chunk)

	values := make([]float32, h*w)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			c := r.Opts.Window.At(x0+col, y0+row, r.Opts.Width, r.Opts.Height)
			n, frac := fractal.Evaluate(c, r.Opts.MaxIter)
			values[row*w+col] = float32(fractal.Value(n, frac, r.Opts.MaxIter))
		}
	}
	return values
}

// assembleStrip maps the strip's chunks read-only and concatenates
// them column-wise into one colored strip image. The chunk arrays are
// never loaded whole; rows are streamed out of the mappings.
func (r *Renderer) assembleStrip(store ChunkStore, lut *colormap.LUT, strip int) (*image.NRGBA, error) {
	_, h := r.Opts.stripBounds(strip)
	img := image.NewNRGBA(image.Rect(0, 0, r.Opts.Width, h))

	rowBuf := make([]float32, r.Opts.Width)
	for chunk := 0; chunk < r.Opts.ChunksPerStrip; chunk++ {
		x0, w := r.Opts.chunkBounds(chunk)

		m, err := store.Map(strip, chunk)
		if err != nil {
			return nil, &ChunkError{Strip: strip, Chunk: chunk, Err: err}
		}
		for row := 0; row < h; row++ {
			if err := m.ReadRow(rowBuf[:w], row*w, w); err != nil {
				m.Close()
				return nil, &ChunkError{Strip: strip, Chunk: chunk, Err: err}
			}
			base := row*img.Stride + x0*4
			for i := 0; i < w; i++ {
				c := lut.Map(float64(rowBuf[i]), r.Opts.ColorReference)
				p := base + i*4
				img.Pix[p] = c.R
				img.Pix[p+1] = c.G
				img.Pix[p+2] = c.B
				img.Pix[p+3] = 255
			}
		}
		if err := m.Close(); err != nil {
			return nil, &ChunkError{Strip: strip, Chunk: chunk, Err: err}
		}
	}
	return img, nil
}
