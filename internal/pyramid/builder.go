package pyramid

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"
)

// TileError identifies the output tile that could not be produced.
type TileError struct {
	Level, Col, Row int
	Err             error
}

func (e *TileError) Error() string {
	return fmt.Sprintf("level %d tile %d_%d: %v", e.Level, e.Col, e.Row, e.Err)
}

func (e *TileError) Unwrap() error {
	return e.Err
}

// Builder derives the coarser pyramid levels from a fully tiled finest
// level. Each output tile is composited from up to 4 parent tiles and
// reduced 2:1; a level is only started once its parent level is
// complete.
type Builder struct {
	TilesDir string
	Width    int // native image width
	Height   int // native image height
	TileSize int
	Workers  int
	Filter   imaging.ResampleFilter // zero value means Lanczos
	Reporter Reporter
}

// Build produces every level below the finest, down to the 1×1 pixel
// level 0. Tiles within a level are built in parallel; any failure
// halts the level and no coarser level is attempted.
func (b *Builder) Build(ctx context.Context) error {
	filter := b.Filter
	if filter.Support == 0 {
		filter = imaging.Lanczos
	}
	workers := b.Workers
	if workers < 1 {
		workers = 1
	}
	reporter := b.Reporter
	if reporter == nil {
		reporter = NopReporter{}
	}

	maxLevel := MaxLevel(b.Width, b.Height)
	for level := maxLevel - 1; level >= 0; level-- {
		levelW, levelH := LevelDims(b.Width, b.Height, level, maxLevel)
		cols, rows := Grid(levelW, levelH, b.TileSize)

		if err := os.MkdirAll(filepath.Join(b.TilesDir, strconv.Itoa(level)), 0o755); err != nil {
			return fmt.Errorf("level %d: %w", level, err)
		}

		reporter.Phase(fmt.Sprintf("level %d (%dx%d)", level, levelW, levelH))

		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)

		total := cols * rows
		var done atomic.Int64

		for row := 0; row < rows; row++ {
			for col := 0; col < cols; col++ {
				col, row := col, row
				g.Go(func() error {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
					if err := b.buildTile(level, col, row, filter); err != nil {
						return &TileError{Level: level, Col: col, Row: row, Err: err}
					}
					reporter.Step(int(done.Add(1)), total)
					return nil
				})
			}
		}

		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// buildTile composites the parent tiles covering this tile's source
// region and downsamples the region 2:1.
func (b *Builder) buildTile(level, col, row int, filter imaging.ResampleFilter) error {
	maxLevel := MaxLevel(b.Width, b.Height)
	srcLevel := level + 1
	srcW, srcH := LevelDims(b.Width, b.Height, srcLevel, maxLevel)
	srcCols, srcRows := Grid(srcW, srcH, b.TileSize)

	// Source region in parent-level pixels.
	ox := col * 2 * b.TileSize
	oy := row * 2 * b.TileSize
	sw := srcW - ox
	if sw > 2*b.TileSize {
		sw = 2 * b.TileSize
	}
	sh := srcH - oy
	if sh > 2*b.TileSize {
		sh = 2 * b.TileSize
	}

	canvas := imaging.New(sw, sh, color.NRGBA{A: 255})
	for dy := 0; dy < 2; dy++ {
		for dx := 0; dx < 2; dx++ {
			sc := col*2 + dx
			sr := row*2 + dy
			if sc >= srcCols || sr >= srcRows {
				continue
			}
			parent, err := imaging.Open(TilePath(b.TilesDir, srcLevel, sc, sr))
			if err != nil {
				return fmt.Errorf("reading parent %d_%d: %w", sc, sr, err)
			}
			canvas = imaging.Paste(canvas, parent, image.Pt(dx*b.TileSize, dy*b.TileSize))
		}
	}

	out := imaging.Resize(canvas, ceilDiv(sw, 2), ceilDiv(sh, 2), filter)
	return writeTile(TilePath(b.TilesDir, level, col, row), out)
}
