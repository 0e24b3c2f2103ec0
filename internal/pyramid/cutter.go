package pyramid

import (
	"fmt"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"strconv"
)

// Cutter slices assembled strips into the tiles of the finest pyramid
// level. Strips must arrive top-to-bottom; the cutter buffers at most
// one tile row of pixels (the band) and writes a tile as soon as its
// full height has arrived, so memory stays bounded by
// tileSize × width regardless of image height.
type Cutter struct {
	levelDir string
	tileSize int
	width    int
	height   int

	band     *image.NRGBA
	filled   int // rows currently in the band
	row      int // next tile row index to write
	consumed int // total image rows received
}

// NewCutter creates the finest level directory and a cutter for it.
func NewCutter(tilesDir string, width, height, tileSize int) (*Cutter, error) {
	maxLevel := MaxLevel(width, height)
	levelDir := filepath.Join(tilesDir, strconv.Itoa(maxLevel))
	if err := os.MkdirAll(levelDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating level dir: %w", err)
	}
	return &Cutter{
		levelDir: levelDir,
		tileSize: tileSize,
		width:    width,
		height:   height,
		band:     image.NewNRGBA(image.Rect(0, 0, width, tileSize)),
	}, nil
}

// AddStrip feeds the next strip of the image. The strip must span the
// full image width; its height is arbitrary.
func (c *Cutter) AddStrip(strip image.Image) error {
	b := strip.Bounds()
	if b.Dx() != c.width {
		return fmt.Errorf("strip width %d does not match image width %d", b.Dx(), c.width)
	}
	if c.consumed+b.Dy() > c.height {
		return fmt.Errorf("strip overruns image height %d", c.height)
	}

	offset := 0
	for offset < b.Dy() {
		n := b.Dy() - offset
		if room := c.tileSize - c.filled; n > room {
			n = room
		}
		dst := image.Rect(0, c.filled, c.width, c.filled+n)
		draw.Draw(c.band, dst, strip, image.Pt(b.Min.X, b.Min.Y+offset), draw.Src)
		c.filled += n
		c.consumed += n
		offset += n

		if c.filled == c.tileSize {
			if err := c.flushBand(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Finish writes the final, possibly short, tile row and verifies the
// whole image was received.
func (c *Cutter) Finish() error {
	if c.filled > 0 {
		if err := c.flushBand(); err != nil {
			return err
		}
	}
	if c.consumed != c.height {
		return fmt.Errorf("received %d rows, expected %d", c.consumed, c.height)
	}
	return nil
}

// flushBand cuts the buffered band into column tiles. Edge tiles keep
// their true size; they are never padded.
func (c *Cutter) flushBand() error {
	cols := ceilDiv(c.width, c.tileSize)
	for col := 0; col < cols; col++ {
		x0 := col * c.tileSize
		tw := c.tileSize
		if x0+tw > c.width {
			tw = c.width - x0
		}
		tile := c.band.SubImage(image.Rect(x0, 0, x0+tw, c.filled))
		path := filepath.Join(c.levelDir, fmt.Sprintf("%d_%d.png", col, c.row))
		if err := writeTile(path, tile); err != nil {
			return fmt.Errorf("tile %d_%d: %w", col, c.row, err)
		}
	}
	c.row++
	c.filled = 0
	return nil
}
