package pyramid

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/disintegration/imaging"
)

func TestMaxLevel(t *testing.T) {
	testCases := []struct {
		width, height int
		want          int
	}{
		{1, 1, 0},
		{2, 2, 1},
		{256, 256, 8},
		{1024, 768, 10},
		{1025, 768, 11},
		{10240, 7680, 14},
	}
	for _, tc := range testCases {
		if got := MaxLevel(tc.width, tc.height); got != tc.want {
			t.Errorf("MaxLevel(%d, %d) = %d, want %d", tc.width, tc.height, got, tc.want)
		}
	}
}

func TestLevelDims(t *testing.T) {
	maxLevel := MaxLevel(1024, 768)

	testCases := []struct {
		level        int
		wantW, wantH int
	}{
		{10, 1024, 768},
		{9, 512, 384},
		{8, 256, 192},
		{3, 8, 6},
		{0, 1, 1},
	}
	for _, tc := range testCases {
		w, h := LevelDims(1024, 768, tc.level, maxLevel)
		if w != tc.wantW || h != tc.wantH {
			t.Errorf("LevelDims(level %d) = %dx%d, want %dx%d", tc.level, w, h, tc.wantW, tc.wantH)
		}
	}
}

func TestGrid(t *testing.T) {
	cols, rows := Grid(1024, 768, 256)
	if cols != 4 || rows != 3 {
		t.Errorf("Grid(1024, 768, 256) = %dx%d, want 4x3", cols, rows)
	}
	cols, rows = Grid(1025, 768, 256)
	if cols != 5 || rows != 3 {
		t.Errorf("Grid(1025, 768, 256) = %dx%d, want 5x3", cols, rows)
	}
}

func uniformStrip(width, height int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func levelTiles(t *testing.T, tilesDir string, level int) map[string]bool {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(tilesDir, strconv.Itoa(level)))
	if err != nil {
		t.Fatalf("reading level %d: %v", level, err)
	}
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		names[e.Name()] = true
	}
	return names
}

func TestCutterEdgeTiles(t *testing.T) {
	tilesDir := t.TempDir()
	// 40x24 with 16px tiles: 3 columns (last 8px wide), 2 rows (last 8px tall).
	c, err := NewCutter(tilesDir, 40, 24, 16)
	if err != nil {
		t.Fatalf("NewCutter: %v", err)
	}

	fill := color.NRGBA{R: 10, G: 20, B: 30, A: 255}
	for i := 0; i < 3; i++ {
		if err := c.AddStrip(uniformStrip(40, 8, fill)); err != nil {
			t.Fatalf("AddStrip %d: %v", i, err)
		}
	}
	if err := c.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	level := MaxLevel(40, 24)
	got := levelTiles(t, tilesDir, level)
	want := []string{"0_0.png", "1_0.png", "2_0.png", "0_1.png", "1_1.png", "2_1.png"}
	if len(got) != len(want) {
		t.Fatalf("level %d has %d tiles, want %d: %v", level, len(got), len(want), got)
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("missing tile %s", name)
		}
	}

	// Edge tiles must be truncated, not padded.
	sizes := map[string][2]int{
		"0_0.png": {16, 16},
		"2_0.png": {8, 16},
		"0_1.png": {16, 8},
		"2_1.png": {8, 8},
	}
	for name, wantSize := range sizes {
		img, err := imaging.Open(filepath.Join(tilesDir, strconv.Itoa(level), name))
		if err != nil {
			t.Fatalf("opening %s: %v", name, err)
		}
		b := img.Bounds()
		if b.Dx() != wantSize[0] || b.Dy() != wantSize[1] {
			t.Errorf("%s is %dx%d, want %dx%d", name, b.Dx(), b.Dy(), wantSize[0], wantSize[1])
		}
	}
}

func TestCutterRejectsWrongWidth(t *testing.T) {
	c, err := NewCutter(t.TempDir(), 32, 32, 16)
	if err != nil {
		t.Fatalf("NewCutter: %v", err)
	}
	if err := c.AddStrip(uniformStrip(16, 8, color.NRGBA{A: 255})); err == nil {
		t.Error("expected error for strip narrower than the image")
	}
}

func TestCutterDetectsShortImage(t *testing.T) {
	c, err := NewCutter(t.TempDir(), 16, 32, 16)
	if err != nil {
		t.Fatalf("NewCutter: %v", err)
	}
	if err := c.AddStrip(uniformStrip(16, 16, color.NRGBA{A: 255})); err != nil {
		t.Fatalf("AddStrip: %v", err)
	}
	if err := c.Finish(); err == nil {
		t.Error("expected error when rows are missing at Finish")
	}
}

// seedFinestLevel writes a uniform finest level for a width×height
// image and returns the tiles dir.
func seedFinestLevel(t *testing.T, width, height, tileSize int, fill color.NRGBA) string {
	t.Helper()
	tilesDir := t.TempDir()
	c, err := NewCutter(tilesDir, width, height, tileSize)
	if err != nil {
		t.Fatalf("NewCutter: %v", err)
	}
	if err := c.AddStrip(uniformStrip(width, height, fill)); err != nil {
		t.Fatalf("AddStrip: %v", err)
	}
	if err := c.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return tilesDir
}

func TestBuilderCoverageAndConsistency(t *testing.T) {
	fill := color.NRGBA{R: 100, G: 150, B: 200, A: 255}
	tilesDir := seedFinestLevel(t, 32, 32, 16, fill)

	b := &Builder{
		TilesDir: tilesDir,
		Width:    32,
		Height:   32,
		TileSize: 16,
		Workers:  2,
		Filter:   imaging.Box, // exact on uniform input
	}
	if err := b.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}

	maxLevel := MaxLevel(32, 32) // 5
	for level := 0; level <= maxLevel; level++ {
		levelW, levelH := LevelDims(32, 32, level, maxLevel)
		cols, rows := Grid(levelW, levelH, 16)
		got := levelTiles(t, tilesDir, level)
		if len(got) != cols*rows {
			t.Errorf("level %d has %d tiles, want %d", level, len(got), cols*rows)
		}
		for row := 0; row < rows; row++ {
			for col := 0; col < cols; col++ {
				if !got[strconv.Itoa(col)+"_"+strconv.Itoa(row)+".png"] {
					t.Errorf("level %d missing tile %d_%d", level, col, row)
				}
			}
		}
	}

	// Downsampling a uniform image with a box filter is exact.
	img, err := imaging.Open(TilePath(tilesDir, 0, 0, 0))
	if err != nil {
		t.Fatalf("opening level 0 tile: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1 || b.Dy() != 1 {
		t.Fatalf("level 0 tile is %dx%d, want 1x1", b.Dx(), b.Dy())
	}
	r, g, bb, _ := img.At(0, 0).RGBA()
	if uint8(r>>8) != fill.R || uint8(g>>8) != fill.G || uint8(bb>>8) != fill.B {
		t.Errorf("level 0 pixel = (%d, %d, %d), want (%d, %d, %d)",
			r>>8, g>>8, bb>>8, fill.R, fill.G, fill.B)
	}
}

func TestBuilderEdgeLevels(t *testing.T) {
	// 40x24 finest level: level below is 20x12, still edge-truncated.
	fill := color.NRGBA{R: 9, G: 9, B: 9, A: 255}
	tilesDir := seedFinestLevel(t, 40, 24, 16, fill)

	b := &Builder{TilesDir: tilesDir, Width: 40, Height: 24, TileSize: 16, Workers: 1}
	if err := b.Build(context.Background()); err != nil {
		t.Fatalf("Build: %v", err)
	}

	maxLevel := MaxLevel(40, 24) // 6
	img, err := imaging.Open(TilePath(tilesDir, maxLevel-1, 1, 0))
	if err != nil {
		t.Fatalf("opening edge tile: %v", err)
	}
	if bnd := img.Bounds(); bnd.Dx() != 4 || bnd.Dy() != 12 {
		t.Errorf("level %d edge tile is %dx%d, want 4x12", maxLevel-1, bnd.Dx(), bnd.Dy())
	}
}

func TestBuilderMissingParentTile(t *testing.T) {
	tilesDir := seedFinestLevel(t, 32, 32, 16, color.NRGBA{A: 255})
	maxLevel := MaxLevel(32, 32)

	if err := os.Remove(TilePath(tilesDir, maxLevel, 1, 1)); err != nil {
		t.Fatalf("removing parent tile: %v", err)
	}

	b := &Builder{TilesDir: tilesDir, Width: 32, Height: 32, TileSize: 16, Workers: 1}
	err := b.Build(context.Background())
	if err == nil {
		t.Fatal("expected error for missing parent tile")
	}
	var te *TileError
	if !errors.As(err, &te) {
		t.Fatalf("expected TileError, got %T: %v", err, err)
	}
	if te.Level != maxLevel-1 {
		t.Errorf("TileError.Level = %d, want %d", te.Level, maxLevel-1)
	}
}

func TestDescriptorRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fractal.dzi")

	d := NewDescriptor(1024, 768, 256)
	if got := d.LevelCount(); got != 11 {
		t.Errorf("LevelCount = %d, want 11", got)
	}
	if err := d.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := ReadDescriptor(path)
	if err != nil {
		t.Fatalf("ReadDescriptor: %v", err)
	}
	if got.Size.Width != 1024 || got.Size.Height != 768 {
		t.Errorf("size = %dx%d, want 1024x768", got.Size.Width, got.Size.Height)
	}
	if got.TileSize != 256 || got.Overlap != 0 || got.Format != "png" {
		t.Errorf("unexpected attributes: %+v", got)
	}
	if got.Xmlns != dziNamespace {
		t.Errorf("xmlns = %q, want %q", got.Xmlns, dziNamespace)
	}
}
