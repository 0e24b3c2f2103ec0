package pyramid

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
)

const dziNamespace = "http://schemas.microsoft.com/deepzoom/2008"

// Descriptor is the DZI record consumed by DeepZoom viewers. It is
// written exactly once, after the full pyramid is complete.
type Descriptor struct {
	XMLName  xml.Name `xml:"Image"`
	Xmlns    string   `xml:"xmlns,attr"`
	Format   string   `xml:"Format,attr"`
	Overlap  int      `xml:"Overlap,attr"`
	TileSize int      `xml:"TileSize,attr"`
	Size     Size     `xml:"Size"`
}

// Size holds the native image dimensions.
type Size struct {
	Height int `xml:"Height,attr"`
	Width  int `xml:"Width,attr"`
}

// NewDescriptor builds the descriptor for a finished pyramid.
func NewDescriptor(width, height, tileSize int) Descriptor {
	return Descriptor{
		Xmlns:    dziNamespace,
		Format:   "png",
		Overlap:  0,
		TileSize: tileSize,
		Size:     Size{Height: height, Width: width},
	}
}

// LevelCount returns the number of pyramid levels the descriptor
// implies.
func (d Descriptor) LevelCount() int {
	return LevelCount(d.Size.Width, d.Size.Height)
}

// Write marshals the descriptor and publishes it atomically.
func (d Descriptor) Write(path string) error {
	data, err := xml.MarshalIndent(d, "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling descriptor: %w", err)
	}
	data = append([]byte(xml.Header), data...)

	tmp, err := os.CreateTemp(filepath.Dir(path), "dzi-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp descriptor: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing descriptor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing descriptor: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publishing descriptor: %w", err)
	}
	return nil
}

// ReadDescriptor parses a .dzi file.
func ReadDescriptor(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("reading descriptor: %w", err)
	}
	var d Descriptor
	if err := xml.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("parsing descriptor: %w", err)
	}
	return d, nil
}
