// Package export writes dataset images to disk as PNG files, one pixel per
// grid cell.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/pixelset/internal/dataset"
	"github.com/banshee-data/pixelset/internal/fsutil"
	"github.com/banshee-data/pixelset/internal/grid"
	"github.com/banshee-data/pixelset/internal/monitoring"
	"github.com/banshee-data/pixelset/internal/security"
)

var palette = map[grid.Color]color.RGBA{
	grid.Red:        {0xff, 0x00, 0x00, 0xff},
	grid.Orange:     {0xff, 0xa5, 0x00, 0xff},
	grid.Yellow:     {0xff, 0xff, 0x00, 0xff},
	grid.LightGreen: {0x90, 0xee, 0x90, 0xff},
	grid.Green:      {0x00, 0x80, 0x00, 0xff},
	grid.Blue:       {0x00, 0x00, 0xff, 0xff},
	grid.Indigo:     {0x4b, 0x00, 0x82, 0xff},
	grid.Violet:     {0xee, 0x82, 0xee, 0xff},
	grid.Gray:       {0x80, 0x80, 0x80, 0xff},
	grid.Black:      {0x00, 0x00, 0x00, 0xff},
	grid.White:      {0xff, 0xff, 0xff, 0xff},
}

// RGBA maps a cell colour to a pixel. Tokens outside the palette are parsed
// as #rrggbb; anything else is black.
func RGBA(c grid.Color) color.RGBA {
	if p, ok := palette[c]; ok {
		return p
	}
	s := string(c)
	if len(s) == 7 && s[0] == '#' {
		if v, err := strconv.ParseUint(s[1:], 16, 32); err == nil {
			return color.RGBA{uint8(v >> 16), uint8(v >> 8), uint8(v), 0xff}
		}
	}
	return color.RGBA{A: 0xff}
}

// Image renders m with one pixel per cell.
func Image(m grid.Matrix) *image.RGBA {
	rows, cols := m.Dims()
	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for r, row := range m {
		for c, cell := range row {
			img.SetRGBA(c, r, RGBA(cell))
		}
	}
	return img
}

// EncodePNG validates m and returns its PNG encoding.
func EncodePNG(m grid.Matrix) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, Image(m)); err != nil {
		return nil, fmt.Errorf("PNG encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Exporter writes images under a root directory as <category>/<image>.png.
type Exporter struct {
	fsys fsutil.FileSystem
	dir  string
}

func NewExporter(fsys fsutil.FileSystem, dir string) *Exporter {
	return &Exporter{fsys: fsys, dir: dir}
}

// Path returns the file an image is written to. Slashes in names become
// underscores.
func (e *Exporter) Path(category, image string) (string, error) {
	p := filepath.Join(e.dir, pathSegment(category), pathSegment(image)+".png")
	if err := security.CheckWithinDir(e.dir, p); err != nil {
		return "", err
	}
	return p, nil
}

func pathSegment(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, `\`, "_")
	if s == "." || s == ".." || s == "" {
		return security.SafeName(s)
	}
	return s
}

// Export writes every image of every category. It carries on past failed
// images and returns the written paths with the joined errors.
func (e *Exporter) Export(categories []dataset.Category) ([]string, error) {
	if err := e.fsys.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	var (
		written []string
		errs    []error
	)
	for _, cat := range categories {
		for _, img := range cat.Images {
			p, err := e.write(cat.Name, img)
			if err != nil {
				errs = append(errs, fmt.Errorf("image %q in %q: %w", img.Name, cat.Name, err))
				continue
			}
			written = append(written, p)
		}
	}
	monitoring.Logf("export: wrote %d images to %s", len(written), e.dir)
	return written, errors.Join(errs...)
}

func (e *Exporter) write(category string, img dataset.Image) (string, error) {
	p, err := e.Path(category, img.Name)
	if err != nil {
		return "", err
	}
	data, err := EncodePNG(img.Grid)
	if err != nil {
		return "", err
	}
	if err := fsutil.WriteFileAtomic(e.fsys, p, data, 0o644); err != nil {
		return "", err
	}
	return p, nil
}
