// Package grid holds the editable pixel matrix behind the drawing surface.
//
// A Grid owns exactly one Matrix. Callers only ever receive deep copies of it
// (Snapshot) and hand deep copies back (Restore), so a stored image can never
// observe later paint strokes.
package grid

import (
	"errors"
	"fmt"
)

// Size tiers offered by the editor toolbar.
const (
	Small  = 8
	Medium = 16
	Large  = 32

	// MaxSize bounds both dimensions.
	MaxSize = Large
)

var (
	// ErrInvalidDimensions is returned for empty, ragged or oversized matrices.
	ErrInvalidDimensions = errors.New("invalid grid dimensions")
	// ErrOutOfBounds is returned when a cell coordinate lies outside the grid.
	ErrOutOfBounds = errors.New("cell out of bounds")
	// ErrInvalidColor is returned for an empty colour token.
	ErrInvalidColor = errors.New("invalid color")
)

// Grid is the live drawing surface.
type Grid struct {
	cells Matrix
	rows  int
	cols  int
	brush Color

	onResize []func(rows, cols int)
}

// New returns a blank grid of the given size with a black brush.
func New(rows, cols int) (*Grid, error) {
	if err := checkDimensions(rows, cols); err != nil {
		return nil, err
	}
	return &Grid{
		cells: NewMatrix(rows, cols),
		rows:  rows,
		cols:  cols,
		brush: Black,
	}, nil
}

// OnResize registers fn to run after every Resize or dimension-changing
// Restore. The network input layer is recomputed this way.
func (g *Grid) OnResize(fn func(rows, cols int)) {
	g.onResize = append(g.onResize, fn)
}

// Rows returns the current row count.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the current column count.
func (g *Grid) Cols() int { return g.cols }

// InputSize is the number of cells, i.e. the width of the network input layer.
func (g *Grid) InputSize() int { return g.rows * g.cols }

// Resize replaces the matrix with a blank one of the new dimensions. Existing
// content is discarded, never resampled.
func (g *Grid) Resize(rows, cols int) error {
	if err := checkDimensions(rows, cols); err != nil {
		return err
	}
	g.cells = NewMatrix(rows, cols)
	g.rows, g.cols = rows, cols
	g.notifyResize()
	return nil
}

// Clear blanks every cell while keeping the dimensions.
func (g *Grid) Clear() {
	// current dimensions are always valid
	_ = g.Resize(g.rows, g.cols)
}

// Brush returns the colour used by PaintWhileDragging.
func (g *Grid) Brush() Color { return g.brush }

// SetBrush selects the colour applied by subsequent drag strokes.
func (g *Grid) SetBrush(c Color) error {
	if !c.Valid() {
		return ErrInvalidColor
	}
	g.brush = c
	return nil
}

// At returns the colour of one cell.
func (g *Grid) At(row, col int) (Color, error) {
	if !g.inBounds(row, col) {
		return "", fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfBounds, row, col, g.rows, g.cols)
	}
	return g.cells[row][col], nil
}

// Paint sets a single cell. It reports whether the cell actually changed, so
// repainting with the same colour is a no-op.
func (g *Grid) Paint(row, col int, c Color) (bool, error) {
	if !c.Valid() {
		return false, ErrInvalidColor
	}
	if !g.inBounds(row, col) {
		return false, fmt.Errorf("%w: (%d,%d) in %dx%d", ErrOutOfBounds, row, col, g.rows, g.cols)
	}
	if g.cells[row][col] == c {
		return false, nil
	}
	g.cells[row][col] = c
	return true, nil
}

// PaintWhileDragging paints the cell under the pointer with the brush colour,
// but only while the pointer is held. The pointer state is owned by the caller.
func (g *Grid) PaintWhileDragging(p *Pointer, row, col int) (bool, error) {
	if p == nil || !p.Held() {
		return false, nil
	}
	return g.Paint(row, col, g.brush)
}

// Snapshot returns a deep copy of the live matrix.
func (g *Grid) Snapshot() Matrix {
	return g.cells.Clone()
}

// Restore replaces the live matrix with a copy of m. A nil matrix blanks the
// grid at its current dimensions.
func (g *Grid) Restore(m Matrix) error {
	if m == nil {
		g.cells = NewMatrix(g.rows, g.cols)
		return nil
	}
	if err := m.Validate(); err != nil {
		return err
	}
	rows, cols := m.Dims()
	if err := checkDimensions(rows, cols); err != nil {
		return err
	}
	resized := rows != g.rows || cols != g.cols
	g.cells = m.Clone()
	g.rows, g.cols = rows, cols
	if resized {
		g.notifyResize()
	}
	return nil
}

func (g *Grid) inBounds(row, col int) bool {
	return row >= 0 && row < g.rows && col >= 0 && col < g.cols
}

func (g *Grid) notifyResize() {
	for _, fn := range g.onResize {
		fn(g.rows, g.cols)
	}
}

func checkDimensions(rows, cols int) error {
	if rows < 1 || cols < 1 || rows > MaxSize || cols > MaxSize {
		return fmt.Errorf("%w: %dx%d (allowed 1..%d)", ErrInvalidDimensions, rows, cols, MaxSize)
	}
	return nil
}
