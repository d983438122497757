package grid

import "fmt"

// Color is a cell colour token. Palette names are the common case but any
// non-empty token (for example "#ff8800") is accepted.
type Color string

// Palette colours.
const (
	Red        Color = "red"
	Orange     Color = "orange"
	Yellow     Color = "yellow"
	LightGreen Color = "lightgreen"
	Green      Color = "green"
	Blue       Color = "blue"
	Indigo     Color = "indigo"
	Violet     Color = "violet"
	Gray       Color = "gray"
	Black      Color = "black"
	White      Color = "white"

	// Blank is the colour of an unpainted cell.
	Blank = White
)

// Palette is the fixed swatch list, in display order.
var Palette = []Color{Red, Orange, Yellow, LightGreen, Green, Blue, Indigo, Violet, Gray, Black, White}

// Valid reports whether c can be stored in a cell.
func (c Color) Valid() bool { return c != "" }

// InPalette reports whether c is one of the fixed swatches.
func (c Color) InPalette() bool {
	for _, p := range Palette {
		if p == c {
			return true
		}
	}
	return false
}

// Matrix is a rectangular grid of colours, indexed [row][col].
type Matrix [][]Color

// NewMatrix returns a rows x cols matrix filled with Blank.
func NewMatrix(rows, cols int) Matrix {
	m := make(Matrix, rows)
	for r := range m {
		row := make([]Color, cols)
		for c := range row {
			row[c] = Blank
		}
		m[r] = row
	}
	return m
}

// Dims returns the row and column counts. Column count is taken from the
// first row; call Validate to make sure the matrix is rectangular.
func (m Matrix) Dims() (rows, cols int) {
	if len(m) == 0 {
		return 0, 0
	}
	return len(m), len(m[0])
}

// Validate checks that m is non-empty, rectangular and holds only valid colours.
func (m Matrix) Validate() error {
	rows, cols := m.Dims()
	if rows == 0 || cols == 0 {
		return fmt.Errorf("%w: empty matrix", ErrInvalidDimensions)
	}
	for r, row := range m {
		if len(row) != cols {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidDimensions, r, len(row), cols)
		}
		for c, v := range row {
			if !v.Valid() {
				return fmt.Errorf("%w at (%d,%d)", ErrInvalidColor, r, c)
			}
		}
	}
	return nil
}

// Clone returns a deep copy. Cloning nil yields nil.
func (m Matrix) Clone() Matrix {
	if m == nil {
		return nil
	}
	out := make(Matrix, len(m))
	for r, row := range m {
		out[r] = append([]Color(nil), row...)
	}
	return out
}

// Equal reports deep equality.
func (m Matrix) Equal(o Matrix) bool {
	if len(m) != len(o) {
		return false
	}
	for r := range m {
		if len(m[r]) != len(o[r]) {
			return false
		}
		for c := range m[r] {
			if m[r][c] != o[r][c] {
				return false
			}
		}
	}
	return true
}

// Painted reports, per cell, whether it differs from Blank.
func (m Matrix) Painted() [][]bool {
	out := make([][]bool, len(m))
	for r, row := range m {
		out[r] = make([]bool, len(row))
		for c, v := range row {
			out[r][c] = v != Blank
		}
	}
	return out
}
