package grid

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResize_AlwaysBlank(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		rows, cols int
	}{
		{"small", Small, Small},
		{"medium", Medium, Medium},
		{"large", Large, Large},
		{"rectangular", 3, 7},
		{"single cell", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, err := New(Small, Small)
			require.NoError(t, err)
			_, err = g.Paint(0, 0, Red)
			require.NoError(t, err)
			_, err = g.Paint(Small-1, Small-1, Blue)
			require.NoError(t, err)

			require.NoError(t, g.Resize(tt.rows, tt.cols))

			snap := g.Snapshot()
			require.Len(t, snap, tt.rows)
			for r, row := range snap {
				require.Len(t, row, tt.cols, "row %d", r)
				for c, v := range row {
					assert.Equal(t, Blank, v, "cell (%d,%d)", r, c)
				}
			}
			assert.Equal(t, tt.rows*tt.cols, g.InputSize())
		})
	}
}

func TestResize_RejectsOutOfRange(t *testing.T) {
	t.Parallel()
	g, err := New(Small, Small)
	require.NoError(t, err)

	for _, dims := range [][2]int{{0, 4}, {4, 0}, {-1, 3}, {MaxSize + 1, 2}} {
		err := g.Resize(dims[0], dims[1])
		assert.ErrorIs(t, err, ErrInvalidDimensions, "dims %v", dims)
	}
	assert.Equal(t, Small, g.Rows())
	assert.Equal(t, Small, g.Cols())
}

func TestResize_NotifiesObservers(t *testing.T) {
	t.Parallel()
	g, err := New(Small, Small)
	require.NoError(t, err)

	var got []int
	g.OnResize(func(rows, cols int) { got = append(got, rows*cols) })

	require.NoError(t, g.Resize(Medium, Medium))
	g.Clear()

	assert.Equal(t, []int{256, 256}, got)
}

func TestPaint(t *testing.T) {
	t.Parallel()
	g, err := New(4, 4)
	require.NoError(t, err)

	changed, err := g.Paint(1, 2, Green)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = g.Paint(1, 2, Green)
	require.NoError(t, err)
	assert.False(t, changed, "repainting the same colour is a no-op")

	c, err := g.At(1, 2)
	require.NoError(t, err)
	assert.Equal(t, Green, c)

	_, err = g.Paint(4, 0, Green)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = g.Paint(0, -1, Green)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = g.Paint(0, 0, "")
	assert.ErrorIs(t, err, ErrInvalidColor)
}

func TestPaintWhileDragging(t *testing.T) {
	t.Parallel()
	g, err := New(4, 4)
	require.NoError(t, err)
	require.NoError(t, g.SetBrush(Violet))

	var p Pointer
	changed, err := g.PaintWhileDragging(&p, 0, 0)
	require.NoError(t, err)
	assert.False(t, changed, "pointer not held")

	p.Down()
	for col := 0; col < 4; col++ {
		_, err := g.PaintWhileDragging(&p, 2, col)
		require.NoError(t, err)
	}
	p.Up()
	_, err = g.PaintWhileDragging(&p, 3, 3)
	require.NoError(t, err)

	snap := g.Snapshot()
	assert.Equal(t, []Color{Violet, Violet, Violet, Violet}, snap[2])
	assert.Equal(t, Blank, snap[3][3])
	assert.Equal(t, Blank, snap[0][0])
}

func TestSnapshotRestore_NoAliasing(t *testing.T) {
	t.Parallel()
	g, err := New(Small, Small)
	require.NoError(t, err)
	_, _ = g.Paint(0, 0, Red)
	_, _ = g.Paint(3, 4, Indigo)

	snap := g.Snapshot()
	want := snap.Clone()

	_, _ = g.Paint(0, 0, Yellow)
	g.Clear()
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Errorf("snapshot changed after live edits (-want +got):\n%s", diff)
	}

	require.NoError(t, g.Restore(snap))
	if diff := cmp.Diff(want, g.Snapshot()); diff != "" {
		t.Errorf("restore mismatch (-want +got):\n%s", diff)
	}

	// editing the restored grid must not reach back into the source matrix
	_, _ = g.Paint(0, 0, Black)
	assert.Equal(t, Red, snap[0][0])
}

func TestRestore(t *testing.T) {
	t.Parallel()

	t.Run("nil blanks at current size", func(t *testing.T) {
		t.Parallel()
		g, err := New(5, 6)
		require.NoError(t, err)
		_, _ = g.Paint(1, 1, Gray)
		require.NoError(t, g.Restore(nil))
		assert.True(t, g.Snapshot().Equal(NewMatrix(5, 6)))
	})

	t.Run("ragged matrix rejected", func(t *testing.T) {
		t.Parallel()
		g, err := New(2, 2)
		require.NoError(t, err)
		_, _ = g.Paint(0, 0, Red)
		err = g.Restore(Matrix{{Red, Red}, {Red}})
		assert.ErrorIs(t, err, ErrInvalidDimensions)
		c, _ := g.At(0, 0)
		assert.Equal(t, Red, c, "failed restore leaves grid untouched")
	})

	t.Run("adopts new dimensions", func(t *testing.T) {
		t.Parallel()
		g, err := New(Small, Small)
		require.NoError(t, err)
		var notified bool
		g.OnResize(func(int, int) { notified = true })
		require.NoError(t, g.Restore(NewMatrix(2, 3)))
		assert.Equal(t, 2, g.Rows())
		assert.Equal(t, 3, g.Cols())
		assert.True(t, notified)
	})
}

func TestColor(t *testing.T) {
	t.Parallel()
	assert.True(t, Red.InPalette())
	assert.False(t, Color("#123456").InPalette())
	assert.True(t, Color("#123456").Valid())
	assert.False(t, Color("").Valid())
	assert.Len(t, Palette, 11)
}

func TestMatrixPainted(t *testing.T) {
	t.Parallel()
	m := NewMatrix(2, 2)
	m[1][0] = Black
	assert.Equal(t, [][]bool{{false, false}, {true, false}}, m.Painted())
}
