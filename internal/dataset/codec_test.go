package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pixelset/internal/grid"
)

func TestEncodeDecodeGrid(t *testing.T) {
	t.Parallel()
	m := grid.NewMatrix(2, 3)
	m[1][2] = grid.Red

	data, err := EncodeGrid(m)
	require.NoError(t, err)
	assert.JSONEq(t, `[["white","white","white"],["white","white","red"]]`, data)

	got, err := DecodeGrid(data)
	require.NoError(t, err)
	assert.True(t, m.Equal(got))
}

func TestDecodeGrid_ImageObjectForm(t *testing.T) {
	t.Parallel()
	got, err := DecodeGrid(` {"name":"Square","grid":[["black","white"]]}`)
	require.NoError(t, err)
	assert.Equal(t, grid.Matrix{{grid.Black, grid.White}}, got)
}

func TestDecodeGrid_Invalid(t *testing.T) {
	t.Parallel()
	for _, data := range []string{"", "nope", "[]", `[["red"],[]]`, `{"grid":[]}`} {
		_, err := DecodeGrid(data)
		assert.ErrorIs(t, err, ErrValidationFailed, "data %q", data)
	}

	_, err := EncodeGrid(grid.Matrix{})
	assert.ErrorIs(t, err, ErrValidationFailed)
}
