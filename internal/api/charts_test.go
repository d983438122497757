package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/pixelset/internal/db"
	"github.com/banshee-data/pixelset/internal/grid"
	"github.com/banshee-data/pixelset/internal/testutil"
)

func TestOccupancy(t *testing.T) {
	images := []db.Image{
		{Name: "left", Data: `[["red","white"],["red","white"]]`},
		{Name: "top", Data: `[["blue","blue"],["white","white"]]`},
		{Name: "broken", Data: `[[`},
		{Name: "wrong size", Data: `[["red"]]`},
	}
	occ, used, err := Occupancy(images)
	require.NoError(t, err)
	assert.Equal(t, 2, used)

	want := mat.NewDense(2, 2, []float64{
		1, 0.5,
		0.5, 0,
	})
	assert.True(t, mat.Equal(want, occ), "got %v", mat.Formatted(occ))

	_, _, err = Occupancy([]db.Image{{Name: "broken", Data: "x"}})
	assert.Error(t, err)
}

func TestDebugCharts(t *testing.T) {
	s, database := newTestServer(t, Options{})
	ctx := context.Background()
	require.NoError(t, database.SaveImage(ctx, "Shapes", "a", testutil.GridData(t, 3, 3, grid.Black)))
	require.NoError(t, database.SaveImage(ctx, "Shapes", "b", testutil.GridData(t, 3, 3, grid.White)))
	require.NoError(t, database.SaveCategories(ctx, []db.Category{{Name: "Empty"}}))

	mux := http.NewServeMux()
	s.AttachDebugRoutes(mux)

	tests := []struct {
		path     string
		want     int
		contains string
	}{
		{"/debug/dataset", http.StatusOK, "Shapes"},
		{"/debug/occupancy?category=Shapes", http.StatusOK, "2 of 2 images, 3x3"},
		{"/debug/occupancy", http.StatusBadRequest, "category"},
		{"/debug/occupancy?category=Missing", http.StatusNotFound, "not found"},
		{"/debug/occupancy?category=Empty", http.StatusNotFound, "no decodable images"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := testutil.NewTestRecorder()
			mux.ServeHTTP(rec, testutil.NewTestRequest(http.MethodGet, tt.path))
			testutil.AssertStatusCode(t, rec.Code, tt.want)
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}
