package cache

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pixelset/internal/dataset"
	"github.com/banshee-data/pixelset/internal/fsutil"
	"github.com/banshee-data/pixelset/internal/grid"
	"github.com/banshee-data/pixelset/internal/monitoring"
)

func sampleSnapshot() dataset.Snapshot {
	m := grid.NewMatrix(2, 3)
	m[0][2] = grid.Blue
	return dataset.Snapshot{
		Categories: []dataset.Category{
			{Name: "Shapes", Images: []dataset.Image{{Name: "Square", Grid: m}}},
			{Name: "Digits", Images: []dataset.Image{}},
		},
		Selected: []string{"Digits"},
	}
}

func muteLogs(t *testing.T) *int {
	t.Helper()
	prev := monitoring.Logf
	n := new(int)
	monitoring.SetLogger(func(string, ...interface{}) { *n++ })
	t.Cleanup(func() { monitoring.SetLogger(prev) })
	return n
}

func caches(t *testing.T) map[string]Cache {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })

	return map[string]Cache{
		"memory":   NewMemoryCache(),
		"file/mem": NewFileCache(fsutil.NewMemoryFileSystem(), "/state"),
		"file/os":  NewFileCache(fsutil.OSFileSystem{}, t.TempDir()),
		"sqlite":   sq,
	}
}

func TestCache_EmptyLoad(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			snap := c.Load()
			assert.True(t, snap.Empty())
			assert.Equal(t, 0, dataset.FromSnapshot(snap).Len())
		})
	}
}

func TestCache_SaveLoadOverwrites(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleSnapshot()
			require.NoError(t, c.Save(dataset.Snapshot{Categories: []dataset.Category{{Name: "old"}}}))
			require.NoError(t, c.Save(want))

			got := c.Load()
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCache_SaveEmptyStore(t *testing.T) {
	c := NewMemoryCache()
	require.NoError(t, c.Save(dataset.NewStore().Snapshot()))
	assert.True(t, c.Load().Empty())
	assert.Equal(t, 1, c.Saves())
}

func TestFileCache_CorruptIsEmpty(t *testing.T) {
	logged := muteLogs(t)
	mfs := fsutil.NewMemoryFileSystem()
	c := NewFileCache(mfs, "/state")
	require.NoError(t, mfs.WriteFile(c.Path(), []byte("{not json"), 0o644))

	assert.True(t, c.Load().Empty())
	assert.Equal(t, 1, *logged)
}

func TestFileCache_WriteFailure(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	mfs.FailWrites = errors.New("read-only")
	c := NewFileCache(mfs, "/state")
	assert.Error(t, c.Save(sampleSnapshot()))
	assert.True(t, c.Load().Empty())
}

func TestDecode_LegacyMap(t *testing.T) {
	blob := `{"B": [{"name": "b1", "grid": [["red"]]}], "A": []}`
	snap := decode([]byte(blob), "test")
	require.Len(t, snap.Categories, 2)
	assert.Equal(t, "A", snap.Categories[0].Name)
	assert.Equal(t, "B", snap.Categories[1].Name)
	assert.Equal(t, grid.Matrix{{grid.Red}}, snap.Categories[1].Images[0].Grid)
}

func TestDecode_Garbage(t *testing.T) {
	logged := muteLogs(t)
	assert.True(t, decode([]byte("[1,2,3]"), "test").Empty())
	assert.True(t, decode([]byte("   "), "test").Empty())
	assert.Equal(t, 1, *logged)
}

func TestSQLiteCache_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, c.Save(sampleSnapshot()))
	require.NoError(t, c.Close())

	c, err = OpenSQLite(path)
	require.NoError(t, err)
	defer c.Close()
	got := c.Load()
	require.Len(t, got.Categories, 2)
	assert.Equal(t, []string{"Digits"}, got.Selected)
}
