package cache

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/banshee-data/pixelset/internal/dataset"
	"github.com/banshee-data/pixelset/internal/fsutil"
	"github.com/banshee-data/pixelset/internal/monitoring"
)

// FileName is the file a FileCache writes inside its directory.
const FileName = Key + ".json"

// FileCache stores the snapshot as one JSON file.
type FileCache struct {
	fs   fsutil.FileSystem
	path string
}

// NewFileCache returns a cache writing dir/categories.json through fsys.
func NewFileCache(fsys fsutil.FileSystem, dir string) *FileCache {
	return &FileCache{fs: fsys, path: filepath.Join(dir, FileName)}
}

// Path returns the cache file location.
func (c *FileCache) Path() string { return c.path }

func (c *FileCache) Save(snap dataset.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(c.fs, c.path, data, 0o644)
}

func (c *FileCache) Load() dataset.Snapshot {
	data, err := c.fs.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return dataset.Snapshot{}
	}
	if err != nil {
		monitoring.Logf("cache: reading %s: %v", c.path, err)
		return dataset.Snapshot{}
	}
	return decode(data, c.path)
}
