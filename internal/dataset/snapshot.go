package dataset

import "github.com/banshee-data/pixelset/internal/monitoring"

// Snapshot is the serialisable form of a Store, as written to the local cache.
type Snapshot struct {
	Categories []Category `json:"categories"`
	Selected   []string   `json:"selected,omitempty"`
}

// Snapshot returns a deep copy of the store contents.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Categories: s.Categories(),
		Selected:   s.Selected(),
	}
}

// FromSnapshot rebuilds a store. Entries that would break the store rules
// (duplicate names, ragged grids, selections of unknown categories) are
// skipped and logged, so a damaged cache still hydrates what it can.
func FromSnapshot(snap Snapshot) *Store {
	s := NewStore()
	for _, c := range snap.Categories {
		if err := s.CreateCategory(c.Name); err != nil {
			monitoring.Logf("dataset: skipping cached category: %v", err)
			continue
		}
		for _, img := range c.Images {
			if err := s.AddImage(c.Name, img.Name, img.Grid); err != nil {
				monitoring.Logf("dataset: skipping cached image: %v", err)
			}
		}
	}
	for _, name := range snap.Selected {
		if s.Has(name) && !s.IsSelected(name) {
			s.ToggleSelection(name)
		}
	}
	return s
}

// Empty reports whether the snapshot holds no categories.
func (snap Snapshot) Empty() bool { return len(snap.Categories) == 0 }
