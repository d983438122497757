// Package dataset keeps the named categories of saved pixel images and the
// selection set that picks which categories take part in a training run.
//
// The Store is plain state: it never talks to the network or to disk. The
// editor decides when a mutation is applied relative to the remote store.
package dataset

import (
	"fmt"

	"github.com/banshee-data/pixelset/internal/grid"
)

// Image is a named snapshot of a grid. Its matrix is never shared with the
// live grid or with other images.
type Image struct {
	Name string      `json:"name"`
	Grid grid.Matrix `json:"grid"`
}

// Category is a named, ordered collection of images.
type Category struct {
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

func (c *Category) clone() Category {
	out := Category{Name: c.Name, Images: make([]Image, len(c.Images))}
	for i, img := range c.Images {
		out.Images[i] = Image{Name: img.Name, Grid: img.Grid.Clone()}
	}
	return out
}

func (c *Category) indexOf(image string) int {
	for i, img := range c.Images {
		if img.Name == image {
			return i
		}
	}
	return -1
}

// Confirm is asked before a category that still holds images is deleted.
type Confirm func(category string, images int) bool

// Always confirms every prompt.
func Always(string, int) bool { return true }

// Store maps category names to categories, in creation order.
type Store struct {
	order      []string
	categories map[string]*Category
	selected   map[string]struct{}
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		categories: make(map[string]*Category),
		selected:   make(map[string]struct{}),
	}
}

// Len returns the number of categories.
func (s *Store) Len() int { return len(s.order) }

// Names returns category names in creation order.
func (s *Store) Names() []string {
	return append([]string(nil), s.order...)
}

// Has reports whether a category exists.
func (s *Store) Has(name string) bool {
	_, ok := s.categories[name]
	return ok
}

// Category returns a deep copy of one category.
func (s *Store) Category(name string) (Category, bool) {
	c, ok := s.categories[name]
	if !ok {
		return Category{}, false
	}
	return c.clone(), true
}

// Categories returns deep copies of every category in creation order.
func (s *Store) Categories() []Category {
	out := make([]Category, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.categories[name].clone())
	}
	return out
}

// CreateCategory inserts an empty category. Empty and taken names are both
// rejected as duplicates. Creation does not select the category.
func (s *Store) CreateCategory(name string) error {
	if name == "" {
		return fmt.Errorf("%w: category name is empty", ErrDuplicateName)
	}
	if s.Has(name) {
		return fmt.Errorf("%w: category %q already exists", ErrDuplicateName, name)
	}
	s.categories[name] = &Category{Name: name, Images: []Image{}}
	s.order = append(s.order, name)
	return nil
}

// RenameCategory moves a category to a new name, keeping its images, its
// position and its selection state.
func (s *Store) RenameCategory(oldName, newName string) error {
	c, ok := s.categories[oldName]
	if !ok {
		return fmt.Errorf("%w: category %q", ErrNotFound, oldName)
	}
	if newName == "" || s.Has(newName) {
		return fmt.Errorf("%w: category %q", ErrDuplicateName, newName)
	}
	c.Name = newName
	delete(s.categories, oldName)
	s.categories[newName] = c
	for i, name := range s.order {
		if name == oldName {
			s.order[i] = newName
			break
		}
	}
	if _, sel := s.selected[oldName]; sel {
		delete(s.selected, oldName)
		s.selected[newName] = struct{}{}
	}
	return nil
}

// CheckDelete validates a category deletion without applying it. A category
// holding images needs confirm to return true.
func (s *Store) CheckDelete(name string, confirm Confirm) error {
	c, ok := s.categories[name]
	if !ok {
		return fmt.Errorf("%w: category %q", ErrNotFound, name)
	}
	if n := len(c.Images); n > 0 && (confirm == nil || !confirm(name, n)) {
		return fmt.Errorf("%w: category %q holds %d images", ErrConfirmationRequired, name, n)
	}
	return nil
}

// RemoveCategory drops a category and its selection membership. Callers
// validate with CheckDelete first.
func (s *Store) RemoveCategory(name string) error {
	if !s.Has(name) {
		return fmt.Errorf("%w: category %q", ErrNotFound, name)
	}
	s.remove(name)
	return nil
}

// DeleteCategory is CheckDelete followed by RemoveCategory, for callers with
// no remote side to wait for.
func (s *Store) DeleteCategory(name string, confirm Confirm) error {
	if err := s.CheckDelete(name, confirm); err != nil {
		return err
	}
	s.remove(name)
	return nil
}

func (s *Store) remove(name string) {
	delete(s.categories, name)
	delete(s.selected, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// CheckAddImage validates an AddImage call without applying it.
func (s *Store) CheckAddImage(category, name string, m grid.Matrix) error {
	c, ok := s.categories[category]
	if !ok {
		return fmt.Errorf("%w: category %q", ErrNotFound, category)
	}
	if name == "" {
		return fmt.Errorf("%w: image name is empty", ErrValidationFailed)
	}
	if c.indexOf(name) >= 0 {
		return fmt.Errorf("%w: image %q already in %q", ErrDuplicateName, name, category)
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return nil
}

// AddImage appends a copy of m to the category under the given name. Image
// names are unique within a category only.
func (s *Store) AddImage(category, name string, m grid.Matrix) error {
	if err := s.CheckAddImage(category, name, m); err != nil {
		return err
	}
	c := s.categories[category]
	c.Images = append(c.Images, Image{Name: name, Grid: m.Clone()})
	return nil
}

// Image returns a deep copy of the image at index.
func (s *Store) Image(category string, index int) (Image, error) {
	c, ok := s.categories[category]
	if !ok {
		return Image{}, fmt.Errorf("%w: category %q", ErrNotFound, category)
	}
	if index < 0 || index >= len(c.Images) {
		return Image{}, fmt.Errorf("%w: image %d in %q (%d images)", ErrIndexOutOfRange, index, category, len(c.Images))
	}
	img := c.Images[index]
	return Image{Name: img.Name, Grid: img.Grid.Clone()}, nil
}

// LoadImage returns a copy of an image's matrix, ready for grid.Restore.
func (s *Store) LoadImage(category string, index int) (grid.Matrix, error) {
	img, err := s.Image(category, index)
	if err != nil {
		return nil, err
	}
	return img.Grid, nil
}

// DeleteImage removes the image at index, keeping the order of the rest.
func (s *Store) DeleteImage(category string, index int) error {
	if _, err := s.Image(category, index); err != nil {
		return err
	}
	c := s.categories[category]
	c.Images = append(c.Images[:index], c.Images[index+1:]...)
	return nil
}

// ToggleSelection flips selection membership and returns the new state.
// Unknown categories are ignored.
func (s *Store) ToggleSelection(name string) bool {
	if !s.Has(name) {
		return false
	}
	if _, ok := s.selected[name]; ok {
		delete(s.selected, name)
		return false
	}
	s.selected[name] = struct{}{}
	return true
}

// IsSelected reports selection membership.
func (s *Store) IsSelected(name string) bool {
	_, ok := s.selected[name]
	return ok
}

// Selected returns the selected names in creation order.
func (s *Store) Selected() []string {
	out := make([]string, 0, len(s.selected))
	for _, name := range s.order {
		if _, ok := s.selected[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Prune drops every local category missing from remote and, inside shared
// categories, every image whose name the remote side does not list. Nothing
// is added or overwritten. It reports whether the store changed.
func (s *Store) Prune(remote map[string][]string) bool {
	changed := false
	for _, name := range s.Names() {
		imageNames, ok := remote[name]
		if !ok {
			s.remove(name)
			changed = true
			continue
		}
		keep := make(map[string]struct{}, len(imageNames))
		for _, n := range imageNames {
			keep[n] = struct{}{}
		}
		c := s.categories[name]
		kept := c.Images[:0]
		for _, img := range c.Images {
			if _, ok := keep[img.Name]; ok {
				kept = append(kept, img)
			}
		}
		if len(kept) != len(c.Images) {
			changed = true
			// zero the tail so dropped matrices are collectable
			for i := len(kept); i < len(c.Images); i++ {
				c.Images[i] = Image{}
			}
			c.Images = kept
		}
	}
	return changed
}

// Clone returns a deep copy of the store.
func (s *Store) Clone() *Store {
	return FromSnapshot(s.Snapshot())
}
