package remotesync

import (
	"fmt"

	"github.com/banshee-data/pixelset/internal/dataset"
)

// Kind identifies a mutation pushed to the remote store.
type Kind int

const (
	KindCreateCategory Kind = iota
	KindDeleteCategory
	KindAddImage
	KindDeleteImage
	KindSaveWholeConfig
)

func (k Kind) String() string {
	switch k {
	case KindCreateCategory:
		return "create-category"
	case KindDeleteCategory:
		return "delete-category"
	case KindAddImage:
		return "add-image"
	case KindDeleteImage:
		return "delete-image"
	case KindSaveWholeConfig:
		return "save-whole-config"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Destructive kinds must reach the remote store before the local change is
// applied.
func (k Kind) Destructive() bool {
	return k == KindDeleteCategory || k == KindDeleteImage
}

// Mutation is one change to push. Only the fields relevant to Kind are set.
type Mutation struct {
	Kind       Kind
	Category   string
	Image      dataset.Image
	ImageName  string
	Categories []dataset.Category
}

// wholeConfigKey is the ordering lane of save-whole-config pushes. It cannot
// collide with a category name because those are never empty.
const wholeConfigKey = ""

// key is the entity whose mutations must reach the remote in issue order.
func (m Mutation) key() string {
	if m.Kind == KindSaveWholeConfig {
		return wholeConfigKey
	}
	return m.Category
}

func (m Mutation) String() string {
	switch m.Kind {
	case KindAddImage:
		return fmt.Sprintf("%s %q/%q", m.Kind, m.Category, m.Image.Name)
	case KindDeleteImage:
		return fmt.Sprintf("%s %q/%q", m.Kind, m.Category, m.ImageName)
	case KindSaveWholeConfig:
		return fmt.Sprintf("%s (%d categories)", m.Kind, len(m.Categories))
	default:
		return fmt.Sprintf("%s %q", m.Kind, m.Category)
	}
}

// CreateCategory announces a new empty category.
func CreateCategory(name string) Mutation {
	return Mutation{Kind: KindCreateCategory, Category: name}
}

// DeleteCategory removes a category remotely.
func DeleteCategory(name string) Mutation {
	return Mutation{Kind: KindDeleteCategory, Category: name}
}

// AddImage saves one image.
func AddImage(category string, img dataset.Image) Mutation {
	return Mutation{Kind: KindAddImage, Category: category, Image: img}
}

// DeleteImage removes one image by name.
func DeleteImage(category, name string) Mutation {
	return Mutation{Kind: KindDeleteImage, Category: category, ImageName: name}
}

// SaveWholeConfig uploads every category at once.
func SaveWholeConfig(categories []dataset.Category) Mutation {
	return Mutation{Kind: KindSaveWholeConfig, Categories: categories}
}
