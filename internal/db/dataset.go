package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Image is a stored image. Data is the encoded grid as sent by clients.
type Image struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Data      string `json:"data"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Category is a stored category with its images in insertion order.
type Category struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Images    []Image `json:"images"`
	CreatedAt int64   `json:"created_at"`
}

// CategoryCount is one bar of the dataset chart.
type CategoryCount struct {
	Name   string
	Images int
}

// ListCategories returns every category with its images, both in insertion
// order.
func (db *DB) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.id, c.name, c.created_at, i.id, i.name, i.data, i.created_at, i.updated_at
		FROM categories c
		LEFT JOIN images i ON i.category_id = c.id
		ORDER BY c.id, i.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var (
			catID, catCreated         int64
			catName                   string
			imgID, imgCreated, imgUpd sql.NullInt64
			imgName, imgData          sql.NullString
		)
		if err := rows.Scan(&catID, &catName, &catCreated, &imgID, &imgName, &imgData, &imgCreated, &imgUpd); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].ID != catID {
			out = append(out, Category{ID: catID, Name: catName, CreatedAt: catCreated, Images: []Image{}})
		}
		if imgID.Valid {
			cat := &out[len(out)-1]
			cat.Images = append(cat.Images, Image{
				ID:        imgID.Int64,
				Name:      imgName.String,
				Data:      imgData.String,
				CreatedAt: imgCreated.Int64,
				UpdatedAt: imgUpd.Int64,
			})
		}
	}
	return out, rows.Err()
}

// CategoryCounts returns the number of images per category.
func (db *DB) CategoryCounts(ctx context.Context) ([]CategoryCount, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.name, COUNT(i.id)
		FROM categories c
		LEFT JOIN images i ON i.category_id = c.id
		GROUP BY c.id
		ORDER BY c.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count images: %w", err)
	}
	defer rows.Close()

	var out []CategoryCount
	for rows.Next() {
		var cc CategoryCount
		if err := rows.Scan(&cc.Name, &cc.Images); err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

// CategoryImages returns the encoded images of one category.
func (db *DB) CategoryImages(ctx context.Context, category string) ([]Image, error) {
	id, err := categoryID(ctx, db.DB, category)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, data, created_at, updated_at FROM images WHERE category_id = ? ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	out := []Image{}
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.Name, &img.Data, &img.CreatedAt, &img.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

// DeleteCategory removes a category and, by cascade, its images.
func (db *DB) DeleteCategory(ctx context.Context, name string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM categories WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category %q: %w", name, ErrNotFound)
	}
	return nil
}

// DeleteImage removes one image by name.
func (db *DB) DeleteImage(ctx context.Context, category, name string) error {
	id, err := categoryID(ctx, db.DB, category)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM images WHERE category_id = ? AND name = ?`, id, name)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("image %q in %q: %w", name, category, ErrNotFound)
	}
	return nil
}

// SaveImage creates the category if needed and inserts or replaces the
// image. A replaced image keeps its position.
func (db *DB) SaveImage(ctx context.Context, category, name, data string) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		id, err := db.ensureCategory(ctx, tx, category)
		if err != nil {
			return err
		}
		return db.upsertImage(ctx, tx, id, name, data)
	})
}

// SaveCategories upserts every category and image in one transaction.
// Nothing absent from the request is deleted.
func (db *DB) SaveCategories(ctx context.Context, categories []Category) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		for _, c := range categories {
			id, err := db.ensureCategory(ctx, tx, c.Name)
			if err != nil {
				return err
			}
			for _, img := range c.Images {
				if err := db.upsertImage(ctx, tx, id, img.Name, img.Data); err != nil {
					return fmt.Errorf("category %q: %w", c.Name, err)
				}
			}
		}
		return nil
	})
}

func (db *DB) ensureCategory(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO categories (name, created_at) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, db.now()); err != nil {
		return 0, fmt.Errorf("failed to create category %q: %w", name, err)
	}
	return categoryID(ctx, tx, name)
}

func (db *DB) upsertImage(ctx context.Context, tx *sql.Tx, categoryID int64, name, data string) error {
	now := db.now()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO images (category_id, name, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(category_id, name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, categoryID, name, data, now, now)
	if err != nil {
		return fmt.Errorf("failed to save image %q: %w", name, err)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func categoryID(ctx context.Context, q queryer, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("category %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up category %q: %w", name, err)
	}
	return id, nil
}

func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
