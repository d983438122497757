package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Model records one training request.
type Model struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Accuracy   float64 `json:"accuracy"`
	Loss       float64 `json:"loss"`
	Status     string  `json:"status"`
	InputSize  int     `json:"input_size"`
	OutputSize int     `json:"output_size"`
	Config     string  `json:"config"`
	CreatedAt  int64   `json:"created_at"`
}

// InsertModel stores m under a fresh id, which is written back to m.
func (db *DB) InsertModel(ctx context.Context, m *Model) error {
	m.ID = uuid.NewString()
	m.CreatedAt = db.now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO models (id, name, accuracy, loss, status, input_size, output_size, config, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Name, m.Accuracy, m.Loss, m.Status, m.InputSize, m.OutputSize, m.Config, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert model: %w", err)
	}
	return nil
}

// ListModels returns models newest first.
func (db *DB) ListModels(ctx context.Context) ([]Model, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, accuracy, loss, status, input_size, output_size, config, created_at
		FROM models ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	out := []Model{}
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LatestModel returns the most recently trained model.
func (db *DB) LatestModel(ctx context.Context) (Model, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, name, accuracy, loss, status, input_size, output_size, config, created_at
		FROM models ORDER BY created_at DESC, rowid DESC LIMIT 1
	`)
	m, err := scanModel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Model{}, fmt.Errorf("model: %w", ErrNotFound)
	}
	return m, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanModel(s scanner) (Model, error) {
	var m Model
	err := s.Scan(&m.ID, &m.Name, &m.Accuracy, &m.Loss, &m.Status, &m.InputSize, &m.OutputSize, &m.Config, &m.CreatedAt)
	return m, err
}
