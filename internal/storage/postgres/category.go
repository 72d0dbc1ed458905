package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"catalog_ingest/internal/domain"
)

type CategoryStore struct {
	db *sqlx.DB
}

func NewCategoryStore(db *sqlx.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

func (s *CategoryStore) FindOrCreate(ctx context.Context, title string) (*domain.Category, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	query := `
		INSERT INTO categories (id, title) VALUES ($1, $2)
		ON CONFLICT (title) DO UPDATE SET title = EXCLUDED.title
		RETURNING id, title, created_at, updated_at`

	var category domain.Category
	if err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &category, query, uuid.New(), title); err != nil {
		return nil, err
	}
	return &category, nil
}
