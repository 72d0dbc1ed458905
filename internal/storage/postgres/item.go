package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"catalog_ingest/internal/domain"
)

const itemColumns = `id, external_id, title, description, upload_date, length_seconds,
	category_id, source_id, created_at, updated_at`

type ItemStore struct {
	db *sqlx.DB
}

func NewItemStore(db *sqlx.DB) *ItemStore {
	return &ItemStore{db: db}
}

// FindByExternalID returns nil without error when no item has the id.
func (s *ItemStore) FindByExternalID(ctx context.Context, externalID string) (*domain.Item, error) {
	var item domain.Item
	query := `SELECT ` + itemColumns + ` FROM items WHERE external_id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &item, query, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Save inserts the item or overwrites the mutable fields of the row with the
// same external id. ID and timestamps are refreshed from the stored row.
func (s *ItemStore) Save(ctx context.Context, item *domain.Item) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}

	query := `
		INSERT INTO items (
			id, external_id, title, description, upload_date, length_seconds, category_id, source_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
		ON CONFLICT (external_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			upload_date = EXCLUDED.upload_date,
			length_seconds = EXCLUDED.length_seconds,
			category_id = EXCLUDED.category_id,
			source_id = EXCLUDED.source_id,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	return GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		item.ID,
		item.ExternalID,
		item.Title,
		item.Description,
		item.UploadDate,
		item.Length,
		item.CategoryID,
		item.SourceID,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
}
