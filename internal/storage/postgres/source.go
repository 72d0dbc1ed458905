package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"catalog_ingest/internal/domain"
)

const sourceColumns = `id, external_id, name, description, thumbnail_url,
	instagram_url, twitter_url, facebook_url, website_url, is_active, last_fetched_at,
	created_at, last_fetched_item_id, total_items, is_fully_indexed, backlog_page_token`

const joinedSourceColumns = `s.id, s.external_id, s.name, s.description, s.thumbnail_url,
	s.instagram_url, s.twitter_url, s.facebook_url, s.website_url, s.is_active, s.last_fetched_at,
	s.created_at, s.last_fetched_item_id, s.total_items, s.is_fully_indexed, s.backlog_page_token`

type SourceStore struct {
	db *sqlx.DB
}

func NewSourceStore(db *sqlx.DB) *SourceStore {
	return &SourceStore{db: db}
}

// FindByHandle returns nil without error for an unknown handle.
func (s *SourceStore) FindByHandle(ctx context.Context, handle string) (*domain.Source, error) {
	var source domain.Source
	query := `SELECT ` + joinedSourceColumns + `
		FROM sources s
		JOIN source_handles h ON h.source_id = s.id
		WHERE h.handle = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &source, query, handle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &source, nil
}

func (s *SourceStore) FindOrCreate(ctx context.Context, externalID, name string) (*domain.Source, error) {
	query := `
		INSERT INTO sources (id, external_id, name) VALUES ($1, $2, $3)
		ON CONFLICT (external_id) DO UPDATE SET external_id = EXCLUDED.external_id
		RETURNING ` + sourceColumns

	var source domain.Source
	if err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &source, query, uuid.New(), externalID, name); err != nil {
		return nil, err
	}
	return &source, nil
}

// LinkHandle maps a handle to a source. An existing link is left untouched,
// so any number of handles can point at the same channel.
func (s *SourceStore) LinkHandle(ctx context.Context, handle string, sourceID uuid.UUID) error {
	query := `
		INSERT INTO source_handles (handle, source_id) VALUES ($1, $2)
		ON CONFLICT (handle) DO NOTHING`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, handle, sourceID)
	return err
}

// Save persists metadata and cursor state. is_fully_indexed can only be set
// here, never cleared; see ResetIndex.
func (s *SourceStore) Save(ctx context.Context, source *domain.Source) error {
	query := `
		UPDATE sources SET
			name = $2,
			description = $3,
			thumbnail_url = $4,
			instagram_url = $5,
			twitter_url = $6,
			facebook_url = $7,
			website_url = $8,
			is_active = $9,
			last_fetched_at = $10,
			last_fetched_item_id = $11,
			total_items = $12,
			is_fully_indexed = sources.is_fully_indexed OR $13,
			backlog_page_token = $14
		WHERE id = $1`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		source.ID,
		source.Name,
		source.Description,
		source.ThumbnailURL,
		source.InstagramURL,
		source.TwitterURL,
		source.FacebookURL,
		source.WebsiteURL,
		source.IsActive,
		source.LastFetchedAt,
		source.LastFetchedItemID,
		source.TotalItems,
		source.IsFullyIndexed,
		source.BacklogPageToken,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: id %s", domain.ErrSourceNotFound, source.ID)
	}
	return nil
}

// ResetIndex clears the cursor so the next run walks the whole backlog again.
func (s *SourceStore) ResetIndex(ctx context.Context, handle string) error {
	query := `
		UPDATE sources SET
			is_fully_indexed = FALSE,
			last_fetched_item_id = NULL,
			total_items = 0,
			backlog_page_token = NULL
		WHERE id = (SELECT source_id FROM source_handles WHERE handle = $1)`

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, handle)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: handle %q", domain.ErrSourceNotFound, handle)
	}
	return nil
}
