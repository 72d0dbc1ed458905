package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/google/uuid"

	"catalog_ingest/internal/domain"
)

type ItemStore interface {
	FindByExternalID(ctx context.Context, externalID string) (*domain.Item, error)
	Save(ctx context.Context, item *domain.Item) error
}

type CategoryStore interface {
	FindOrCreate(ctx context.Context, title string) (*domain.Category, error)
}

type SourceStore interface {
	FindByHandle(ctx context.Context, handle string) (*domain.Source, error)
	FindOrCreate(ctx context.Context, externalID, name string) (*domain.Source, error)
	Save(ctx context.Context, source *domain.Source) error
	LinkHandle(ctx context.Context, handle string, sourceID uuid.UUID) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// VideoSource is the quota-charging view of the external platform.
type VideoSource interface {
	ResolveSource(ctx context.Context, name string) (*domain.SourceMetadata, error)
	FetchVideosByQuery(ctx context.Context, query string, maxResults int) ([]domain.Video, error)
	FetchVideosForSource(ctx context.Context, channelID, pageToken, lastSeenID string) (*domain.VideoPage, error)
}

type QuotaGate interface {
	NearExhaustion() bool
}

type Publisher interface {
	Publish(ctx context.Context, item *domain.Item, isNew bool) error
	Close() error
}
