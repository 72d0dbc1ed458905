package domain

import (
	"time"

	"github.com/google/uuid"
)

// Source is an external channel tracked for ingestion. The cursor fields
// (LastFetchedItemID, TotalItems, IsFullyIndexed, BacklogPageToken) are
// persisted after every page.
type Source struct {
	ID                uuid.UUID `db:"id"`
	ExternalID        string    `db:"external_id"`
	Name              string    `db:"name"`
	Description       *string   `db:"description"`
	ThumbnailURL      *string   `db:"thumbnail_url"`
	InstagramURL      *string   `db:"instagram_url"`
	TwitterURL        *string   `db:"twitter_url"`
	FacebookURL       *string   `db:"facebook_url"`
	WebsiteURL        *string   `db:"website_url"`
	IsActive          bool      `db:"is_active"`
	LastFetchedAt     time.Time `db:"last_fetched_at"`
	CreatedAt         time.Time `db:"created_at"`
	LastFetchedItemID *string   `db:"last_fetched_item_id"`
	TotalItems        int       `db:"total_items"`
	IsFullyIndexed    bool      `db:"is_fully_indexed"`
	BacklogPageToken  *string   `db:"backlog_page_token"`
}

// IndexState reports where the source is in its backlog walk.
func (s *Source) IndexState() IndexState {
	switch {
	case s == nil:
		return IndexUnknown
	case s.IsFullyIndexed:
		return IndexFull
	case s.LastFetchedItemID != nil:
		return IndexPartial
	default:
		return IndexUnknown
	}
}

// ApplyMetadata copies resolved channel metadata onto the source.
func (s *Source) ApplyMetadata(meta *SourceMetadata) {
	s.Name = meta.Name
	s.Description = nonEmpty(meta.Description)
	s.ThumbnailURL = nonEmpty(meta.ThumbnailURL)
	s.InstagramURL = meta.Links.Instagram
	s.TwitterURL = meta.Links.Twitter
	s.FacebookURL = meta.Links.Facebook
	s.WebsiteURL = meta.Links.Website
}

type IndexState string

const (
	IndexUnknown IndexState = "unknown"
	IndexPartial IndexState = "partially_indexed"
	IndexFull    IndexState = "fully_indexed"
)

type Category struct {
	ID        uuid.UUID `db:"id"`
	Title     string    `db:"title"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Item is a stored video. ExternalID is the natural key for upserts.
type Item struct {
	ID          uuid.UUID  `db:"id"`
	ExternalID  string     `db:"external_id"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	UploadDate  time.Time  `db:"upload_date"`
	Length      int        `db:"length_seconds"`
	CategoryID  uuid.UUID  `db:"category_id"`
	SourceID    *uuid.UUID `db:"source_id"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
