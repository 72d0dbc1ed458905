package domain

import "time"

// Video is a normalized record fetched from the video platform.
type Video struct {
	ExternalID   string    `json:"external_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	UploadedAt   time.Time `json:"uploaded_at"`
	Length       int       `json:"length"`
	ThumbnailURL string    `json:"thumbnail_url"`
}

// VideoPage is one page of a channel's catalog, newest first.
type VideoPage struct {
	Videos        []Video
	NextPageToken string
	TotalResults  int
	// NewestID is the first id returned by the search, before filtering or truncation.
	NewestID string
	// ReachedCursor is set when the page contained the last seen id.
	ReachedCursor bool
}

type SocialLinks struct {
	Instagram *string
	Twitter   *string
	Facebook  *string
	Website   *string
}

type SourceMetadata struct {
	ExternalID   string
	Name         string
	Description  string
	ThumbnailURL string
	Links        SocialLinks
}
