package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"catalog_ingest/internal/domain"
)

// MaxPageSize is the largest page search.list returns.
const MaxPageSize = 50

const reasonInvalidPageToken = "invalidPageToken"

// Reserver is satisfied by quota.Governor.
type Reserver interface {
	Reserve(units int) error
}

type api interface {
	Search(ctx context.Context, p SearchParams) (*SearchResponse, error)
	Videos(ctx context.Context, ids []string) (*VideoListResponse, error)
	Channels(ctx context.Context, ids []string) (*ChannelListResponse, error)
}

// Config holds quota costs and the video length filter.
type Config struct {
	SearchCost     int
	DetailCost     int
	MinVideoLength time.Duration
}

// Source fetches channel metadata and videos, charging the quota before each
// call sequence.
type Source struct {
	api        api
	quota      Reserver
	searchCost int
	detailCost int
	minLength  int
	logger     *slog.Logger
}

func New(client *Client, quota Reserver, cfg Config, logger *slog.Logger) *Source {
	return &Source{
		api:        client,
		quota:      quota,
		searchCost: cfg.SearchCost,
		detailCost: cfg.DetailCost,
		minLength:  int(cfg.MinVideoLength / time.Second),
		logger:     logger.With("source", "youtube"),
	}
}

// ResolveSource turns a human-readable channel name into its metadata.
func (s *Source) ResolveSource(ctx context.Context, name string) (*domain.SourceMetadata, error) {
	if err := s.quota.Reserve(s.searchCost + s.detailCost); err != nil {
		return nil, err
	}

	search, err := s.api.Search(ctx, SearchParams{
		Query:      name,
		Type:       "channel",
		MaxResults: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("search channel %q: %w", name, err)
	}
	if len(search.Items) == 0 || search.Items[0].ID.ChannelID == "" {
		return nil, fmt.Errorf("%w: channel %q", domain.ErrSourceNotFound, name)
	}

	channelID := search.Items[0].ID.ChannelID
	channels, err := s.api.Channels(ctx, []string{channelID})
	if err != nil {
		return nil, fmt.Errorf("channel details %q: %w", channelID, err)
	}
	if len(channels.Items) == 0 {
		return nil, fmt.Errorf("%w: channel %q details", domain.ErrSourceNotFound, name)
	}

	ch := channels.Items[0]
	meta := &domain.SourceMetadata{
		ExternalID:  ch.ID,
		Name:        ch.Snippet.Title,
		Description: ch.Snippet.Description,
		Links:       ExtractSocialLinks(ch.Snippet.Description),
	}
	if ch.Snippet.Thumbnails.High != nil {
		meta.ThumbnailURL = ch.Snippet.Thumbnails.High.URL
	}

	return meta, nil
}

// FetchVideosByQuery pages through a keyword search until maxResults videos
// passing the length filter are collected or the results run out. On error
// the videos gathered so far are returned alongside it.
func (s *Source) FetchVideosByQuery(ctx context.Context, query string, maxResults int) ([]domain.Video, error) {
	var videos []domain.Video
	pageToken := ""

	for page := 0; len(videos) < maxResults; page++ {
		if err := ctx.Err(); err != nil {
			return videos, err
		}

		pageSize := min(maxResults-len(videos), MaxPageSize)
		if err := s.quota.Reserve(s.searchCost + pageSize*s.detailCost); err != nil {
			return videos, err
		}

		search, err := s.api.Search(ctx, SearchParams{
			Query:      query,
			Type:       "video",
			MaxResults: pageSize,
			PageToken:  pageToken,
			Playable:   true,
		})
		if err != nil {
			return videos, fmt.Errorf("search page %d: %w", page, err)
		}

		ids := search.videoIDs()
		if len(ids) == 0 {
			break
		}

		fetched, err := s.details(ctx, ids)
		if err != nil {
			return videos, fmt.Errorf("details page %d: %w", page, err)
		}
		videos = append(videos, fetched...)

		s.logger.Debug("fetched query page",
			"query", query,
			"page", page,
			"videos", len(fetched),
			"total", len(videos),
		)

		if search.NextPageToken == "" || search.PageInfo.TotalResults <= len(videos) {
			break
		}
		pageToken = search.NextPageToken
	}

	if len(videos) > maxResults {
		videos = videos[:maxResults]
	}
	return videos, nil
}

// FetchVideosForSource returns one newest-first page of a channel's catalog.
// When lastSeenID appears on the page only the videos before it are kept and
// no continuation token is returned.
func (s *Source) FetchVideosForSource(ctx context.Context, channelID, pageToken, lastSeenID string) (*domain.VideoPage, error) {
	if err := s.quota.Reserve(s.searchCost + MaxPageSize*s.detailCost); err != nil {
		return nil, err
	}

	search, err := s.api.Search(ctx, SearchParams{
		ChannelID:  channelID,
		Type:       "video",
		Order:      "date",
		MaxResults: MaxPageSize,
		PageToken:  pageToken,
	})
	if err != nil {
		var te *TransportError
		if pageToken != "" && errors.As(err, &te) && te.Reason == reasonInvalidPageToken {
			return nil, fmt.Errorf("search channel %s: %w: %w", channelID, domain.ErrInvalidPageToken, err)
		}
		return nil, fmt.Errorf("search channel %s: %w", channelID, err)
	}

	page := &domain.VideoPage{TotalResults: search.PageInfo.TotalResults}

	ids := search.videoIDs()
	if len(ids) == 0 {
		return page, nil
	}
	page.NewestID = ids[0]

	ids, page.ReachedCursor = truncateAt(ids, lastSeenID)
	if !page.ReachedCursor {
		page.NextPageToken = search.NextPageToken
	}
	if len(ids) == 0 {
		return page, nil
	}

	page.Videos, err = s.details(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("details channel %s: %w", channelID, err)
	}

	return page, nil
}

// truncateAt keeps the ids strictly before lastSeenID.
func truncateAt(ids []string, lastSeenID string) ([]string, bool) {
	if lastSeenID == "" {
		return ids, false
	}
	idx := slices.Index(ids, lastSeenID)
	if idx < 0 {
		return ids, false
	}
	return ids[:idx], true
}

// details loads videos for ids in the given order and drops those shorter
// than the minimum length.
func (s *Source) details(ctx context.Context, ids []string) ([]domain.Video, error) {
	resp, err := s.api.Videos(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]VideoResource, len(resp.Items))
	for _, item := range resp.Items {
		byID[item.ID] = item
	}

	videos := make([]domain.Video, 0, len(ids))
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			continue
		}

		video, ok := s.transform(item)
		if !ok || video.Length < s.minLength {
			continue
		}
		videos = append(videos, video)
	}

	return videos, nil
}

func (s *Source) transform(item VideoResource) (domain.Video, bool) {
	uploadedAt, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
	if err != nil {
		s.logger.Warn("failed to parse upload date",
			"external_id", item.ID,
			"published_at", item.Snippet.PublishedAt,
		)
		return domain.Video{}, false
	}

	return domain.Video{
		ExternalID:   item.ID,
		Title:        item.Snippet.Title,
		Description:  item.Snippet.Description,
		UploadedAt:   uploadedAt,
		Length:       ParseDuration(item.ContentDetails.Duration),
		ThumbnailURL: thumbnailURL(item),
	}, true
}

func thumbnailURL(item VideoResource) string {
	switch {
	case item.Snippet.Thumbnails.Maxres != nil && item.Snippet.Thumbnails.Maxres.URL != "":
		return item.Snippet.Thumbnails.Maxres.URL
	case item.Snippet.Thumbnails.High != nil && item.Snippet.Thumbnails.High.URL != "":
		return item.Snippet.Thumbnails.High.URL
	default:
		return fmt.Sprintf("https://img.youtube.com/vi/%s/hqdefault.jpg", item.ID)
	}
}
