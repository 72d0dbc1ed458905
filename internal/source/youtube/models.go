package youtube

// SearchResponse mirrors search.list.
type SearchResponse struct {
	NextPageToken string         `json:"nextPageToken"`
	PageInfo      PageInfo       `json:"pageInfo"`
	Items         []SearchResult `json:"items"`
}

type PageInfo struct {
	TotalResults   int `json:"totalResults"`
	ResultsPerPage int `json:"resultsPerPage"`
}

type SearchResult struct {
	ID      ResourceID `json:"id"`
	Snippet Snippet    `json:"snippet"`
}

type ResourceID struct {
	Kind      string `json:"kind"`
	VideoID   string `json:"videoId"`
	ChannelID string `json:"channelId"`
}

// VideoListResponse mirrors videos.list.
type VideoListResponse struct {
	Items []VideoResource `json:"items"`
}

type VideoResource struct {
	ID             string         `json:"id"`
	Snippet        Snippet        `json:"snippet"`
	ContentDetails ContentDetails `json:"contentDetails"`
}

type ContentDetails struct {
	Duration string `json:"duration"`
}

// ChannelListResponse mirrors channels.list.
type ChannelListResponse struct {
	Items []ChannelResource `json:"items"`
}

type ChannelResource struct {
	ID      string  `json:"id"`
	Snippet Snippet `json:"snippet"`
}

type Snippet struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	PublishedAt string     `json:"publishedAt"`
	ChannelID   string     `json:"channelId"`
	Thumbnails  Thumbnails `json:"thumbnails"`
}

type Thumbnails struct {
	Default *Thumbnail `json:"default"`
	High    *Thumbnail `json:"high"`
	Maxres  *Thumbnail `json:"maxres"`
}

type Thumbnail struct {
	URL string `json:"url"`
}

// ErrorResponse is the error envelope returned with non-2xx statuses.
type ErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

func (r *SearchResponse) videoIDs() []string {
	ids := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	return ids
}
