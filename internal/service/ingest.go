package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"catalog_ingest/internal/domain"
	"catalog_ingest/internal/metrics"
)

// Target is one unit of work inside a run. Failures are isolated per target.
type Target interface {
	String() string
}

// ChannelTarget ingests a channel's catalog, resuming from its cursor.
type ChannelTarget struct {
	Handle string
}

func (t ChannelTarget) String() string {
	return "channel:" + t.Handle
}

// CategoryTarget stores the top results of a keyword search under Title.
type CategoryTarget struct {
	Title      string
	Query      string
	MaxResults int
}

func (t CategoryTarget) String() string {
	return "category:" + t.Title
}

const channelCategoryPrefix = "Channel: "

type IngesterConfig struct {
	Mode string
	// MaxPagesPerSource caps channel pages per run; 0 means unlimited.
	MaxPagesPerSource int
}

// Ingester runs its targets sequentially. At most one Run executes at a time;
// overlapping calls return immediately.
type Ingester struct {
	mode       string
	maxPages   int
	targets    []Target
	source     VideoSource
	quota      QuotaGate
	sources    SourceStore
	categories CategoryStore
	reconciler *Reconciler
	publisher  Publisher
	logger     *slog.Logger
	now        func() time.Time

	running atomic.Bool
}

func NewIngester(
	cfg IngesterConfig,
	targets []Target,
	source VideoSource,
	quota QuotaGate,
	sources SourceStore,
	categories CategoryStore,
	reconciler *Reconciler,
	publisher Publisher,
	logger *slog.Logger,
) *Ingester {
	return &Ingester{
		mode:       cfg.Mode,
		maxPages:   cfg.MaxPagesPerSource,
		targets:    targets,
		source:     source,
		quota:      quota,
		sources:    sources,
		categories: categories,
		reconciler: reconciler,
		publisher:  publisher,
		logger:     logger.With("mode", cfg.Mode),
		now:        time.Now,
	}
}

func (i *Ingester) Mode() string {
	return i.mode
}

// Running reports whether a run is in progress.
func (i *Ingester) Running() bool {
	return i.running.Load()
}

// Run processes every target once. Target failures are logged and counted;
// only a cancelled context or a panic outside a target returns an error.
func (i *Ingester) Run(ctx context.Context) (stats *domain.RunStats, err error) {
	stats = &domain.RunStats{Mode: i.mode}

	if !i.running.CompareAndSwap(false, true) {
		i.logger.Warn("ingestion already in progress, skipping")
		stats.Status = domain.RunSkippedInProgress
		return stats, nil
	}
	defer i.running.Store(false)

	startTime := time.Now()
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("ingestion panicked", "panic", r)
			err = fmt.Errorf("ingestion panic: %v", r)
		}
		stats.Duration = time.Since(startTime)
		metrics.RunDuration.WithLabelValues(i.mode, string(stats.Status)).Observe(stats.Duration.Seconds())
	}()

	if i.quota.NearExhaustion() {
		i.logger.Warn("quota near exhaustion, skipping run")
		stats.Status = domain.RunSkippedQuota
		return stats, nil
	}

	stats.Status = domain.RunCompleted
	i.logger.Info("starting ingestion", "targets", len(i.targets))

	for _, target := range i.targets {
		if err := ctx.Err(); err != nil {
			i.logger.Warn("ingestion interrupted", "error", err)
			return stats, err
		}
		if i.quota.NearExhaustion() {
			i.logger.Warn("quota near exhaustion, stopping early",
				"remaining_targets", len(i.targets)-stats.Targets,
			)
			break
		}

		stats.Targets++
		if err := i.runTarget(ctx, target, stats); err != nil {
			stats.TargetsFailed++
			metrics.TargetRuns.WithLabelValues(i.mode, "failure").Inc()
			i.logger.Error("target failed", "target", target.String(), "error", err)
			continue
		}
		metrics.TargetRuns.WithLabelValues(i.mode, "success").Inc()
	}

	i.logger.Info("ingestion completed",
		"targets", stats.Targets,
		"targets_failed", stats.TargetsFailed,
		"fetched", stats.Fetched,
		"created", stats.Created,
		"updated", stats.Updated,
		"failed", stats.Failed,
		"published", stats.Published,
		"duration", time.Since(startTime),
	)

	return stats, nil
}

func (i *Ingester) runTarget(ctx context.Context, target Target, stats *domain.RunStats) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	switch t := target.(type) {
	case ChannelTarget:
		return i.ingestChannel(ctx, t, stats)
	case CategoryTarget:
		return i.ingestCategory(ctx, t, stats)
	default:
		return fmt.Errorf("unsupported target %T", target)
	}
}

func (i *Ingester) ingestChannel(ctx context.Context, t ChannelTarget, stats *domain.RunStats) error {
	logger := i.logger.With("target", t.String())

	source, err := i.sources.FindByHandle(ctx, t.Handle)
	if err != nil {
		return fmt.Errorf("load source: %w", err)
	}
	if source == nil {
		source, err = i.registerSource(ctx, t.Handle)
		if err != nil {
			return err
		}
		logger.Info("registered source", "external_id", source.ExternalID, "name", source.Name)
	}

	category, err := i.categories.FindOrCreate(ctx, channelCategoryPrefix+source.Name)
	if err != nil {
		return fmt.Errorf("find category: %w", err)
	}

	catchingUp := source.IsFullyIndexed
	lastSeenID := ""
	pageToken := ""
	switch {
	case catchingUp && source.LastFetchedItemID != nil:
		lastSeenID = *source.LastFetchedItemID
	case !catchingUp && source.BacklogPageToken != nil:
		pageToken = *source.BacklogPageToken
	}
	// Only a walk from the top of the catalog sets the cursor and total.
	fromTop := pageToken == ""

	logger.Info("ingesting source",
		"state", source.IndexState(),
		"last_seen_id", lastSeenID,
		"resume_token", pageToken,
	)

	var (
		newestID   string
		pagesTotal int
	)

	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i.maxPages > 0 && page >= i.maxPages {
			logger.Info("page limit reached", "pages", page)
			break
		}
		if page > 0 && i.quota.NearExhaustion() {
			logger.Warn("quota near exhaustion, pausing source", "pages", page)
			break
		}

		vp, err := i.source.FetchVideosForSource(ctx, source.ExternalID, pageToken, lastSeenID)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidPageToken) && source.BacklogPageToken != nil {
				i.dropBacklogToken(ctx, logger, source)
			}
			return fmt.Errorf("fetch page %d: %w", page, err)
		}
		pagesTotal++

		stats.Fetched += len(vp.Videos)
		i.reconcileAll(ctx, logger, vp.Videos, category.ID, &source.ID, stats)

		if newestID == "" && vp.NewestID != "" {
			newestID = vp.NewestID
			if !catchingUp && fromTop {
				source.LastFetchedItemID = &newestID
			}
		}

		done := vp.NextPageToken == ""
		if catchingUp {
			// The cursor only moves once the gap to it is closed.
			if done && newestID != "" {
				source.LastFetchedItemID = &newestID
			}
		} else {
			if fromTop && page == 0 {
				source.TotalItems = vp.TotalResults
			}
			if done {
				source.IsFullyIndexed = true
				source.BacklogPageToken = nil
			} else {
				next := vp.NextPageToken
				source.BacklogPageToken = &next
			}
		}

		source.LastFetchedAt = i.now().UTC()
		if err := i.sources.Save(ctx, source); err != nil {
			return fmt.Errorf("save source: %w", err)
		}

		if done {
			break
		}
		pageToken = vp.NextPageToken
	}

	logger.Info("source ingested",
		"pages", pagesTotal,
		"state", source.IndexState(),
		"total_items", source.TotalItems,
	)
	return nil
}

func (i *Ingester) registerSource(ctx context.Context, handle string) (*domain.Source, error) {
	meta, err := i.source.ResolveSource(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("resolve source: %w", err)
	}

	source, err := i.sources.FindOrCreate(ctx, meta.ExternalID, meta.Name)
	if err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}

	source.ApplyMetadata(meta)
	if err := i.sources.Save(ctx, source); err != nil {
		return nil, fmt.Errorf("save source metadata: %w", err)
	}

	// Several handles may resolve to one channel; each keeps its own link.
	if err := i.sources.LinkHandle(ctx, handle, source.ID); err != nil {
		return nil, fmt.Errorf("link handle: %w", err)
	}

	return source, nil
}

// dropBacklogToken forgets an expired continuation token so the next run
// restarts the backlog walk from the top.
func (i *Ingester) dropBacklogToken(ctx context.Context, logger *slog.Logger, source *domain.Source) {
	logger.Warn("backlog page token rejected, restarting walk next run")
	source.BacklogPageToken = nil
	if err := i.sources.Save(ctx, source); err != nil {
		logger.Error("failed to clear backlog page token", "error", err)
	}
}

func (i *Ingester) ingestCategory(ctx context.Context, t CategoryTarget, stats *domain.RunStats) error {
	logger := i.logger.With("target", t.String())

	category, err := i.categories.FindOrCreate(ctx, t.Title)
	if err != nil {
		return fmt.Errorf("find category: %w", err)
	}

	// Partial results are still stored when the search stops early.
	videos, fetchErr := i.source.FetchVideosByQuery(ctx, t.Query, t.MaxResults)
	stats.Fetched += len(videos)
	i.reconcileAll(ctx, logger, videos, category.ID, nil, stats)

	if fetchErr != nil {
		return fmt.Errorf("fetch videos: %w", fetchErr)
	}

	logger.Info("category ingested", "videos", len(videos))
	return nil
}

func (i *Ingester) reconcileAll(ctx context.Context, logger *slog.Logger, videos []domain.Video, categoryID uuid.UUID, sourceID *uuid.UUID, stats *domain.RunStats) {
	for _, video := range videos {
		item, isNew, err := i.reconciler.Upsert(ctx, video, categoryID, sourceID)
		if err != nil {
			stats.Failed++
			metrics.ItemsProcessed.WithLabelValues(i.mode, "failed").Inc()
			logger.Error("failed to store item", "external_id", video.ExternalID, "error", err)
			continue
		}

		if isNew {
			stats.Created++
			metrics.ItemsProcessed.WithLabelValues(i.mode, "created").Inc()
		} else {
			stats.Updated++
			metrics.ItemsProcessed.WithLabelValues(i.mode, "updated").Inc()
		}

		if i.publisher == nil {
			continue
		}
		if err := i.publisher.Publish(ctx, item, isNew); err != nil {
			stats.PublishFailed++
			logger.Warn("failed to publish item", "external_id", item.ExternalID, "error", err)
			continue
		}
		stats.Published++
	}
}
