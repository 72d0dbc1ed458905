package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"catalog_ingest/internal/domain"
)

// Reconciler upserts fetched videos into the item store keyed by external id.
type Reconciler struct {
	items     ItemStore
	txManager TransactionManager
}

func NewReconciler(items ItemStore, txManager TransactionManager) *Reconciler {
	return &Reconciler{items: items, txManager: txManager}
}

// Upsert stores video as an item under categoryID. An existing item has all
// mutable fields overwritten, including a nil sourceID. The bool reports
// whether the item was created.
func (r *Reconciler) Upsert(ctx context.Context, video domain.Video, categoryID uuid.UUID, sourceID *uuid.UUID) (*domain.Item, bool, error) {
	var (
		item  *domain.Item
		isNew bool
	)

	err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := r.items.FindByExternalID(txCtx, video.ExternalID)
		if err != nil {
			return fmt.Errorf("find item: %w", err)
		}

		if existing == nil {
			isNew = true
			existing = &domain.Item{ExternalID: video.ExternalID}
		}

		existing.Title = video.Title
		existing.Description = video.Description
		existing.UploadDate = video.UploadedAt
		existing.Length = video.Length
		existing.CategoryID = categoryID
		existing.SourceID = sourceID

		if err := r.items.Save(txCtx, existing); err != nil {
			return fmt.Errorf("save item: %w", err)
		}

		item = existing
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("upsert %s: %w", video.ExternalID, err)
	}

	return item, isNew, nil
}
