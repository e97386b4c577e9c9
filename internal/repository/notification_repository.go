package repository

import (
	"context"
	"fmt"

	"snapjournal/internal/docstore"
	"snapjournal/internal/models"
)

type notificationRepository struct {
	store docstore.Store
}

func NewNotificationRepository(store docstore.Store) NotificationRepository {
	return &notificationRepository{store: store}
}

// CreateBatch merges rather than overwrites so a retried batch leaves the
// read flag of already delivered notifications alone.
func (r *notificationRepository) CreateBatch(ctx context.Context, recipients []string, id, message string) error {
	if len(recipients) == 0 {
		return nil
	}

	b := r.store.Batch()
	for _, recipient := range recipients {
		b.Set(notiRef(recipient).Doc(id), docstore.Fields{
			"message":      message,
			fieldTimestamp: docstore.ServerTimestamp,
		}, true)
	}
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("commit %d notifications: %w", b.Len(), err)
	}
	return nil
}

// List returns the newest notifications first.
func (r *notificationRepository) List(ctx context.Context, recipient string) ([]*models.Notification, error) {
	snaps, err := r.store.Query(ctx, notiRef(recipient), docstore.OrderBy(fieldTimestamp, docstore.Desc))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return decodeAll(snaps, func(n *models.Notification, id string) { n.ID = id })
}

func (r *notificationRepository) MarkRead(ctx context.Context, recipient string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	b := r.store.Batch()
	for _, id := range ids {
		b.Update(notiRef(recipient).Doc(id), docstore.Set(fieldRead, true))
	}
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("mark %d notifications read: %w", b.Len(), err)
	}
	return nil
}
