package repository

import (
	"context"
	"fmt"

	"snapjournal/internal/docstore"
	"snapjournal/internal/models"
)

type journalRepository struct {
	store docstore.Store
}

func NewJournalRepository(store docstore.Store) JournalRepository {
	return &journalRepository{store: store}
}

func (r *journalRepository) Create(ctx context.Context, entry *models.JournalEntry) error {
	ref, err := r.store.Add(ctx, journalRef(entry.Email), docstore.Fields{
		"text":         entry.Text,
		fieldEmail:     entry.Email,
		fieldTimestamp: docstore.ServerTimestamp,
		"color":        entry.Color,
	})
	if err != nil {
		return fmt.Errorf("create journal entry: %w", err)
	}

	snap, err := r.store.Get(ctx, ref)
	if err != nil {
		return fmt.Errorf("read journal entry: %w", err)
	}
	if err := snap.DataTo(entry); err != nil {
		return err
	}
	entry.ID = ref.ID()
	return nil
}

func (r *journalRepository) ListByUser(ctx context.Context, email string) ([]*models.JournalEntry, error) {
	snaps, err := r.store.Query(ctx, journalRef(email))
	if err != nil {
		return nil, fmt.Errorf("list journal of %s: %w", email, err)
	}
	return decodeAll(snaps, func(e *models.JournalEntry, id string) { e.ID = id })
}
