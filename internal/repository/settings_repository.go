package repository

import (
	"context"

	"snapjournal/internal/docstore"
)

type settingsRepository struct {
	store docstore.Store
}

func NewSettingsRepository(store docstore.Store) SettingsRepository {
	return &settingsRepository{store: store}
}

func promptRef() docstore.DocRef {
	return docstore.Collection(settingsCollection).Doc(journalPromptKey)
}

// JournalPrompt returns docstore.ErrNotFound when no prompt is configured.
func (r *settingsRepository) JournalPrompt(ctx context.Context) (string, error) {
	snap, err := r.store.Get(ctx, promptRef())
	if err != nil {
		return "", err
	}
	var s struct {
		Prompt string `json:"prompt"`
	}
	if err := snap.DataTo(&s); err != nil {
		return "", err
	}
	return s.Prompt, nil
}

func (r *settingsRepository) SetJournalPrompt(ctx context.Context, prompt string) error {
	return r.store.Set(ctx, promptRef(), docstore.Fields{"prompt": prompt}, true)
}
