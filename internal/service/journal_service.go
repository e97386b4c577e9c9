package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"snapjournal/internal/docstore"
	"snapjournal/internal/models"
	"snapjournal/internal/repository"
)

const (
	DefaultJournalColor = "#ffffff"
	NoPromptMessage     = "No prompt available."
)

// JournalPalette lists the background colours an entry may use.
var JournalPalette = []string{DefaultJournalColor, "#ff9999", "#99ff99", "#9999ff"}

type JournalService interface {
	AddEntry(ctx context.Context, actor, text, color string) (*models.JournalEntry, error)
	Prompt(ctx context.Context) (string, error)
}

type journalService struct {
	journal  repository.JournalRepository
	settings repository.SettingsRepository
}

func NewJournalService(journal repository.JournalRepository, settings repository.SettingsRepository) JournalService {
	return &journalService{journal: journal, settings: settings}
}

func (s *journalService) AddEntry(ctx context.Context, actor, text, color string) (*models.JournalEntry, error) {
	if actor == "" {
		return nil, ErrUnauthenticated
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty entry", ErrInvalidInput)
	}

	color = strings.ToLower(strings.TrimSpace(color))
	if color == "" {
		color = DefaultJournalColor
	}
	if !slices.Contains(JournalPalette, color) {
		return nil, fmt.Errorf("%w: colour %s not in palette", ErrInvalidInput, color)
	}

	entry := &models.JournalEntry{Text: text, Email: actor, Color: color}
	if err := s.journal.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *journalService) Prompt(ctx context.Context) (string, error) {
	prompt, err := s.settings.JournalPrompt(ctx)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return NoPromptMessage, nil
		}
		return "", err
	}
	if prompt == "" {
		return NoPromptMessage, nil
	}
	return prompt, nil
}
