package service

import (
	"go.uber.org/zap"

	"snapjournal/internal/config"
	"snapjournal/internal/metrics"
	"snapjournal/internal/repository"
	"snapjournal/internal/storage"
)

type Service struct {
	Graph        GraphService
	Post         PostService
	Notification NotificationService
	Feed         FeedService
	User         UserService
	Journal      JournalService
	Stats        StatsService
	Auth         AuthService
}

// NewService wires every service over one repository. tokens is nil when an
// external provider issues identities, and Auth stays nil with it.
func NewService(rep *repository.Repository, cfg *config.Config, media storage.MediaStore, tokens TokenIssuer, recorder *metrics.Recorder, log *zap.Logger) *Service {
	retry := NewRetrier(cfg.Retry)
	notifications := NewNotificationService(rep.Notifications, retry, log)

	s := &Service{
		Graph:        NewGraphService(rep.Users, retry, GraphOptions{Atomic: cfg.AtomicFollow, AllowSelfFollow: cfg.AllowSelfFollow}, log),
		Post:         NewPostService(rep.Users, rep.Posts, notifications, media, cfg.MaxUploadSize, log),
		Notification: notifications,
		Feed:         NewFeedService(rep.Users, rep.Posts, rep.Journal),
		User:         NewUserService(rep.Users, rep.Posts, media, cfg.MaxUploadSize, log),
		Journal:      NewJournalService(rep.Journal, rep.Settings),
		Stats:        NewStatsService(rep.Store, recorder),
	}
	if tokens != nil {
		s.Auth = NewAuthService(rep.Accounts, rep.Users, tokens)
	}
	return s
}
