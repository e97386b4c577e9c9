package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"snapjournal/internal/models"
	"snapjournal/internal/repository"
)

type NotificationService interface {
	FanOut(ctx context.Context, publisher, postID string, followers []string) error
	List(ctx context.Context, actor string) ([]*models.Notification, error)
	MarkAllRead(ctx context.Context, actor string) error
}

type notificationService struct {
	notifications repository.NotificationRepository
	retry         *Retrier
	log           *zap.Logger
}

func NewNotificationService(notifications repository.NotificationRepository, retry *Retrier, log *zap.Logger) NotificationService {
	return &notificationService{notifications: notifications, retry: retry, log: log}
}

func uploadMessage(publisher string) string {
	return publisher + " just uploaded an image"
}

// FanOut writes one notification per follower in a single batch keyed by the
// post id, so a retried batch rewrites the same rows.
func (s *notificationService) FanOut(ctx context.Context, publisher, postID string, followers []string) error {
	if len(followers) == 0 {
		return nil
	}

	message := uploadMessage(publisher)
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.notifications.CreateBatch(ctx, followers, postID, message)
	})
	if err != nil {
		s.log.Error("notification fan-out failed",
			zap.String("publisher", publisher),
			zap.String("post", postID),
			zap.Int("followers", len(followers)),
			zap.Error(err))
		return fmt.Errorf("%w: notify %d followers: %w", ErrUploadFailed, len(followers), err)
	}

	s.log.Debug("notifications sent",
		zap.String("publisher", publisher),
		zap.String("post", postID),
		zap.Int("followers", len(followers)))
	return nil
}

func (s *notificationService) List(ctx context.Context, actor string) ([]*models.Notification, error) {
	if actor == "" {
		return nil, ErrUnauthenticated
	}
	return s.notifications.List(ctx, actor)
}

func (s *notificationService) MarkAllRead(ctx context.Context, actor string) error {
	list, err := s.List(ctx, actor)
	if err != nil {
		return err
	}

	var unread []string
	for _, n := range list {
		if !n.Read {
			unread = append(unread, n.ID)
		}
	}
	return s.notifications.MarkRead(ctx, actor, unread)
}
