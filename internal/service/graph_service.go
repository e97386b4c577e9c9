package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"snapjournal/internal/docstore"
	"snapjournal/internal/repository"
)

type GraphService interface {
	Follow(ctx context.Context, actor, target string) error
	Unfollow(ctx context.Context, actor, target string) error
	IsFollowing(ctx context.Context, actor, target string) (bool, error)
}

// GraphOptions tune how edges are written.
type GraphOptions struct {
	// Atomic sends both halves of an edge in one batch. Otherwise they are
	// two retried writes, target row first.
	Atomic bool
	// AllowSelfFollow lets a user follow themselves.
	AllowSelfFollow bool
}

type graphService struct {
	users repository.UserRepository
	retry *Retrier
	opts  GraphOptions
	log   *zap.Logger
}

func NewGraphService(users repository.UserRepository, retry *Retrier, opts GraphOptions, log *zap.Logger) GraphService {
	return &graphService{users: users, retry: retry, opts: opts, log: log}
}

func (s *graphService) Follow(ctx context.Context, actor, target string) error {
	if err := s.checkEdge(actor, target); err != nil {
		return err
	}
	if s.opts.Atomic {
		if err := s.retry.Do(ctx, func(ctx context.Context) error { return s.users.Link(ctx, actor, target) }); err != nil {
			return fmt.Errorf("follow %s: %w", target, err)
		}
		return nil
	}
	return s.twoWrites(ctx, "follow", actor, target, s.users.AddFollower, s.users.AddFollowing)
}

func (s *graphService) Unfollow(ctx context.Context, actor, target string) error {
	if err := s.checkEdge(actor, target); err != nil {
		return err
	}
	if s.opts.Atomic {
		if err := s.retry.Do(ctx, func(ctx context.Context) error { return s.users.Unlink(ctx, actor, target) }); err != nil {
			return fmt.Errorf("unfollow %s: %w", target, err)
		}
		return nil
	}
	return s.twoWrites(ctx, "unfollow", actor, target, s.users.RemoveFollower, s.users.RemoveFollowing)
}

type edgeWrite func(ctx context.Context, row, other string) error

func (s *graphService) twoWrites(ctx context.Context, op, actor, target string, targetSide, actorSide edgeWrite) error {
	err := s.retry.Do(ctx, func(ctx context.Context) error { return targetSide(ctx, target, actor) })
	if err != nil {
		return fmt.Errorf("%s %s: update %s: %w", op, target, target, err)
	}

	err = s.retry.Do(ctx, func(ctx context.Context) error { return actorSide(ctx, actor, target) })
	if err != nil {
		s.log.Warn("one-sided graph edge",
			zap.String("op", op),
			zap.String("actor", actor),
			zap.String("target", target),
			zap.Error(err))
		return fmt.Errorf("%s %s: update %s: %w", op, target, actor, err)
	}
	return nil
}

// IsFollowing reads the target row on every call. A missing row means false.
func (s *graphService) IsFollowing(ctx context.Context, actor, target string) (bool, error) {
	if actor == "" {
		return false, ErrUnauthenticated
	}
	user, err := s.users.Get(ctx, target)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return slices.Contains(user.Followers, actor), nil
}

func (s *graphService) checkEdge(actor, target string) error {
	switch {
	case actor == "":
		return ErrUnauthenticated
	case target == "":
		return fmt.Errorf("%w: empty target", ErrInvalidInput)
	case actor == target && !s.opts.AllowSelfFollow:
		return ErrSelfFollow
	}
	return nil
}
