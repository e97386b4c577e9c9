package service

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"go.uber.org/zap"

	"snapjournal/internal/models"
	"snapjournal/internal/repository"
	"snapjournal/internal/storage"
)

// ImageUpload is a single image file taken from a request.
type ImageUpload struct {
	File     io.Reader
	FileName string
	Size     int64
}

type UserService interface {
	// Me returns the actor's own profile, creating the user row on first use.
	Me(ctx context.Context, actor string) (*models.Profile, error)
	Profile(ctx context.Context, viewer, email string) (*models.Profile, error)
	Accounts(ctx context.Context, actor, query string) ([]*models.User, error)
	SetProfilePicture(ctx context.Context, actor string, upload ImageUpload) (string, error)
	PostStory(ctx context.Context, actor string, upload ImageUpload) (*models.Story, error)
}

type userService struct {
	users         repository.UserRepository
	posts         repository.PostRepository
	media         storage.MediaStore
	maxUploadSize int64
	log           *zap.Logger
}

func NewUserService(users repository.UserRepository, posts repository.PostRepository, media storage.MediaStore, maxUploadSize int64, log *zap.Logger) UserService {
	return &userService{
		users:         users,
		posts:         posts,
		media:         media,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

func (s *userService) Me(ctx context.Context, actor string) (*models.Profile, error) {
	if actor == "" {
		return nil, ErrUnauthenticated
	}
	if _, err := s.users.Ensure(ctx, actor); err != nil {
		return nil, err
	}
	return s.Profile(ctx, actor, actor)
}

func (s *userService) Profile(ctx context.Context, viewer, email string) (*models.Profile, error) {
	user, err := s.users.Get(ctx, email)
	if err != nil {
		return nil, err
	}
	posts, err := s.posts.ListByUser(ctx, email)
	if err != nil {
		return nil, err
	}

	return &models.Profile{
		User:           *user,
		FollowersCount: len(user.Followers),
		FollowingCount: len(user.Following),
		IsFollowing:    viewer != "" && slices.Contains(user.Followers, viewer),
		Posts:          posts,
	}, nil
}

// Accounts lists every user except the actor whose email contains query,
// ignoring case. An empty query matches everyone.
func (s *userService) Accounts(ctx context.Context, actor, query string) ([]*models.User, error) {
	if actor == "" {
		return nil, ErrUnauthenticated
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	query = strings.ToLower(strings.TrimSpace(query))
	out := []*models.User{}
	for _, u := range users {
		if u.Email == actor {
			continue
		}
		if strings.Contains(strings.ToLower(u.Email), query) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *userService) SetProfilePicture(ctx context.Context, actor string, upload ImageUpload) (string, error) {
	stored, err := s.upload(ctx, actor, "profile", upload)
	if err != nil {
		return "", err
	}
	if err := s.users.SetProfilePicture(ctx, actor, stored.URL); err != nil {
		s.discard(ctx, stored)
		return "", fmt.Errorf("save profile picture: %w", err)
	}
	return stored.URL, nil
}

// PostStory replaces the actor's current story. Only the latest story is kept.
func (s *userService) PostStory(ctx context.Context, actor string, upload ImageUpload) (*models.Story, error) {
	stored, err := s.upload(ctx, actor, "stories", upload)
	if err != nil {
		return nil, err
	}
	title := Username(actor)
	if err := s.users.SetStory(ctx, actor, stored.URL, title); err != nil {
		s.discard(ctx, stored)
		return nil, fmt.Errorf("save story: %w", err)
	}
	return &models.Story{Email: actor, StoryImage: stored.URL, StoryTitle: title}, nil
}

func (s *userService) upload(ctx context.Context, actor, prefix string, upload ImageUpload) (storage.StoredObject, error) {
	if actor == "" {
		return storage.StoredObject{}, ErrUnauthenticated
	}
	obj, err := storage.PrepareImage(upload.File, upload.FileName, upload.Size, s.maxUploadSize)
	if err != nil {
		return storage.StoredObject{}, invalidUpload(err)
	}
	obj.Prefix = prefix
	obj.Owner = actor

	stored, err := s.media.Upload(ctx, obj)
	if err != nil {
		return storage.StoredObject{}, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	return stored, nil
}

func (s *userService) discard(ctx context.Context, stored storage.StoredObject) {
	if err := s.media.Delete(ctx, stored.Name); err != nil {
		s.log.Warn("orphaned upload", zap.String("object", stored.Name), zap.Error(err))
	}
}
