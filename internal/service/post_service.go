package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"snapjournal/internal/models"
	"snapjournal/internal/repository"
	"snapjournal/internal/storage"
)

const (
	minRating = 0
	maxRating = 5
)

type PublishRequest struct {
	Author   string
	File     io.Reader
	FileName string
	Size     int64
	Caption  string
	Location *models.Location
	Rating   int
	// Tags is the raw comma separated list as typed by the user.
	Tags string
}

type PostService interface {
	Publish(ctx context.Context, req PublishRequest) (*models.Post, error)
	Like(ctx context.Context, actor, owner, postID string) (*models.Post, error)
	Unlike(ctx context.Context, actor, owner, postID string) (*models.Post, error)
	Comment(ctx context.Context, actor, owner, postID, text string) (*models.Comment, error)
	Comments(ctx context.Context, owner, postID string) ([]*models.Comment, error)
	UserPosts(ctx context.Context, owner string) ([]*models.Post, error)
}

type postService struct {
	users         repository.UserRepository
	posts         repository.PostRepository
	notifications NotificationService
	media         storage.MediaStore
	maxUploadSize int64
	log           *zap.Logger
}

func NewPostService(
	users repository.UserRepository,
	posts repository.PostRepository,
	notifications NotificationService,
	media storage.MediaStore,
	maxUploadSize int64,
	log *zap.Logger,
) PostService {
	return &postService{
		users:         users,
		posts:         posts,
		notifications: notifications,
		media:         media,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

// Publish uploads the image, makes sure the author row exists, stores the
// post and notifies the author's followers. Post creation and fan-out are
// not atomic: when the fan-out fails the stored post is returned together
// with an error wrapping ErrUploadFailed.
func (p *postService) Publish(ctx context.Context, req PublishRequest) (*models.Post, error) {
	if req.Author == "" {
		return nil, ErrUnauthenticated
	}
	if req.Rating < minRating || req.Rating > maxRating {
		return nil, fmt.Errorf("%w: rating %d outside %d-%d", ErrInvalidInput, req.Rating, minRating, maxRating)
	}

	obj, err := storage.PrepareImage(req.File, req.FileName, req.Size, p.maxUploadSize)
	if err != nil {
		return nil, invalidUpload(err)
	}
	obj.Prefix = "images"
	obj.Owner = req.Author

	stored, err := p.media.Upload(ctx, obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	author, err := p.users.Ensure(ctx, req.Author)
	if err != nil {
		p.discard(ctx, stored)
		return nil, err
	}

	post := &models.Post{
		Email:    req.Author,
		ImageURL: stored.URL,
		Caption:  req.Caption,
		Location: req.Location,
		Rating:   req.Rating,
		Tags:     ParseTags(req.Tags),
	}
	if err := p.posts.Create(ctx, post); err != nil {
		p.discard(ctx, stored)
		return nil, err
	}

	if err := p.notifications.FanOut(ctx, req.Author, post.ID, author.Followers); err != nil {
		return post, err
	}
	return post, nil
}

func (p *postService) discard(ctx context.Context, stored storage.StoredObject) {
	if err := p.media.Delete(ctx, stored.Name); err != nil {
		p.log.Warn("orphaned upload", zap.String("object", stored.Name), zap.Error(err))
	}
}

func (p *postService) Like(ctx context.Context, actor, owner, postID string) (*models.Post, error) {
	return p.adjustLikes(ctx, actor, owner, postID, 1)
}

// Unlike never takes the like count below zero.
func (p *postService) Unlike(ctx context.Context, actor, owner, postID string) (*models.Post, error) {
	return p.adjustLikes(ctx, actor, owner, postID, -1)
}

func (p *postService) adjustLikes(ctx context.Context, actor, owner, postID string, delta int64) (*models.Post, error) {
	if actor == "" {
		return nil, ErrUnauthenticated
	}
	if _, err := p.posts.Get(ctx, owner, postID); err != nil {
		return nil, err
	}
	if _, err := p.users.Ensure(ctx, owner); err != nil {
		return nil, err
	}
	if err := p.posts.AddLikes(ctx, owner, postID, delta); err != nil {
		return nil, fmt.Errorf("update likes: %w", err)
	}
	return p.posts.Get(ctx, owner, postID)
}

func (p *postService) Comment(ctx context.Context, actor, owner, postID, text string) (*models.Comment, error) {
	if actor == "" {
		return nil, ErrUnauthenticated
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty comment", ErrInvalidInput)
	}
	if _, err := p.posts.Get(ctx, owner, postID); err != nil {
		return nil, err
	}

	comment := &models.Comment{Text: text, User: actor}
	if err := p.posts.AddComment(ctx, owner, postID, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (p *postService) Comments(ctx context.Context, owner, postID string) ([]*models.Comment, error) {
	if _, err := p.posts.Get(ctx, owner, postID); err != nil {
		return nil, err
	}
	return p.posts.ListComments(ctx, owner, postID)
}

func (p *postService) UserPosts(ctx context.Context, owner string) ([]*models.Post, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: empty owner", ErrInvalidInput)
	}
	return p.posts.ListByUser(ctx, owner)
}
