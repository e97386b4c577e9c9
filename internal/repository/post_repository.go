package repository

import (
	"context"
	"fmt"

	"snapjournal/internal/docstore"
	"snapjournal/internal/models"
)

type postRepository struct {
	store docstore.Store
}

func NewPostRepository(store docstore.Store) PostRepository {
	return &postRepository{store: store}
}

// Create appends the post under its owner's row and fills in the id and
// server-assigned timestamp.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	fields := docstore.Fields{
		"imageUrl":     post.ImageURL,
		"caption":      post.Caption,
		"location":     nil,
		"rating":       post.Rating,
		"tags":         nonNilTags(post.Tags),
		fieldLikes:     0,
		fieldTimestamp: docstore.ServerTimestamp,
		fieldEmail:     post.Email,
	}
	if post.Location != nil {
		fields["location"] = docstore.Fields{
			"coords": docstore.Fields{
				"latitude":  post.Location.Coords.Latitude,
				"longitude": post.Location.Coords.Longitude,
			},
		}
	}

	ref, err := r.store.Add(ctx, postsRef(post.Email), fields)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}

	stored, err := r.Get(ctx, post.Email, ref.ID())
	if err != nil {
		return fmt.Errorf("read created post: %w", err)
	}
	*post = *stored
	return nil
}

func (r *postRepository) Get(ctx context.Context, owner, postID string) (*models.Post, error) {
	snap, err := r.store.Get(ctx, postsRef(owner).Doc(postID))
	if err != nil {
		return nil, err
	}
	var p models.Post
	if err := snap.DataTo(&p); err != nil {
		return nil, err
	}
	p.ID = snap.Ref().ID()
	return &p, nil
}

// ListByUser returns the owner's posts in store order.
func (r *postRepository) ListByUser(ctx context.Context, owner string) ([]*models.Post, error) {
	snaps, err := r.store.Query(ctx, postsRef(owner))
	if err != nil {
		return nil, fmt.Errorf("list posts of %s: %w", owner, err)
	}
	return decodeAll(snaps, func(p *models.Post, id string) { p.ID = id })
}

// AddLikes never takes the count below zero, however many callers race.
func (r *postRepository) AddLikes(ctx context.Context, owner, postID string, delta int64) error {
	return r.store.Update(ctx, postsRef(owner).Doc(postID), docstore.IncrementFloor(fieldLikes, delta, 0))
}

func (r *postRepository) AddComment(ctx context.Context, owner, postID string, comment *models.Comment) error {
	ref, err := r.store.Add(ctx, commentsRef(owner, postID), docstore.Fields{
		"text":         comment.Text,
		"user":         comment.User,
		fieldTimestamp: docstore.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("add comment: %w", err)
	}

	snap, err := r.store.Get(ctx, ref)
	if err != nil {
		return fmt.Errorf("read comment: %w", err)
	}
	if err := snap.DataTo(comment); err != nil {
		return err
	}
	comment.ID = ref.ID()
	return nil
}

func (r *postRepository) ListComments(ctx context.Context, owner, postID string) ([]*models.Comment, error) {
	snaps, err := r.store.Query(ctx, commentsRef(owner, postID), docstore.OrderBy(fieldTimestamp, docstore.Asc))
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return decodeAll(snaps, func(c *models.Comment, id string) { c.ID = id })
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
