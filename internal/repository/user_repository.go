package repository

import (
	"context"
	"fmt"

	"snapjournal/internal/docstore"
	"snapjournal/internal/models"
)

type userRepository struct {
	store docstore.Store
}

func NewUserRepository(store docstore.Store) UserRepository {
	return &userRepository{store: store}
}

func (r *userRepository) Get(ctx context.Context, email string) (*models.User, error) {
	snap, err := r.store.Get(ctx, userRef(email))
	if err != nil {
		return nil, err
	}
	return decodeUser(snap)
}

func (r *userRepository) Ensure(ctx context.Context, email string) (*models.User, error) {
	snap, _, err := docstore.GetOrCreate(ctx, r.store, userRef(email), docstore.Fields{
		fieldEmail:     email,
		fieldFollowers: []string{},
		fieldFollowing: []string{},
	})
	if err != nil {
		return nil, fmt.Errorf("ensure user %s: %w", email, err)
	}
	return decodeUser(snap)
}

func (r *userRepository) List(ctx context.Context) ([]*models.User, error) {
	snaps, err := r.store.Query(ctx, docstore.Collection(usersCollection))
	if err != nil {
		return nil, err
	}
	return decodeAll(snaps, func(u *models.User, id string) {
		// rows created by a profile-picture merge may lack the email field
		if u.Email == "" {
			u.Email = id
		}
	})
}

func (r *userRepository) SetProfilePicture(ctx context.Context, email, url string) error {
	return r.store.Set(ctx, userRef(email), docstore.Fields{fieldProfilePic: url}, true)
}

func (r *userRepository) SetStory(ctx context.Context, email, imageURL, title string) error {
	return r.store.Set(ctx, userRef(email), docstore.Fields{
		fieldStoryImage: imageURL,
		fieldStoryTitle: title,
	}, true)
}

func (r *userRepository) AddFollower(ctx context.Context, target, follower string) error {
	return r.store.Update(ctx, userRef(target), followerSide(target, follower, docstore.ArrayUnion)...)
}

func (r *userRepository) AddFollowing(ctx context.Context, actor, followed string) error {
	return r.store.Update(ctx, userRef(actor), followingSide(actor, followed, docstore.ArrayUnion)...)
}

func (r *userRepository) RemoveFollower(ctx context.Context, target, follower string) error {
	return r.store.Update(ctx, userRef(target), followerSide(target, follower, docstore.ArrayRemove)...)
}

func (r *userRepository) RemoveFollowing(ctx context.Context, actor, followed string) error {
	return r.store.Update(ctx, userRef(actor), followingSide(actor, followed, docstore.ArrayRemove)...)
}

func (r *userRepository) Link(ctx context.Context, actor, target string) error {
	b := r.store.Batch()
	b.Update(userRef(target), followerSide(target, actor, docstore.ArrayUnion)...)
	b.Update(userRef(actor), followingSide(actor, target, docstore.ArrayUnion)...)
	return b.Commit(ctx)
}

func (r *userRepository) Unlink(ctx context.Context, actor, target string) error {
	b := r.store.Batch()
	b.Update(userRef(target), followerSide(target, actor, docstore.ArrayRemove)...)
	b.Update(userRef(actor), followingSide(actor, target, docstore.ArrayRemove)...)
	return b.Commit(ctx)
}

type arrayOp func(field string, values ...any) docstore.Update

// followerSide updates the followed user's row. The empty union on
// following materialises both graph fields on a freshly upserted row.
func followerSide(target, follower string, op arrayOp) []docstore.Update {
	return []docstore.Update{
		docstore.Set(fieldEmail, target),
		op(fieldFollowers, follower),
		docstore.ArrayUnion(fieldFollowing),
	}
}

func followingSide(actor, followed string, op arrayOp) []docstore.Update {
	return []docstore.Update{
		docstore.Set(fieldEmail, actor),
		op(fieldFollowing, followed),
		docstore.ArrayUnion(fieldFollowers),
	}
}

func decodeUser(snap docstore.Snapshot) (*models.User, error) {
	var u models.User
	if err := snap.DataTo(&u); err != nil {
		return nil, err
	}
	if u.Email == "" {
		u.Email = snap.Ref().ID()
	}
	if u.Followers == nil {
		u.Followers = []string{}
	}
	if u.Following == nil {
		u.Following = []string{}
	}
	return &u, nil
}
