package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"snapjournal/internal/docstore"
	"snapjournal/internal/models"
	"snapjournal/internal/repository"
)

// regionPadding widens the map viewport around the outermost pins.
const regionPadding = 1.2

type FeedService interface {
	Posts(ctx context.Context, actor string, withComments bool) ([]*models.Post, error)
	Journal(ctx context.Context, actor string) ([]*models.JournalEntry, error)
	Stories(ctx context.Context, actor string) ([]*models.Story, error)
	MapView(ctx context.Context, actor string) (*models.MapView, error)
}

type feedService struct {
	users   repository.UserRepository
	posts   repository.PostRepository
	journal repository.JournalRepository
}

func NewFeedService(users repository.UserRepository, posts repository.PostRepository, journal repository.JournalRepository) FeedService {
	return &feedService{users: users, posts: posts, journal: journal}
}

// following returns the actor's row, or nil when the actor has none yet.
func (s *feedService) following(ctx context.Context, actor string) (*models.User, error) {
	if actor == "" {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.Get(ctx, actor)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// perFollowed runs fetch once per followed user concurrently and concatenates
// the results in following order.
func perFollowed[T any](ctx context.Context, following []string, fetch func(ctx context.Context, email string) ([]T, error)) ([]T, error) {
	results := make([][]T, len(following))
	g, gctx := errgroup.WithContext(ctx)
	for i, email := range following {
		g.Go(func() error {
			items, err := fetch(gctx, email)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []T
	for _, items := range results {
		out = append(out, items...)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func (s *feedService) Posts(ctx context.Context, actor string, withComments bool) ([]*models.Post, error) {
	user, err := s.following(ctx, actor)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return []*models.Post{}, nil
	}

	return perFollowed(ctx, user.Following, func(ctx context.Context, email string) ([]*models.Post, error) {
		posts, err := s.posts.ListByUser(ctx, email)
		if err != nil {
			return nil, err
		}
		if !withComments {
			return posts, nil
		}
		for _, p := range posts {
			comments, err := s.posts.ListComments(ctx, email, p.ID)
			if err != nil {
				return nil, err
			}
			p.Comments = comments
		}
		return posts, nil
	})
}

// Journal returns entries of followed users, each labelled with the author's
// username and profile picture.
func (s *feedService) Journal(ctx context.Context, actor string) ([]*models.JournalEntry, error) {
	user, err := s.following(ctx, actor)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return []*models.JournalEntry{}, nil
	}

	return perFollowed(ctx, user.Following, func(ctx context.Context, email string) ([]*models.JournalEntry, error) {
		var profilePic string
		author, err := s.users.Get(ctx, email)
		switch {
		case err == nil:
			profilePic = author.ProfilePic
		case !errors.Is(err, docstore.ErrNotFound):
			return nil, err
		}

		entries, err := s.journal.ListByUser(ctx, email)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			e.Username = Username(email)
			e.ProfilePic = profilePic
		}
		return entries, nil
	})
}

// Stories returns the actor's own story followed by those of followed users,
// one per user, skipping users without both a story image and title.
func (s *feedService) Stories(ctx context.Context, actor string) ([]*models.Story, error) {
	user, err := s.following(ctx, actor)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return []*models.Story{}, nil
	}

	followed, err := perFollowed(ctx, user.Following, func(ctx context.Context, email string) ([]*models.User, error) {
		u, err := s.users.Get(ctx, email)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return []*models.User{u}, nil
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	stories := []*models.Story{}
	for _, u := range append([]*models.User{user}, followed...) {
		if seen[u.Email] {
			continue
		}
		seen[u.Email] = true
		if u.StoryImage == "" || u.StoryTitle == "" {
			continue
		}
		stories = append(stories, &models.Story{
			Email:      u.Email,
			StoryImage: u.StoryImage,
			StoryTitle: u.StoryTitle,
			ProfilePic: u.ProfilePic,
		})
	}
	return stories, nil
}

// MapView returns the located posts of followed users and a region framing
// all of them. Region is nil when no post carries a location.
func (s *feedService) MapView(ctx context.Context, actor string) (*models.MapView, error) {
	posts, err := s.Posts(ctx, actor, false)
	if err != nil {
		return nil, err
	}

	view := &models.MapView{Posts: []*models.Post{}}
	for _, p := range posts {
		if p.Location != nil {
			view.Posts = append(view.Posts, p)
		}
	}
	view.Region = regionFor(view.Posts)
	return view, nil
}

func regionFor(posts []*models.Post) *models.Region {
	if len(posts) == 0 {
		return nil
	}
	first := posts[0].Location.Coords
	minLat, maxLat := first.Latitude, first.Latitude
	minLng, maxLng := first.Longitude, first.Longitude
	for _, p := range posts[1:] {
		c := p.Location.Coords
		minLat, maxLat = min(minLat, c.Latitude), max(maxLat, c.Latitude)
		minLng, maxLng = min(minLng, c.Longitude), max(maxLng, c.Longitude)
	}
	return &models.Region{
		Latitude:       (minLat + maxLat) / 2,
		Longitude:      (minLng + maxLng) / 2,
		LatitudeDelta:  (maxLat - minLat) * regionPadding,
		LongitudeDelta: (maxLng - minLng) * regionPadding,
	}
}

// Username is the local part of an email address.
func Username(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}
