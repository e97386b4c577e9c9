package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"snapjournal/internal/docstore"
	"snapjournal/internal/docstore/memstore"
	"snapjournal/internal/models"
	"snapjournal/internal/repository"
)

func TestFeed_OneQueryPerFollowedUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.follow(t, "me@x.com", "u1@x.com")
	env.follow(t, "me@x.com", "u2@x.com")
	env.publish(t, "u1@x.com", "u1-first")
	env.publish(t, "u2@x.com", "u2-first")
	env.publish(t, "u1@x.com", "u1-second")
	env.publish(t, "stranger@x.com", "hidden")

	postQueries := 0
	env.store.SetHooks(memstore.Hooks{OnQuery: func(coll docstore.CollectionRef) {
		if coll.Name() == "posts" {
			postQueries++
		}
	}})

	posts, err := env.svc.Feed.Posts(ctx, "me@x.com", false)
	require.NoError(t, err)
	assert.Equal(t, 2, postQueries)

	var captions []string
	for _, p := range posts {
		captions = append(captions, p.Caption)
	}
	assert.Equal(t, []string{"u1-first", "u1-second", "u2-first"}, captions)
}

// lastFirst holds back the listing for first until every other listing has
// returned, so the first followed user finishes last.
type lastFirst struct {
	repository.PostRepository
	first  string
	others sync.WaitGroup
}

func (l *lastFirst) ListByUser(ctx context.Context, owner string) ([]*models.Post, error) {
	if owner == l.first {
		l.others.Wait()
		return l.PostRepository.ListByUser(ctx, owner)
	}
	defer l.others.Done()
	return l.PostRepository.ListByUser(ctx, owner)
}

func TestFeed_OrderIgnoresCompletionOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.follow(t, "me@x.com", "u1@x.com")
	env.follow(t, "me@x.com", "u2@x.com")
	env.follow(t, "me@x.com", "u3@x.com")
	env.publish(t, "u1@x.com", "u1-first")
	env.publish(t, "u2@x.com", "u2-first")
	env.publish(t, "u3@x.com", "u3-first")
	env.publish(t, "u1@x.com", "u1-second")

	posts := &lastFirst{PostRepository: env.repo.Posts, first: "u1@x.com"}
	posts.others.Add(2)
	feed := NewFeedService(env.repo.Users, posts, env.repo.Journal)

	got, err := feed.Posts(ctx, "me@x.com", false)
	require.NoError(t, err)

	var captions []string
	for _, p := range got {
		captions = append(captions, p.Caption)
	}
	assert.Equal(t, []string{"u1-first", "u1-second", "u2-first", "u3-first"}, captions)
}

func TestFeed_WithComments(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.follow(t, "me@x.com", "u1@x.com")
	env.publish(t, "u1@x.com", "p")
	posts, err := env.svc.Post.UserPosts(ctx, "u1@x.com")
	require.NoError(t, err)
	_, err = env.svc.Post.Comment(ctx, "me@x.com", "u1@x.com", posts[0].ID, "nice")
	require.NoError(t, err)

	feed, err := env.svc.Feed.Posts(ctx, "me@x.com", true)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	require.Len(t, feed[0].Comments, 1)
	assert.Equal(t, "nice", feed[0].Comments[0].Text)

	feed, err = env.svc.Feed.Posts(ctx, "me@x.com", false)
	require.NoError(t, err)
	assert.Empty(t, feed[0].Comments)
}

func TestFeed_EmptyCases(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	posts, err := env.svc.Feed.Posts(ctx, "nobody@x.com", false)
	require.NoError(t, err)
	assert.Equal(t, []*models.Post{}, posts)

	_, err = env.svc.Feed.Posts(ctx, "", false)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	stories, err := env.svc.Feed.Stories(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.Empty(t, stories)
}

func TestFeed_Journal(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.follow(t, "me@x.com", "jane@gmail.com")
	require.NoError(t, env.repo.Users.SetProfilePicture(ctx, "jane@gmail.com", "http://media.test/jane.png"))

	_, err := env.svc.Journal.AddEntry(ctx, "jane@gmail.com", "dear diary", "#ff9999")
	require.NoError(t, err)
	_, err = env.svc.Journal.AddEntry(ctx, "me@x.com", "my own entry", "")
	require.NoError(t, err)

	entries, err := env.svc.Feed.Journal(ctx, "me@x.com")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dear diary", entries[0].Text)
	assert.Equal(t, "jane", entries[0].Username)
	assert.Equal(t, "http://media.test/jane.png", entries[0].ProfilePic)
	assert.Equal(t, "#ff9999", entries[0].Color)
}

func TestFeed_Stories(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.follow(t, "me@x.com", "u1@x.com")
	env.follow(t, "me@x.com", "u2@x.com")

	upload := func(actor string) {
		body, size := pngUpload()
		_, err := env.svc.User.PostStory(ctx, actor, ImageUpload{File: body, FileName: "s.png", Size: size})
		require.NoError(t, err)
	}
	upload("me@x.com")
	upload("u2@x.com")
	upload("u2@x.com")

	stories, err := env.svc.Feed.Stories(ctx, "me@x.com")
	require.NoError(t, err)
	require.Len(t, stories, 2)
	assert.Equal(t, "me@x.com", stories[0].Email)
	assert.Equal(t, "me", stories[0].StoryTitle)
	assert.Equal(t, "u2@x.com", stories[1].Email)
	assert.Equal(t, "http://media.test/stories/3.png", stories[1].StoryImage)
}

func TestFeed_MapView(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.follow(t, "me@x.com", "u1@x.com")

	publishAt := func(lat, lng float64) {
		body, size := pngUpload()
		_, err := env.svc.Post.Publish(ctx, PublishRequest{
			Author: "u1@x.com", File: body, FileName: "p.png", Size: size,
			Location: &models.Location{Coords: models.Coords{Latitude: lat, Longitude: lng}},
		})
		require.NoError(t, err)
	}
	publishAt(10, 20)
	publishAt(20, 40)
	env.publish(t, "u1@x.com", "no location")

	view, err := env.svc.Feed.MapView(ctx, "me@x.com")
	require.NoError(t, err)
	assert.Len(t, view.Posts, 2)
	require.NotNil(t, view.Region)
	assert.InDelta(t, 15.0, view.Region.Latitude, 1e-9)
	assert.InDelta(t, 30.0, view.Region.Longitude, 1e-9)
	assert.InDelta(t, 12.0, view.Region.LatitudeDelta, 1e-9)
	assert.InDelta(t, 24.0, view.Region.LongitudeDelta, 1e-9)

	empty, err := env.svc.Feed.MapView(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.Empty(t, empty.Posts)
	assert.Nil(t, empty.Region)
}
