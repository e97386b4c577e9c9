package test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"snapjournal/internal/metrics"
	"snapjournal/internal/models"
	"snapjournal/internal/service"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) tokens(args mock.Arguments) (*models.TokenPair, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenPair), args.Error(1)
}

func (m *MockAuthService) Register(ctx context.Context, req models.CreateAccountRequest) (*models.TokenPair, error) {
	return m.tokens(m.Called(ctx, req))
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*models.TokenPair, error) {
	return m.tokens(m.Called(ctx, email, password))
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	return m.tokens(m.Called(ctx, refreshToken))
}

type MockGraphService struct {
	mock.Mock
}

func (m *MockGraphService) Follow(ctx context.Context, actor, target string) error {
	return m.Called(ctx, actor, target).Error(0)
}

func (m *MockGraphService) Unfollow(ctx context.Context, actor, target string) error {
	return m.Called(ctx, actor, target).Error(0)
}

func (m *MockGraphService) IsFollowing(ctx context.Context, actor, target string) (bool, error) {
	args := m.Called(ctx, actor, target)
	return args.Bool(0), args.Error(1)
}

type MockPostService struct {
	mock.Mock
}

func (m *MockPostService) post(args mock.Arguments) (*models.Post, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockPostService) Publish(ctx context.Context, req service.PublishRequest) (*models.Post, error) {
	return m.post(m.Called(ctx, req))
}

func (m *MockPostService) Like(ctx context.Context, actor, owner, postID string) (*models.Post, error) {
	return m.post(m.Called(ctx, actor, owner, postID))
}

func (m *MockPostService) Unlike(ctx context.Context, actor, owner, postID string) (*models.Post, error) {
	return m.post(m.Called(ctx, actor, owner, postID))
}

func (m *MockPostService) Comment(ctx context.Context, actor, owner, postID, text string) (*models.Comment, error) {
	args := m.Called(ctx, actor, owner, postID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Comment), args.Error(1)
}

func (m *MockPostService) Comments(ctx context.Context, owner, postID string) ([]*models.Comment, error) {
	args := m.Called(ctx, owner, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Comment), args.Error(1)
}

func (m *MockPostService) UserPosts(ctx context.Context, owner string) ([]*models.Post, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

type MockFeedService struct {
	mock.Mock
}

func (m *MockFeedService) Posts(ctx context.Context, actor string, withComments bool) ([]*models.Post, error) {
	args := m.Called(ctx, actor, withComments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockFeedService) Journal(ctx context.Context, actor string) ([]*models.JournalEntry, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.JournalEntry), args.Error(1)
}

func (m *MockFeedService) Stories(ctx context.Context, actor string) ([]*models.Story, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Story), args.Error(1)
}

func (m *MockFeedService) MapView(ctx context.Context, actor string) (*models.MapView, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MapView), args.Error(1)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) profile(args mock.Arguments) (*models.Profile, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockUserService) Me(ctx context.Context, actor string) (*models.Profile, error) {
	return m.profile(m.Called(ctx, actor))
}

func (m *MockUserService) Profile(ctx context.Context, viewer, email string) (*models.Profile, error) {
	return m.profile(m.Called(ctx, viewer, email))
}

func (m *MockUserService) Accounts(ctx context.Context, actor, query string) ([]*models.User, error) {
	args := m.Called(ctx, actor, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *MockUserService) SetProfilePicture(ctx context.Context, actor string, upload service.ImageUpload) (string, error) {
	args := m.Called(ctx, actor, upload)
	return args.String(0), args.Error(1)
}

func (m *MockUserService) PostStory(ctx context.Context, actor string, upload service.ImageUpload) (*models.Story, error) {
	args := m.Called(ctx, actor, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Story), args.Error(1)
}

type MockJournalService struct {
	mock.Mock
}

func (m *MockJournalService) AddEntry(ctx context.Context, actor, text, color string) (*models.JournalEntry, error) {
	args := m.Called(ctx, actor, text, color)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.JournalEntry), args.Error(1)
}

func (m *MockJournalService) Prompt(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) FanOut(ctx context.Context, publisher, postID string, followers []string) error {
	return m.Called(ctx, publisher, postID, followers).Error(0)
}

func (m *MockNotificationService) List(ctx context.Context, actor string) ([]*models.Notification, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Notification), args.Error(1)
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context, actor string) error {
	return m.Called(ctx, actor).Error(0)
}

type MockStatsService struct {
	mock.Mock
}

func (m *MockStatsService) Health(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockStatsService) Routes() []metrics.RouteStats {
	return m.Called().Get(0).([]metrics.RouteStats)
}
