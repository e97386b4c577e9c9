package repository

import (
	"context"
	"time"

	"snapjournal/internal/docstore"
	"snapjournal/internal/models"
)

const (
	usersCollection         = "users"
	postsCollection         = "posts"
	commentsCollection      = "comments"
	journalCollection       = "journalEntries"
	notificationsCollection = "notifications"
	notiCollection          = "noti"
	accountsCollection      = "accounts"
	refreshTokensCollection = "refreshTokens"
	settingsCollection      = "settings"

	journalPromptKey = "journalPrompt"
)

const (
	fieldEmail      = "email"
	fieldFollowers  = "followers"
	fieldFollowing  = "following"
	fieldProfilePic = "profilePic"
	fieldStoryImage = "storyImage"
	fieldStoryTitle = "storyTitle"
	fieldLikes      = "likes"
	fieldTimestamp  = "timestamp"
	fieldRead       = "read"
)

type UserRepository interface {
	Get(ctx context.Context, email string) (*models.User, error)
	// Ensure returns the user row, creating it with empty graph fields when absent.
	Ensure(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	SetProfilePicture(ctx context.Context, email, url string) error
	SetStory(ctx context.Context, email, imageURL, title string) error

	// Single-row halves of a follow edge. Each is an idempotent upsert.
	AddFollower(ctx context.Context, target, follower string) error
	AddFollowing(ctx context.Context, actor, followed string) error
	RemoveFollower(ctx context.Context, target, follower string) error
	RemoveFollowing(ctx context.Context, actor, followed string) error
	// Both halves of an edge in one atomic batch.
	Link(ctx context.Context, actor, target string) error
	Unlink(ctx context.Context, actor, target string) error
}

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	Get(ctx context.Context, owner, postID string) (*models.Post, error)
	ListByUser(ctx context.Context, owner string) ([]*models.Post, error)
	AddLikes(ctx context.Context, owner, postID string, delta int64) error
	AddComment(ctx context.Context, owner, postID string, comment *models.Comment) error
	ListComments(ctx context.Context, owner, postID string) ([]*models.Comment, error)
}

type NotificationRepository interface {
	// CreateBatch writes one notification per recipient, keyed by id, in one atomic batch.
	CreateBatch(ctx context.Context, recipients []string, id, message string) error
	List(ctx context.Context, recipient string) ([]*models.Notification, error)
	MarkRead(ctx context.Context, recipient string, ids []string) error
}

type JournalRepository interface {
	Create(ctx context.Context, entry *models.JournalEntry) error
	ListByUser(ctx context.Context, email string) ([]*models.JournalEntry, error)
}

type AccountRepository interface {
	Create(ctx context.Context, email, password string) (*models.Account, error)
	VerifyPassword(ctx context.Context, email, password string) (*models.Account, error)
	UpdateRefreshToken(ctx context.Context, email, refreshToken string, expiryTime time.Time) error
	GetByRefreshToken(ctx context.Context, refreshToken string) (*models.Account, error)
}

type SettingsRepository interface {
	JournalPrompt(ctx context.Context) (string, error)
	SetJournalPrompt(ctx context.Context, prompt string) error
}

type Repository struct {
	Store         docstore.Store
	Users         UserRepository
	Posts         PostRepository
	Notifications NotificationRepository
	Journal       JournalRepository
	Accounts      AccountRepository
	Settings      SettingsRepository
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{
		Store:         store,
		Users:         NewUserRepository(store),
		Posts:         NewPostRepository(store),
		Notifications: NewNotificationRepository(store),
		Journal:       NewJournalRepository(store),
		Accounts:      NewAccountRepository(store),
		Settings:      NewSettingsRepository(store),
	}
}

// Collections lists every collection name the repositories write to.
func Collections() []string {
	return []string{
		usersCollection, postsCollection, commentsCollection, journalCollection,
		notificationsCollection, notiCollection, accountsCollection,
		refreshTokensCollection, settingsCollection,
	}
}

func userRef(email string) docstore.DocRef {
	return docstore.Collection(usersCollection).Doc(email)
}

func postsRef(owner string) docstore.CollectionRef {
	return userRef(owner).Collection(postsCollection)
}

func commentsRef(owner, postID string) docstore.CollectionRef {
	return postsRef(owner).Doc(postID).Collection(commentsCollection)
}

func journalRef(email string) docstore.CollectionRef {
	return userRef(email).Collection(journalCollection)
}

func notiRef(recipient string) docstore.CollectionRef {
	return docstore.Collection(notificationsCollection).Doc(recipient).Collection(notiCollection)
}

// decodeAll decodes snapshots in order and hands each its document id.
func decodeAll[T any](snaps []docstore.Snapshot, setID func(*T, string)) ([]*T, error) {
	out := make([]*T, 0, len(snaps))
	for _, snap := range snaps {
		v := new(T)
		if err := snap.DataTo(v); err != nil {
			return nil, err
		}
		if setID != nil {
			setID(v, snap.Ref().ID())
		}
		out = append(out, v)
	}
	return out, nil
}
