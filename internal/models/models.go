package models

import (
	"time"
)

// User is keyed by email. Followers and Following are the two sides of the
// follow graph and must mirror each other.
type User struct {
	Email      string   `json:"email"`
	Followers  []string `json:"followers"`
	Following  []string `json:"following"`
	ProfilePic string   `json:"profilePic,omitempty"`
	StoryImage string   `json:"storyImage,omitempty"`
	StoryTitle string   `json:"storyTitle,omitempty"`
}

type Coords struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

type Location struct {
	Coords Coords `json:"coords"`
}

// Post lives under users/{email}/posts. Email duplicates the owner key for
// queries and is not authoritative.
type Post struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	ImageURL  string     `json:"imageUrl"`
	Caption   string     `json:"caption"`
	Location  *Location  `json:"location"`
	Rating    int        `json:"rating"`
	Tags      []string   `json:"tags"`
	Likes     int        `json:"likes"`
	Timestamp time.Time  `json:"timestamp"`
	Comments  []*Comment `json:"comments,omitempty"`
}

type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
}

type JournalEntry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
	Color     string    `json:"color"`
	// set on read from the author's row
	Username   string `json:"username,omitempty"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// Notification is keyed by the id of the post that produced it.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Account holds credentials for the local JWT provider.
type Account struct {
	Email                  string    `json:"email"`
	PasswordHash           string    `json:"passwordHash"`
	RefreshToken           string    `json:"refreshToken"`
	RefreshTokenExpiryTime time.Time `json:"refreshTokenExpiryTime"`
	CreatedAt              time.Time `json:"createdAt"`
}

type Profile struct {
	User           User    `json:"user"`
	FollowersCount int     `json:"followersCount"`
	FollowingCount int     `json:"followingCount"`
	IsFollowing    bool    `json:"isFollowing"`
	Posts          []*Post `json:"posts"`
}

type Story struct {
	Email      string `json:"email"`
	StoryImage string `json:"storyImage"`
	StoryTitle string `json:"storyTitle"`
	ProfilePic string `json:"profilePic,omitempty"`
}

type Region struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	LatitudeDelta  float64 `json:"latitudeDelta"`
	LongitudeDelta float64 `json:"longitudeDelta"`
}

type MapView struct {
	Posts  []*Post `json:"posts"`
	Region *Region `json:"region"`
}

type CreateAccountRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type CommentRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

type JournalEntryRequest struct {
	Text  string `json:"text" validate:"required,max=5000"`
	Color string `json:"color"`
}
