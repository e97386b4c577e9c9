package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// PublicPaths are served without a bearer token.
var PublicPaths = []string{
	"/health",
	"/stats",
	"/api/auth/register",
	"/api/auth/login",
	"/api/auth/refresh-token",
}

// Routes registers every endpoint on r. Auth routes exist only when the
// service manages accounts itself.
func (h *Handlers) Routes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.Stats).Methods(http.MethodGet)

	if h.AuthService != nil {
		r.HandleFunc("/api/auth/register", h.Register).Methods(http.MethodPost)
		r.HandleFunc("/api/auth/login", h.Login).Methods(http.MethodPost)
		r.HandleFunc("/api/auth/refresh-token", h.RefreshToken).Methods(http.MethodPost)
	}

	// Full paths on r: a subrouter would answer a method mismatch with 404.
	r.HandleFunc("/api/me", h.GetCurrentUser).Methods(http.MethodGet)
	r.HandleFunc("/api/me/picture", h.SetProfilePicture).Methods(http.MethodPost)
	r.HandleFunc("/api/me/story", h.PostStory).Methods(http.MethodPost)

	r.HandleFunc("/api/users", h.ListAccounts).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{email}", h.GetUser).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{email}/follow", h.Follow).Methods(http.MethodPost)
	r.HandleFunc("/api/users/{email}/follow", h.Unfollow).Methods(http.MethodDelete)
	r.HandleFunc("/api/users/{email}/posts", h.UserPosts).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{email}/posts/{postID}/like", h.LikePost).Methods(http.MethodPost)
	r.HandleFunc("/api/users/{email}/posts/{postID}/like", h.UnlikePost).Methods(http.MethodDelete)
	r.HandleFunc("/api/users/{email}/posts/{postID}/comments", h.ListComments).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{email}/posts/{postID}/comments", h.AddComment).Methods(http.MethodPost)

	r.HandleFunc("/api/posts", h.CreatePost).Methods(http.MethodPost)

	r.HandleFunc("/api/feed", h.Feed).Methods(http.MethodGet)
	r.HandleFunc("/api/stories", h.Stories).Methods(http.MethodGet)
	r.HandleFunc("/api/map", h.Map).Methods(http.MethodGet)

	r.HandleFunc("/api/journal", h.Journal).Methods(http.MethodGet)
	r.HandleFunc("/api/journal", h.AddJournalEntry).Methods(http.MethodPost)
	r.HandleFunc("/api/journal/prompt", h.JournalPrompt).Methods(http.MethodGet)

	r.HandleFunc("/api/notifications", h.Notifications).Methods(http.MethodGet)
	r.HandleFunc("/api/notifications/read", h.MarkNotificationsRead).Methods(http.MethodPost)
}
