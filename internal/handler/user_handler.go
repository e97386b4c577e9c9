package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

type PictureResponse struct {
	ProfilePic string `json:"profilePic"`
}

type FollowResponse struct {
	Email       string `json:"email"`
	IsFollowing bool   `json:"isFollowing"`
}

func (h *Handlers) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	profile, err := h.UserService.Me(r.Context(), actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, profile, http.StatusOK)
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	profile, err := h.UserService.Profile(r.Context(), actor(r), mux.Vars(r)["email"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, profile, http.StatusOK)
}

func (h *Handlers) ListAccounts(w http.ResponseWriter, r *http.Request) {
	users, err := h.UserService.Accounts(r.Context(), actor(r), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, users, http.StatusOK)
}

func (h *Handlers) Follow(w http.ResponseWriter, r *http.Request) {
	target := mux.Vars(r)["email"]
	if err := h.GraphService.Follow(r.Context(), actor(r), target); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, FollowResponse{Email: target, IsFollowing: true}, http.StatusOK)
}

func (h *Handlers) Unfollow(w http.ResponseWriter, r *http.Request) {
	target := mux.Vars(r)["email"]
	if err := h.GraphService.Unfollow(r.Context(), actor(r), target); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, FollowResponse{Email: target, IsFollowing: false}, http.StatusOK)
}

func (h *Handlers) UserPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.PostService.UserPosts(r.Context(), mux.Vars(r)["email"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, posts, http.StatusOK)
}

func (h *Handlers) SetProfilePicture(w http.ResponseWriter, r *http.Request) {
	file, upload, ok := h.parseImageForm(w, r)
	if !ok {
		return
	}
	defer file.Close()

	url, err := h.UserService.SetProfilePicture(r.Context(), actor(r), upload)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, PictureResponse{ProfilePic: url}, http.StatusOK)
}

func (h *Handlers) PostStory(w http.ResponseWriter, r *http.Request) {
	file, upload, ok := h.parseImageForm(w, r)
	if !ok {
		return
	}
	defer file.Close()

	story, err := h.UserService.PostStory(r.Context(), actor(r), upload)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, story, http.StatusCreated)
}
