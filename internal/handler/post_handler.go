package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"snapjournal/internal/models"
	"snapjournal/internal/service"
)

// PublishResponse carries the stored post even when notifying followers
// failed afterwards.
type PublishResponse struct {
	Post  *models.Post `json:"post"`
	Error string       `json:"error,omitempty"`
}

func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	file, upload, ok := h.parseImageForm(w, r)
	if !ok {
		return
	}
	defer file.Close()

	rating, err := formInt(r, "rating")
	if err != nil {
		WriteError(w, "rating must be a whole number", http.StatusBadRequest)
		return
	}
	location, err := h.formLocation(r)
	if err != nil {
		WriteError(w, err.Error(), http.StatusBadRequest)
		return
	}

	post, err := h.PostService.Publish(r.Context(), service.PublishRequest{
		Author:   actor(r),
		File:     upload.File,
		FileName: upload.FileName,
		Size:     upload.Size,
		Caption:  r.FormValue("caption"),
		Location: location,
		Rating:   rating,
		Tags:     r.FormValue("tags"),
	})
	if err != nil {
		if post != nil {
			writeSuccess(w, PublishResponse{Post: post, Error: err.Error()}, StatusFor(err))
			return
		}
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, PublishResponse{Post: post}, http.StatusCreated)
}

func formInt(r *http.Request, key string) (int, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// formLocation reads latitude and longitude. Both or neither must be set.
func (h *Handlers) formLocation(r *http.Request) (*models.Location, error) {
	lat := strings.TrimSpace(r.FormValue("latitude"))
	lng := strings.TrimSpace(r.FormValue("longitude"))
	if lat == "" && lng == "" {
		return nil, nil
	}
	if lat == "" || lng == "" {
		return nil, errors.New("latitude and longitude must be sent together")
	}

	var coords models.Coords
	var err error
	if coords.Latitude, err = strconv.ParseFloat(lat, 64); err != nil {
		return nil, errors.New("invalid latitude")
	}
	if coords.Longitude, err = strconv.ParseFloat(lng, 64); err != nil {
		return nil, errors.New("invalid longitude")
	}
	if err := h.Validate.Struct(coords); err != nil {
		return nil, errors.New("coordinates out of range")
	}
	return &models.Location{Coords: coords}, nil
}

func (h *Handlers) LikePost(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	post, err := h.PostService.Like(r.Context(), actor(r), vars["email"], vars["postID"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, post, http.StatusOK)
}

func (h *Handlers) UnlikePost(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	post, err := h.PostService.Unlike(r.Context(), actor(r), vars["email"], vars["postID"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, post, http.StatusOK)
}

func (h *Handlers) ListComments(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	comments, err := h.PostService.Comments(r.Context(), vars["email"], vars["postID"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, comments, http.StatusOK)
}

func (h *Handlers) AddComment(w http.ResponseWriter, r *http.Request) {
	var req models.CommentRequest
	if !h.decode(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	comment, err := h.PostService.Comment(r.Context(), actor(r), vars["email"], vars["postID"], req.Text)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, comment, http.StatusCreated)
}
