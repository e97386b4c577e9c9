package handlers

import (
	"net/http"
	"strconv"

	"snapjournal/internal/models"
)

type PromptResponse struct {
	Prompt string `json:"prompt"`
}

func (h *Handlers) Feed(w http.ResponseWriter, r *http.Request) {
	withComments, _ := strconv.ParseBool(r.URL.Query().Get("comments"))
	posts, err := h.FeedService.Posts(r.Context(), actor(r), withComments)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, posts, http.StatusOK)
}

func (h *Handlers) Stories(w http.ResponseWriter, r *http.Request) {
	stories, err := h.FeedService.Stories(r.Context(), actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, stories, http.StatusOK)
}

func (h *Handlers) Map(w http.ResponseWriter, r *http.Request) {
	view, err := h.FeedService.MapView(r.Context(), actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, view, http.StatusOK)
}

func (h *Handlers) Journal(w http.ResponseWriter, r *http.Request) {
	entries, err := h.FeedService.Journal(r.Context(), actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, entries, http.StatusOK)
}

func (h *Handlers) AddJournalEntry(w http.ResponseWriter, r *http.Request) {
	var req models.JournalEntryRequest
	if !h.decode(w, r, &req) {
		return
	}

	entry, err := h.JournalService.AddEntry(r.Context(), actor(r), req.Text, req.Color)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, entry, http.StatusCreated)
}

func (h *Handlers) JournalPrompt(w http.ResponseWriter, r *http.Request) {
	prompt, err := h.JournalService.Prompt(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, PromptResponse{Prompt: prompt}, http.StatusOK)
}

func (h *Handlers) Notifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.NotificationService.List(r.Context(), actor(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, list, http.StatusOK)
}

func (h *Handlers) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := h.NotificationService.MarkAllRead(r.Context(), actor(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, MessageResponse{Message: "notifications marked read"}, http.StatusOK)
}
