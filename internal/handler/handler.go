package handlers

import (
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"snapjournal/internal/config"
	"snapjournal/internal/service"
)

type Handlers struct {
	GraphService        service.GraphService
	PostService         service.PostService
	NotificationService service.NotificationService
	FeedService         service.FeedService
	UserService         service.UserService
	JournalService      service.JournalService
	StatsService        service.StatsService
	AuthService         service.AuthService
	Cfg                 *config.Config
	Validate            *validator.Validate
	Log                 *zap.Logger
}

func NewHandlers(service *service.Service, config *config.Config, log *zap.Logger) *Handlers {
	return &Handlers{
		GraphService:        service.Graph,
		PostService:         service.Post,
		NotificationService: service.Notification,
		FeedService:         service.Feed,
		UserService:         service.User,
		JournalService:      service.Journal,
		StatsService:        service.Stats,
		AuthService:         service.Auth,
		Cfg:                 config,
		Validate:            validator.New(),
		Log:                 log,
	}
}
