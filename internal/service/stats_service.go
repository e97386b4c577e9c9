package service

import (
	"context"

	"snapjournal/internal/docstore"
	"snapjournal/internal/metrics"
)

type StatsService interface {
	// Health pings the document store.
	Health(ctx context.Context) error
	Routes() []metrics.RouteStats
}

type statsService struct {
	store    docstore.Store
	recorder *metrics.Recorder
}

func NewStatsService(store docstore.Store, recorder *metrics.Recorder) StatsService {
	return &statsService{store: store, recorder: recorder}
}

func (s *statsService) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *statsService) Routes() []metrics.RouteStats {
	return s.recorder.Snapshot()
}
