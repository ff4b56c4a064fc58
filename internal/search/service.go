package search

import (
	"context"

	"go.uber.org/zap"
)

// Service is the facade that tries Meilisearch first and falls back to a
// local searcher (PostgreSQL FTS or an in-memory scan).
type Service struct {
	meili    *Meili
	fallback Searcher
	loader   RecordSource
	log      *zap.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured. loader feeds ReindexAll and may be nil.
func NewService(meili *Meili, fallback Searcher, loader RecordSource, log *zap.Logger) *Service {
	return &Service{meili: meili, fallback: fallback, loader: loader, log: log.Named("search")}
}

// Search tries Meilisearch if healthy, otherwise falls back.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.log.Warn("meilisearch error, falling back", zap.Error(err))
	}

	if s.fallback == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.log.Error("fallback search failed", zap.Error(err))
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexProject indexes a project (fire-and-forget to Meilisearch).
func (s *Service) IndexProject(p ProjectRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexProject(p); err != nil {
			s.log.Warn("index project", zap.String("project_id", p.ID), zap.Error(err))
		}
	}()
}

// DeleteProject removes a project from the search index (fire-and-forget).
func (s *Service) DeleteProject(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteProject(id); err != nil {
			s.log.Warn("delete project", zap.String("project_id", id), zap.Error(err))
		}
	}()
}

// ReindexAll pushes every project into Meilisearch. Called on boot.
func (s *Service) ReindexAll(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.loader == nil {
		return
	}
	projects, err := s.loader(ctx)
	if err != nil {
		s.log.Warn("reindex load failed", zap.Error(err))
		return
	}
	if err := s.meili.IndexProjects(projects); err != nil {
		s.log.Warn("reindex projects", zap.Error(err))
		return
	}
	s.log.Info("reindexed projects", zap.Int("count", len(projects)))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
