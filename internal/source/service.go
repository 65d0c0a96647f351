// Package source はRSS配信元の参照と登録を提供する。
package source

import (
	"context"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
	"github.com/fernandoxavier02/AccountingNews/internal/repository"
)

// 一覧の並び替えキー。
var validOrders = map[string]bool{
	"":                  true,
	"name":              true,
	"credibility_score": true,
	"created_at":        true,
	"last_fetch_at":     true,
}

// URLValidator は配信元URLの安全性を検証する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Service は配信元のサービス層。
type Service struct {
	repo      repository.SourceRepository
	validator URLValidator
}

// NewService はServiceを生成する。
func NewService(repo repository.SourceRepository, validator URLValidator) *Service {
	return &Service{repo: repo, validator: validator}
}

// List は条件に一致する配信元を返す。
func (s *Service) List(ctx context.Context, filter model.SourceListFilter) ([]*model.Source, error) {
	if !validOrders[filter.OrderBy] {
		return nil, model.NewInvalidFilterError("order_by")
	}
	if filter.MinCredibility != nil && (*filter.MinCredibility < 0 || *filter.MinCredibility > 100) {
		return nil, model.NewInvalidFilterError("min_credibility")
	}
	sources, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if sources == nil {
		sources = []*model.Source{}
	}
	return sources, nil
}

// Get は指定IDの配信元を返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Source, error) {
	src, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, model.NewSourceNotFoundError(id)
	}
	return src, nil
}

// Stats は配信元全体の集計を返す。
func (s *Service) Stats(ctx context.Context) (*model.SourceStats, error) {
	return s.repo.Stats(ctx)
}
