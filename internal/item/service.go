package item

import (
	"context"
	"fmt"
	"strings"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
	"github.com/fernandoxavier02/AccountingNews/internal/repository"
)

const (
	defaultListLimit  = 50
	maxListLimit      = 200
	maxSearchKeywords = 10
)

// ItemService は記事の参照系サービス。
type ItemService struct {
	itemRepo repository.ItemRepository
}

// NewItemService はItemServiceを生成する。
func NewItemService(itemRepo repository.ItemRepository) *ItemService {
	return &ItemService{itemRepo: itemRepo}
}

// ListItems は条件に一致する記事を公開日時の降順で返す。総件数も合わせて返す。
// Limitが0の場合は50件。
func (s *ItemService) ListItems(ctx context.Context, filter model.ItemListFilter) (*model.ItemPage, error) {
	if filter.Limit == 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit < 1 || filter.Limit > maxListLimit {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("limitは1〜%dで指定してください", maxListLimit))
	}
	if filter.Offset < 0 {
		return nil, model.NewInvalidRequestError("offsetは0以上で指定してください")
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, model.NewInvalidFilterError("priority")
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, model.NewInvalidFilterError("category")
	}
	filter.SearchKeywords = splitKeywords(filter.SearchKeywords)
	if len(filter.SearchKeywords) > maxSearchKeywords {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("search_keywordsは%d語以内で指定してください", maxSearchKeywords))
	}

	total, err := s.itemRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := []*model.FeedItem{}
	if filter.Offset < total {
		items, err = s.itemRepo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []*model.FeedItem{}
		}
	}
	return &model.ItemPage{
		Items:      items,
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

// splitKeywords は各要素を空白で分割し、空の語を取り除く。
func splitKeywords(in []string) []string {
	var out []string
	for _, kw := range in {
		out = append(out, strings.Fields(kw)...)
	}
	return out
}

// GetItem は記事を1件返す。
func (s *ItemService) GetItem(ctx context.Context, id string) (*model.FeedItem, error) {
	item, err := s.itemRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(id)
	}
	return item, nil
}

// Stats は記事全体の集計を返す。
func (s *ItemService) Stats(ctx context.Context) (*model.ItemStats, error) {
	return s.itemRepo.Stats(ctx)
}
