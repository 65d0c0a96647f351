// Package item は記事の取り込みと参照機能を提供する。
package item

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fernandoxavier02/AccountingNews/internal/filter"
	"github.com/fernandoxavier02/AccountingNews/internal/metrics"
	"github.com/fernandoxavier02/AccountingNews/internal/model"
	"github.com/fernandoxavier02/AccountingNews/internal/repository"
	"github.com/fernandoxavier02/AccountingNews/internal/scoring"
	"github.com/fernandoxavier02/AccountingNews/internal/security"
	"github.com/fernandoxavier02/AccountingNews/internal/textnorm"
)

// IngestRecorder は取り込みメトリクスの記録先。
type IngestRecorder interface {
	RecordIngest(result model.IngestResult)
	RecordItemPriority(priority model.Priority)
}

// IngestService はパース済み記事をフィルタ・スコアリングして保存する。
// 保存済みの記事はguidで重複排除し、既存行のスコアは書き換えない。
type IngestService struct {
	itemRepo  repository.ItemRepository
	sanitizer security.ContentSanitizerService
	filter    *filter.ContentFilter
	scorer    *scoring.Scorer
	metrics   IngestRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewIngestService はIngestServiceを生成する。mがnilの場合はメトリクスを記録しない。
func NewIngestService(
	itemRepo repository.ItemRepository,
	sanitizer security.ContentSanitizerService,
	contentFilter *filter.ContentFilter,
	scorer *scoring.Scorer,
	m IngestRecorder,
	logger *slog.Logger,
) *IngestService {
	if m == nil {
		m = metrics.NopCollector{}
	}
	return &IngestService{
		itemRepo:  itemRepo,
		sanitizer: sanitizer,
		filter:    contentFilter,
		scorer:    scorer,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Ingest は1ソース分の記事を取り込む。
//
// 各記事のHTMLをサニタイズし、プレーンテキストにしたバッチをまとめてフィルタにかける。
// 不採用の記事は保存せず件数のみ数える。採用した記事は判定スコアの高い順に、
// ソースの信頼度と名前を使ってスコアリングし、guidが未登録の場合のみ保存する。
// 保存に失敗した場合はそこまでの集計とエラーを返す。
func (s *IngestService) Ingest(ctx context.Context, source *model.Source, items []model.ParsedItem) (model.IngestResult, error) {
	var result model.IngestResult
	if len(items) == 0 {
		return result, nil
	}

	now := s.now()
	entries := make([]model.FeedEntry, len(items))
	descriptions := make([]string, len(items))
	contents := make([]string, len(items))
	for i, parsed := range items {
		descriptions[i] = s.sanitizer.Sanitize(parsed.Description)
		contents[i] = s.sanitizer.Sanitize(parsed.Content)

		entries[i] = model.FeedEntry{
			Title:             strings.TrimSpace(parsed.Title),
			Description:       textnorm.PlainText(descriptions[i]),
			Content:           textnorm.PlainText(contents[i]),
			SourceName:        source.Name,
			SourceCredibility: source.CredibilityScore,
			PubDate:           parsed.PubDate,
		}
		if entries[i].PubDate == nil {
			fetched := now
			entries[i].PubDate = &fetched
			entries[i].IsDateEstimated = true
		}
	}

	admitted := s.filter.FilterBatch(entries)
	result.Admitted = len(admitted)
	result.Rejected = len(items) - len(admitted)
	if result.Rejected > 0 && s.logger.Enabled(ctx, slog.LevelDebug) {
		kept := make(map[int]bool, len(admitted))
		for _, a := range admitted {
			kept[a.Index] = true
		}
		for i := range entries {
			if !kept[i] {
				s.logger.Debug("記事をフィルタで除外しました",
					slog.String("source_id", source.ID),
					slog.String("title", entries[i].Title),
				)
			}
		}
	}

	for _, a := range admitted {
		parsed := items[a.Index]
		entry := a.FeedEntry
		description := descriptions[a.Index]
		content := contents[a.Index]

		scored := s.scorer.Enrich(entry)
		item := &model.FeedItem{
			SourceID:        source.ID,
			SourceName:      source.Name,
			GUID:            DedupKey(parsed.GUID, parsed.Link, parsed.Title),
			Title:           entry.Title,
			Description:     description,
			Content:         content,
			Link:            parsed.Link,
			PubDate:         entry.PubDate,
			IsDateEstimated: entry.IsDateEstimated,
			Priority:        scored.Priority,
			RelevanceScore:  scored.RelevanceScore,
			Keywords:        scored.Keywords,
			Category:        scored.Category,
		}

		inserted, err := s.itemRepo.InsertIfAbsent(ctx, item)
		if err != nil {
			s.logger.Error("記事の保存に失敗しました",
				slog.String("source_id", source.ID),
				slog.String("guid", item.GUID),
				slog.String("error", err.Error()),
			)
			s.metrics.RecordIngest(result)
			return result, fmt.Errorf("記事の保存に失敗: %w", err)
		}
		if !inserted {
			result.Duplicates++
			continue
		}
		result.Inserted++
		s.metrics.RecordItemPriority(item.Priority)
	}

	s.metrics.RecordIngest(result)
	s.logger.Info("記事の取り込みが完了しました",
		slog.String("source_id", source.ID),
		slog.Int("admitted", result.Admitted),
		slog.Int("inserted", result.Inserted),
		slog.Int("duplicates", result.Duplicates),
		slog.Int("rejected", result.Rejected),
	)
	return result, nil
}

// DedupKey は記事の重複排除キーを返す。
// フィードのGUIDがあればそれを使い、なければlinkとtitleの連結のMD5を使う。
func DedupKey(guid, link, title string) string {
	if g := strings.TrimSpace(guid); g != "" {
		return g
	}
	sum := md5.Sum([]byte(link + title))
	return hex.EncodeToString(sum[:])
}
