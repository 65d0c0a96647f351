// Package rescore は保存済み記事のスコアを現在のキーワード表で再計算するジョブを提供する。
//
// 取り込み時に確定したスコアは通常変更されない。キーワード表やソースの信頼度を
// 変更した後に、このジョブで明示的に再計算する。
package rescore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/fernandoxavier02/AccountingNews/internal/metrics"
	"github.com/fernandoxavier02/AccountingNews/internal/model"
	"github.com/fernandoxavier02/AccountingNews/internal/repository"
	"github.com/fernandoxavier02/AccountingNews/internal/scoring"
	"github.com/fernandoxavier02/AccountingNews/internal/textnorm"
)

// Recorder はリスコア件数の記録先。
type Recorder interface {
	RecordItemsRescored(count int)
}

// Config はリスコアジョブの設定。
type Config struct {
	// Interval は定期実行の間隔。0以下の場合は定期実行しない。
	Interval time.Duration
	// BatchSize は1回に読み込む記事数（デフォルト: 200）。
	BatchSize int
}

// Job は記事をid順にページングしながらスコアを再計算する。
type Job struct {
	items   repository.ItemRepository
	sources repository.SourceRepository
	scorer  *scoring.Scorer
	metrics Recorder
	logger  *slog.Logger
	config  Config
}

// NewJob はJobを生成する。mがnilの場合は記録しない。
func NewJob(
	items repository.ItemRepository,
	sources repository.SourceRepository,
	scorer *scoring.Scorer,
	m Recorder,
	logger *slog.Logger,
	config Config,
) *Job {
	if m == nil {
		m = metrics.NopCollector{}
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 200
	}
	return &Job{
		items:   items,
		sources: sources,
		scorer:  scorer,
		metrics: m,
		logger:  logger,
		config:  config,
	}
}

// Start はInterval間隔でRunOnceを実行する。
// Intervalが0以下の場合は何もせずに戻る。
func (j *Job) Start(ctx context.Context) {
	if j.config.Interval <= 0 {
		j.logger.Info("リスコアジョブは無効です")
		return
	}

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	j.logger.Info("リスコアジョブを開始しました",
		slog.Duration("interval", j.config.Interval),
		slog.Int("batch_size", j.config.BatchSize),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("リスコアジョブを停止しました")
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil {
				j.logger.Error("リスコアの実行に失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce は全記事を1回走査し、スコアが変わった記事のみ更新する。
// 戻り値は更新した記事数。
func (j *Job) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()

	credibility, err := j.loadCredibility(ctx)
	if err != nil {
		return 0, err
	}

	after := ""
	scanned, updated := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		batch, err := j.items.ListForRescore(ctx, after, j.config.BatchSize)
		if err != nil {
			return updated, fmt.Errorf("リスコア対象記事の取得に失敗しました: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		entries := make([]model.FeedEntry, len(batch))
		for i, it := range batch {
			cred, ok := credibility[it.SourceID]
			if !ok {
				cred = model.DefaultCredibility
			}
			entries[i] = model.FeedEntry{
				Title:             it.Title,
				Description:       textnorm.PlainText(it.Description),
				Content:           textnorm.PlainText(it.Content),
				SourceName:        it.SourceName,
				SourceCredibility: cred,
				PubDate:           it.PubDate,
				IsDateEstimated:   it.IsDateEstimated,
			}
		}

		for i, scored := range j.scorer.EnrichBatch(entries) {
			it := batch[i]
			scores := model.ItemScores{
				RelevanceScore: scored.RelevanceScore,
				Priority:       scored.Priority,
				Category:       scored.Category,
				Keywords:       scored.Keywords,
			}
			if unchanged(it, scores) {
				continue
			}
			if err := j.items.UpdateScores(ctx, it.ID, scores); err != nil {
				return updated, fmt.Errorf("記事スコアの更新に失敗しました: %w", err)
			}
			updated++
		}

		scanned += len(batch)
		after = batch[len(batch)-1].ID
		if len(batch) < j.config.BatchSize {
			break
		}
	}

	j.metrics.RecordItemsRescored(updated)
	j.logger.Info("リスコアが完了しました",
		slog.Int("scanned", scanned),
		slog.Int("updated", updated),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return updated, nil
}

func (j *Job) loadCredibility(ctx context.Context) (map[string]int, error) {
	sources, err := j.sources.List(ctx, model.SourceListFilter{})
	if err != nil {
		return nil, fmt.Errorf("ソース一覧の取得に失敗しました: %w", err)
	}
	out := make(map[string]int, len(sources))
	for _, s := range sources {
		out[s.ID] = s.CredibilityScore
	}
	return out, nil
}

func unchanged(it *model.FeedItem, s model.ItemScores) bool {
	return it.RelevanceScore == s.RelevanceScore &&
		it.Priority == s.Priority &&
		it.Category == s.Category &&
		slices.Equal(it.Keywords, s.Keywords)
}
