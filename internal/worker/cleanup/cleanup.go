// Package cleanup は検索履歴の自動削除ジョブを提供する。
// 保持期間を超過したsearch_historyの行を日次で削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

const defaultRetentionDays = 90

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付ける。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// HistoryCleanupJob は保持期間を超過した検索履歴を削除するジョブ。
// 削除対象がなくてもエラーにならない。
type HistoryCleanupJob struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int
}

// NewHistoryCleanupJob はHistoryCleanupJobを生成する。
// retentionDaysが0以下の場合は90日。
func NewHistoryCleanupJob(db Executor, logger *slog.Logger, retentionDays int) *HistoryCleanupJob {
	if retentionDays <= 0 {
		retentionDays = defaultRetentionDays
	}
	return &HistoryCleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: retentionDays,
	}
}

// Start はinterval間隔でRunを実行する。コンテキストがキャンセルされるまで戻らない。
func (j *HistoryCleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// エラーはRun内でログ出力済み
			_, _ = j.Run(ctx)
		}
	}
}

// Run はsearched_atがRetentionDays日より古い検索履歴を削除し、削除件数を返す。
func (j *HistoryCleanupJob) Run(ctx context.Context) (int64, error) {
	start := time.Now()
	interval := fmt.Sprintf("%d days", j.RetentionDays)

	result, err := j.db.ExecContext(ctx,
		`DELETE FROM search_history WHERE searched_at < now() - $1::interval`, interval)
	if err != nil {
		j.logger.Error("検索履歴クリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return 0, fmt.Errorf("検索履歴クリーンアップの実行に失敗: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.logger.Info("検索履歴クリーンアップが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return deleted, nil
}
