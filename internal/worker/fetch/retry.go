package fetch

import (
	"fmt"
	"time"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

// FetchResult はHTTPステータスコードに基づくフェッチ結果の分類。
type FetchResult int

const (
	// FetchResultOK はフェッチ成功（200）。
	FetchResultOK FetchResult = iota
	// FetchResultNotModified はコンテンツ未変更（304）。
	FetchResultNotModified
	// FetchResultStop はフェッチ停止が必要なステータス（404/410/401/403）。
	FetchResultStop
	// FetchResultBackoff はバックオフが必要なステータス（429/5xx）。
	FetchResultBackoff
	// FetchResultUnknown は未知のステータスコード。
	FetchResultUnknown
)

const (
	initialBackoff = 15 * time.Minute
	maxBackoff     = 12 * time.Hour
	// parseFailureThreshold 回連続でパースに失敗したソースは停止する。
	parseFailureThreshold = 10
	maxErrorMessageLength = 500
)

// ClassifyHTTPStatus はHTTPステータスコードをフェッチ結果に分類する。
func ClassifyHTTPStatus(statusCode int) FetchResult {
	switch {
	case statusCode == 200:
		return FetchResultOK
	case statusCode == 304:
		return FetchResultNotModified
	case statusCode == 404 || statusCode == 410:
		return FetchResultStop
	case statusCode == 401 || statusCode == 403:
		return FetchResultStop
	case statusCode == 429:
		return FetchResultBackoff
	case statusCode >= 500:
		return FetchResultBackoff
	default:
		return FetchResultUnknown
	}
}

// CalculateBackoff は連続エラー回数に基づく指数バックオフ遅延を返す。
// 初回15分から2倍ずつ増加し、最大12時間。
func CalculateBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// MarkProcessing はフェッチ開始時の状態を設定する。
func MarkProcessing(src *model.Source, now time.Time) {
	src.LastFetchStatus = model.FetchStatusProcessing
	src.LastFetchAt = &now
	src.FetchCount++
}

// ApplySuccess はフェッチ成功時の状態を設定する。
// 連続エラー回数とエラーメッセージをリセットし、interval後に次回フェッチを予定する。
func ApplySuccess(src *model.Source, interval time.Duration, now time.Time) {
	src.LastFetchStatus = model.FetchStatusSuccess
	src.SuccessCount++
	src.ConsecutiveErrors = 0
	src.LastErrorMessage = ""
	src.NextFetchAt = now.Add(interval)
}

// ApplyBackoff は一時的な失敗としてバックオフを適用する。
func ApplyBackoff(src *model.Source, reason string, now time.Time) {
	applyFailure(src, model.FetchStatusError, reason, now)
}

// ApplyTimeout はタイムアウトとしてバックオフを適用する。
func ApplyTimeout(src *model.Source, reason string, now time.Time) {
	applyFailure(src, model.FetchStatusTimeout, reason, now)
}

// ApplyStopSource は恒久的なエラーとしてソースのフェッチを停止する。
func ApplyStopSource(src *model.Source, reason string) {
	src.LastFetchStatus = model.FetchStatusStopped
	src.LastErrorMessage = truncate(reason)
}

// ApplyParseFailure はパース失敗を記録する。閾値に達した場合は停止する。
func ApplyParseFailure(src *model.Source, reason string, now time.Time) {
	applyFailure(src, model.FetchStatusError, fmt.Sprintf("パース失敗: %s", reason), now)
	if src.ConsecutiveErrors >= parseFailureThreshold {
		ApplyStopSource(src, fmt.Sprintf("パース失敗が%d回連続したためフェッチを停止しました: %s", src.ConsecutiveErrors, reason))
	}
}

func applyFailure(src *model.Source, status model.FetchStatus, reason string, now time.Time) {
	src.ConsecutiveErrors++
	src.LastFetchStatus = status
	src.LastErrorMessage = truncate(reason)
	src.NextFetchAt = now.Add(CalculateBackoff(src.ConsecutiveErrors - 1))
}

func truncate(msg string) string {
	r := []rune(msg)
	if len(r) <= maxErrorMessageLength {
		return msg
	}
	return string(r[:maxErrorMessageLength])
}
