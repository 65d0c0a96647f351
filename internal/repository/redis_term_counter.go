package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

const (
	termsKey        = "search:terms"
	termsLastKey    = "search:terms:last"
	termsResultsKey = "search:terms:results"

	termScanBatch = 100
)

// RedisTermCounter は検索語カウンタをRedisのソート済み集合で保持する。
// 回数は search:terms、最終検索時刻（UNIX秒）は search:terms:last、
// 直近の結果件数は search:terms:results に保存する。
type RedisTermCounter struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisTermCounter はRedisTermCounterを生成する。
func NewRedisTermCounter(rdb *redis.Client) *RedisTermCounter {
	return &RedisTermCounter{rdb: rdb, now: time.Now}
}

// IncrementTerm は検索語の回数を1増やし、直近の結果件数を記録する。
func (c *RedisTermCounter) IncrementTerm(ctx context.Context, term string, resultsCount int) error {
	term = strings.ToLower(term)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZIncrBy(ctx, termsKey, 1, term)
		pipe.HSet(ctx, termsLastKey, term, c.now().Unix())
		pipe.HSet(ctx, termsResultsKey, term, resultsCount)
		return nil
	})
	if err != nil {
		return fmt.Errorf("検索語カウンタの更新に失敗しました: %w", err)
	}
	return nil
}

// PopularTerms はsince以降に検索された語を回数の降順で返す。
func (c *RedisTermCounter) PopularTerms(ctx context.Context, since time.Time, limit int) ([]model.TermCount, error) {
	out := []model.TermCount{}
	for start := int64(0); len(out) < limit; start += termScanBatch {
		zs, err := c.rdb.ZRevRangeWithScores(ctx, termsKey, start, start+termScanBatch-1).Result()
		if err != nil {
			return nil, fmt.Errorf("人気検索語の取得に失敗しました: %w", err)
		}
		if len(zs) == 0 {
			break
		}
		terms, err := c.withDetails(ctx, zs)
		if err != nil {
			return nil, err
		}
		for _, tc := range terms {
			if tc.LastSearched.Before(since) {
				continue
			}
			out = append(out, tc)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// SuggestTerms はfragmentを含む検索語を回数の降順で返す。
func (c *RedisTermCounter) SuggestTerms(ctx context.Context, fragment string, limit int) ([]model.TermCount, error) {
	match := "*" + escapeGlob(strings.ToLower(fragment)) + "*"

	var zs []redis.Z
	var cursor uint64
	for {
		kv, next, err := c.rdb.ZScan(ctx, termsKey, cursor, match, termScanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("検索語候補の取得に失敗しました: %w", err)
		}
		// メンバーとスコアが交互に並ぶ
		for i := 0; i+1 < len(kv); i += 2 {
			score, err := strconv.ParseFloat(kv[i+1], 64)
			if err != nil {
				continue
			}
			zs = append(zs, redis.Z{Member: kv[i], Score: score})
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	sort.SliceStable(zs, func(i, j int) bool {
		if zs[i].Score != zs[j].Score {
			return zs[i].Score > zs[j].Score
		}
		return zs[i].Member.(string) < zs[j].Member.(string)
	})
	if len(zs) > limit {
		zs = zs[:limit]
	}
	if len(zs) == 0 {
		return []model.TermCount{}, nil
	}
	return c.withDetails(ctx, zs)
}

// withDetails はソート済み集合の要素に最終検索時刻と直近の結果件数を付与する。
func (c *RedisTermCounter) withDetails(ctx context.Context, zs []redis.Z) ([]model.TermCount, error) {
	members := make([]string, len(zs))
	for i, z := range zs {
		members[i] = fmt.Sprint(z.Member)
	}

	var lastCmd, resultsCmd *redis.SliceCmd
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		lastCmd = pipe.HMGet(ctx, termsLastKey, members...)
		resultsCmd = pipe.HMGet(ctx, termsResultsKey, members...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("検索語の詳細の取得に失敗しました: %w", err)
	}
	return termCounts(zs, lastCmd.Val(), resultsCmd.Val()), nil
}

// termCounts はHMGETの結果を要素ごとに組み合わせる。欠損や不正な値はゼロ値のままにする。
func termCounts(zs []redis.Z, stamps, results []interface{}) []model.TermCount {
	out := make([]model.TermCount, len(zs))
	for i, z := range zs {
		tc := model.TermCount{Term: fmt.Sprint(z.Member), Count: int(z.Score)}
		if i < len(stamps) {
			if s, ok := stamps[i].(string); ok {
				if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
					tc.LastSearched = time.Unix(sec, 0).UTC()
				}
			}
		}
		if i < len(results) {
			if s, ok := results[i].(string); ok {
				if n, err := strconv.Atoi(s); err == nil {
					tc.LastResultsCount = n
				}
			}
		}
		out[i] = tc
	}
	return out
}

// escapeGlob はRedisのMATCHパターンの特殊文字をエスケープする。
func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

// compile-time interface check
var _ TermCounter = (*RedisTermCounter)(nil)
