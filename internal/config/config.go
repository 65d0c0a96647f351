// Package config は環境変数と任意の設定ファイルからアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RedisConfig はRedis接続設定。Addrが空の場合、検索語カウンタはPostgreSQLを使う。
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Access
	JWTSecret         string
	AuthorizedEmails  []string
	AuthorizedDomains []string

	Redis RedisConfig

	// Fetch
	FetchTimeout       time.Duration
	FetchMaxSize       int64
	FetchMaxConcurrent int
	FetchInterval      time.Duration
	FetchMaxEntries    int

	// Rescore（0で無効）
	RescoreInterval  time.Duration
	RescoreBatchSize int

	// Rate Limit（1分あたり）
	RateLimitGeneral int
	RateLimitSearch  int

	HistoryRetentionDays int

	// Server
	ServerPort        string
	CORSAllowedOrigin string

	LogLevel string
}

var defaults = map[string]any{
	"FETCH_TIMEOUT":          "30s",
	"FETCH_MAX_SIZE":         int64(5 << 20),
	"FETCH_MAX_CONCURRENT":   5,
	"FETCH_INTERVAL":         "1h",
	"FETCH_MAX_ENTRIES":      20,
	"RESCORE_INTERVAL":       "24h",
	"RESCORE_BATCH_SIZE":     200,
	"RATE_LIMIT_GENERAL":     120,
	"RATE_LIMIT_SEARCH":      30,
	"HISTORY_RETENTION_DAYS": 90,
	"SERVER_PORT":            "8080",
	"CORS_ALLOWED_ORIGIN":    "http://localhost:3000",
	"LOG_LEVEL":              "info",
	"REDIS_DB":               0,
}

// Load は環境変数から設定を読み込む。
// configFileが指定された場合はそのファイルを先に読み込み、環境変数で上書きする。
// 必須項目が未設定の場合はエラーを返す。
func Load(configFile string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗しました: %w", err)
		}
	}

	cfg := &Config{
		DatabaseURL:       v.GetString("DATABASE_URL"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		AuthorizedEmails:  splitList(v.GetString("AUTHORIZED_EMAILS")),
		AuthorizedDomains: splitList(v.GetString("AUTHORIZED_DOMAINS")),
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
		},
		ServerPort:        v.GetString("SERVER_PORT"),
		CORSAllowedOrigin: v.GetString("CORS_ALLOWED_ORIGIN"),
		LogLevel:          strings.ToLower(v.GetString("LOG_LEVEL")),
	}

	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	r := reader{v: v}
	cfg.Redis.DB = r.int("REDIS_DB", 0, false)
	cfg.FetchTimeout = r.duration("FETCH_TIMEOUT", false)
	cfg.FetchMaxSize = int64(r.int("FETCH_MAX_SIZE", 5<<20, true))
	cfg.FetchMaxConcurrent = r.int("FETCH_MAX_CONCURRENT", 5, true)
	cfg.FetchInterval = r.duration("FETCH_INTERVAL", false)
	cfg.FetchMaxEntries = r.int("FETCH_MAX_ENTRIES", 20, true)
	cfg.RescoreInterval = r.duration("RESCORE_INTERVAL", true)
	cfg.RescoreBatchSize = r.int("RESCORE_BATCH_SIZE", 200, true)
	cfg.RateLimitGeneral = r.int("RATE_LIMIT_GENERAL", 120, true)
	cfg.RateLimitSearch = r.int("RATE_LIMIT_SEARCH", 30, true)
	cfg.HistoryRetentionDays = r.int("HISTORY_RETENTION_DAYS", 90, true)

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// reader は不正な値を既定値に戻しつつ設定値を読む。
type reader struct {
	v *viper.Viper
}

func (r reader) int(key string, def int, positive bool) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.v.GetString(key)))
	if err != nil || (positive && n <= 0) || n < 0 {
		return def
	}
	return n
}

// duration は期間を読む。allowZeroがtrueの場合は0を有効な値として扱う。
func (r reader) duration(key string, allowZero bool) time.Duration {
	def, _ := time.ParseDuration(defaults[key].(string))
	d, err := time.ParseDuration(strings.TrimSpace(r.v.GetString(key)))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validateLogLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error: %q", level)
}
