// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey = contextKey("user_id")
	emailContextKey  = contextKey("email")
)

var errNoToken = errors.New("bearer token not found")

// AccessPolicy はトークン検証と利用者の許可判定を行う。
type AccessPolicy struct {
	secret  []byte
	emails  map[string]bool
	domains map[string]bool
}

// NewAccessPolicy はAccessPolicyを生成する。
// emailsとdomainsが両方空の場合は有効なトークンを持つ全員を許可する。
func NewAccessPolicy(secret string, emails, domains []string) *AccessPolicy {
	p := &AccessPolicy{
		secret:  []byte(secret),
		emails:  make(map[string]bool, len(emails)),
		domains: make(map[string]bool, len(domains)),
	}
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			p.emails[e] = true
		}
	}
	for _, d := range domains {
		if d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@")); d != "" {
			p.domains[d] = true
		}
	}
	return p
}

// Allowed はメールアドレスが許可リストに含まれるかを返す。
func (p *AccessPolicy) Allowed(email string) bool {
	if len(p.emails) == 0 && len(p.domains) == 0 {
		return true
	}
	email = strings.ToLower(email)
	if p.emails[email] {
		return true
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && p.domains[email[at+1:]]
}

// Verify はHS256トークンを検証し、subとemailを返す。
func (p *AccessPolicy) Verify(tokenString string) (userID, email string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("unexpected claims type")
	}
	userID, _ = claims["sub"].(string)
	email, _ = claims["email"].(string)
	if userID == "" || email == "" {
		return "", "", errors.New("sub and email claims are required")
	}
	return userID, email, nil
}

// NewAuthMiddleware はBearerトークンを必須とするミドルウェアを返す。
// トークンがない、または無効な場合は401、許可されていないメールアドレスは403を返す。
func NewAuthMiddleware(policy *AccessPolicy) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, email, err := authenticate(policy, r)
			if err != nil {
				if !errors.Is(err, errNoToken) {
					slog.Warn("トークンの検証に失敗しました", slog.String("error", err.Error()))
				}
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if !policy.Allowed(email) {
				slog.Warn("許可されていないユーザーからのアクセスです", slog.String("email", email))
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError(email))
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), userID, email)))
		})
	}
}

// NewOptionalAuthMiddleware は匿名アクセスを許可しつつ、
// 有効かつ許可されたトークンがあればユーザーをコンテキストに注入する。
func NewOptionalAuthMiddleware(policy *AccessPolicy) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, email, err := authenticate(policy, r)
			if err == nil && policy.Allowed(email) {
				r = r.WithContext(withUser(r.Context(), userID, email))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func authenticate(policy *AccessPolicy, r *http.Request) (string, string, error) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", "", errNoToken
	}
	return policy.Verify(strings.TrimSpace(token))
}

func withUser(ctx context.Context, userID, email string) context.Context {
	ctx = context.WithValue(ctx, userIDContextKey, userID)
	return context.WithValue(ctx, emailContextKey, email)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// EmailFromContext は認証済みユーザーのメールアドレスを返す。
func EmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(emailContextKey).(string)
	return email
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
