package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fernandoxavier02/AccountingNews/internal/model"
)

const testSecret = "test-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func validClaims(email string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "user-1",
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

// captureHandler はコンテキストのユーザー情報を記録する。
type captureHandler struct {
	called bool
	userID string
	email  string
}

func (c *captureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.called = true
	c.userID, _ = UserIDFromContext(r.Context())
	c.email = EmailFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

func TestAuthMiddleware(t *testing.T) {
	policy := NewAccessPolicy(testSecret, []string{"Ana@Firma.com.br"}, []string{"@contabil.example"})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"allowed email", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("ana@firma.com.br")), 200, ""},
		{"allowed domain", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("joao@contabil.example")), 200, ""},
		{"missing header", "", 401, model.ErrCodeUnauthorized},
		{"wrong scheme", "Basic abc", 401, model.ErrCodeUnauthorized},
		{"bad signature", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims("ana@firma.com.br")), 401, model.ErrCodeUnauthorized},
		{"expired", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
			"sub": "user-1", "email": "ana@firma.com.br", "exp": time.Now().Add(-time.Minute).Unix(),
		}), 401, model.ErrCodeUnauthorized},
		{"missing email claim", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "user-1"}), 401, model.ErrCodeUnauthorized},
		{"HS512 rejected", "Bearer " + signToken(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims("ana@firma.com.br")), 401, model.ErrCodeUnauthorized},
		{"not allowed", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("intruso@gmail.com")), 403, model.ErrCodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &captureHandler{}
			req := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			NewAuthMiddleware(policy)(next).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == 200 {
				if !next.called || next.userID != "user-1" {
					t.Errorf("next called=%v userID=%q", next.called, next.userID)
				}
				return
			}
			if next.called {
				t.Error("next handler must not be called")
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tt.wantCode || body.Category != "auth" {
				t.Errorf("body = %+v, want code %s", body, tt.wantCode)
			}
		})
	}
}

func TestAccessPolicy_EmptyListsAllowEveryone(t *testing.T) {
	p := NewAccessPolicy(testSecret, nil, []string{" "})
	if !p.Allowed("qualquer@pessoa.com") {
		t.Error("empty allow-lists should allow any verified email")
	}
}

func TestAccessPolicy_DomainMustMatchExactly(t *testing.T) {
	p := NewAccessPolicy(testSecret, nil, []string{"firma.com.br"})
	if p.Allowed("a@evilfirma.com.br") {
		t.Error("suffix-only domain match must be rejected")
	}
	if !p.Allowed("a@FIRMA.com.br") {
		t.Error("domain comparison should be case-insensitive")
	}
}

func TestOptionalAuthMiddleware(t *testing.T) {
	policy := NewAccessPolicy(testSecret, []string{"ana@firma.com.br"}, nil)
	good := "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("ana@firma.com.br"))
	denied := "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims("x@y.com"))

	tests := []struct {
		name     string
		header   string
		wantUser string
	}{
		{"anonymous", "", ""},
		{"valid token", good, "user-1"},
		{"invalid token", "Bearer garbage", ""},
		{"not allowed email", denied, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &captureHandler{}
			req := httptest.NewRequest(http.MethodPost, "/api/search", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			NewOptionalAuthMiddleware(policy)(next).ServeHTTP(w, req)

			if w.Code != http.StatusOK || !next.called {
				t.Fatalf("status = %d, called = %v", w.Code, next.called)
			}
			if next.userID != tt.wantUser {
				t.Errorf("userID = %q, want %q", next.userID, tt.wantUser)
			}
		})
	}
}
