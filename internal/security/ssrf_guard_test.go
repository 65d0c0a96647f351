package security

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	g := NewSSRFGuard()

	tests := []struct {
		url     string
		blocked bool
	}{
		{"https://www.gov.br/receitafederal/pt-br/assuntos/noticias/RSS", false},
		{"http://feeds.example.org/rss.xml", false},
		{"https://93.184.216.34/feed", false},

		{"", true},
		{"not-a-url", true},
		{"ftp://example.com/feed", true},
		{"file:///etc/passwd", true},
		{"https:///feed", true},

		{"http://10.1.2.3/feed", true},
		{"http://172.20.0.1/feed", true},
		{"http://192.168.1.100/feed", true},
		{"http://100.64.0.1/feed", true},
		{"http://127.0.0.2/feed", true},
		{"http://0.0.0.0/feed", true},
		{"http://169.254.169.254/latest/meta-data/", true},
		{"http://[::1]/feed", true},
		{"http://[fd00::1]/feed", true},
		{"http://[::ffff:127.0.0.1]/feed", true},
		{"http://224.0.0.1/feed", true},

		{"http://localhost:8080/feed", true},
		{"http://LOCALHOST/feed", true},
		{"http://printer.local/feed", true},
		{"http://metadata.google.internal/computeMetadata/v1/", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := g.ValidateURL(tt.url)
			if tt.blocked {
				if !errors.Is(err, ErrBlockedURL) {
					t.Errorf("ValidateURL(%q) = %v, want ErrBlockedURL", tt.url, err)
				}
				return
			}
			if err != nil {
				t.Errorf("ValidateURL(%q) = %v, want nil", tt.url, err)
			}
		})
	}
}

func TestNewSafeClient_Timeout(t *testing.T) {
	client := NewSSRFGuard().NewSafeClient(5*time.Second, 1024)
	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", client.Timeout)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("safe client must use its own transport")
	}
}

// httptestのサーバーは127.0.0.1で待ち受けるため接続が拒否される
func TestNewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSSRFGuard().NewSafeClient(5*time.Second, 1024)
	if resp, err := client.Get(ts.URL); err == nil {
		resp.Body.Close()
		t.Fatal("expected loopback request to be rejected")
	}
}

type stubTransport struct {
	body          string
	contentLength int64
}

func (s stubTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode:    http.StatusOK,
		Body:          io.NopCloser(strings.NewReader(s.body)),
		ContentLength: s.contentLength,
	}, nil
}

func TestLimitTransport(t *testing.T) {
	tests := []struct {
		name    string
		stub    stubTransport
		wantErr bool
	}{
		{"within limit", stubTransport{body: "<rss/>", contentLength: -1}, false},
		{"exactly at limit", stubTransport{body: strings.Repeat("a", 10), contentLength: -1}, false},
		{"streamed over limit", stubTransport{body: strings.Repeat("a", 11), contentLength: -1}, true},
		{"declared over limit", stubTransport{body: "a", contentLength: 100}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &http.Client{Transport: &limitTransport{base: tt.stub, max: 10}}
			req, _ := http.NewRequest(http.MethodGet, "https://example.com/feed", nil)

			resp, err := client.Do(req)
			if err == nil {
				_, err = io.ReadAll(resp.Body)
				resp.Body.Close()
			}
			if tt.wantErr != errors.Is(err, ErrResponseTooLarge) {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
