package redisclient

import (
	"testing"

	"github.com/fernandoxavier02/AccountingNews/internal/config"
)

func TestNew_UsesConfig(t *testing.T) {
	rdb := New(config.RedisConfig{Addr: "redis:6379", Password: "secret", DB: 2})
	defer rdb.Close()

	opts := rdb.Options()
	if opts.Addr != "redis:6379" || opts.Password != "secret" || opts.DB != 2 {
		t.Errorf("options = %+v", opts)
	}
}
