package jsonable

import "testing"

func TestRedisOptions_Defaults(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_PASSWORD", "")
	t.Setenv("REDIS_DB", "")

	opts := RedisOptions()

	if opts.Addr != "localhost:6379" {
		t.Errorf("expected default addr localhost:6379, got %s", opts.Addr)
	}
	if opts.Password != "" {
		t.Errorf("expected default password empty, got %s", opts.Password)
	}
	if opts.DB != 0 {
		t.Errorf("expected default db 0, got %d", opts.DB)
	}
}

func TestRedisOptions_FromEnvironment(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.example.com:6380")
	t.Setenv("REDIS_PASSWORD", "secret123")
	t.Setenv("REDIS_DB", "5")

	opts := RedisOptions()

	if opts.Addr != "redis.example.com:6380" {
		t.Errorf("expected addr redis.example.com:6380, got %s", opts.Addr)
	}
	if opts.Password != "secret123" {
		t.Errorf("expected password secret123, got %s", opts.Password)
	}
	if opts.DB != 5 {
		t.Errorf("expected db 5, got %d", opts.DB)
	}
}

func TestRedisOptions_InvalidDB(t *testing.T) {
	t.Setenv("REDIS_DB", "invalid")

	if opts := RedisOptions(); opts.DB != 0 {
		t.Errorf("expected db 0 (default for invalid value), got %d", opts.DB)
	}
}

func TestRedisOptionsWithOverrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "env:6379")
	t.Setenv("REDIS_PASSWORD", "env-secret")

	opts := RedisOptionsWithOverrides("", "", 0)
	if opts.Addr != "env:6379" || opts.Password != "env-secret" {
		t.Errorf("expected environment values, got %s / %s", opts.Addr, opts.Password)
	}

	opts = RedisOptionsWithOverrides("cfg:6379", "cfg-secret", 20)
	if opts.Addr != "cfg:6379" || opts.Password != "cfg-secret" || opts.PoolSize != 20 {
		t.Errorf("expected overrides to apply, got %+v", opts)
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name       string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"valid integer", "42", 0, 42},
		{"empty string uses default", "", 99, 99},
		{"invalid integer uses default", "abc", 7, 7},
		{"negative integer", "-3", 0, -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JSONABLE_TEST_INT", tt.envValue)
			if got := getEnvAsInt("JSONABLE_TEST_INT", tt.defaultVal); got != tt.expected {
				t.Errorf("getEnvAsInt() = %d, want %d", got, tt.expected)
			}
		})
	}
}
