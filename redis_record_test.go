package jsonable

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedisRecord(t *testing.T, key string) (*RedisRecord, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisRecord(client, key), mr
}

func TestRedisRecord_FieldMissing(t *testing.T) {
	rec, _ := setupRedisRecord(t, "post:1")

	got, err := rec.Field(context.Background(), "actions")
	if err != nil {
		t.Fatalf("Field failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing field, got %v", got)
	}

	exists, err := rec.Exists(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Error("expected hash not to exist")
	}
}

func TestRedisRecord_SetField(t *testing.T) {
	ctx := context.Background()
	rec, mr := setupRedisRecord(t, "post:1")

	if err := rec.SetField(ctx, "actions", []byte(`[{"id":1}]`)); err != nil {
		t.Fatalf("SetField failed: %v", err)
	}
	if got := mr.HGet("post:1", "actions"); got != `[{"id":1}]` {
		t.Errorf("unexpected hash field: %s", got)
	}

	got, err := rec.Field(ctx, "actions")
	if err != nil {
		t.Fatal(err)
	}
	if got != `[{"id":1}]` {
		t.Errorf("unexpected field value: %v", got)
	}
}

func TestRedisRecord_Exists(t *testing.T) {
	ctx := context.Background()
	rec, mr := setupRedisRecord(t, "post:2")

	exists, err := rec.Exists(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("expected hash not to exist before the first write")
	}

	mr.HSet("post:2", "title", "Hello")
	exists, err = rec.Exists(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("expected hash to exist")
	}
}

func TestRedisRecord_WithJsonable(t *testing.T) {
	ctx := context.Background()
	rec, mr := setupRedisRecord(t, "post:9")
	mr.HSet("post:9", "title", "Hello", "contents", `[{"id":1,"title":"first"}]`)

	contents, err := Open(ctx, rec, "contents")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := contents.Change(ctx, 1, "title", "changed"); err != nil {
		t.Fatal(err)
	}

	if got := mr.HGet("post:9", "contents"); got != `[{"id":1,"title":"changed"}]` {
		t.Errorf("unexpected stored contents: %s", got)
	}
	if got := mr.HGet("post:9", "title"); got != "Hello" {
		t.Errorf("other columns must be untouched, got %s", got)
	}
}

func TestRedisRecord_ConnectionError(t *testing.T) {
	rec, mr := setupRedisRecord(t, "post:1")
	mr.Close()

	if err := rec.SetField(context.Background(), "actions", []byte(`[]`)); err == nil {
		t.Error("expected error when redis is down")
	}
	if _, err := rec.Field(context.Background(), "actions"); err == nil {
		t.Error("expected error when redis is down")
	}
}
