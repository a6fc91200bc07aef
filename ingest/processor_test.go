package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bigsnarfdude/papertrail-modern/bucket"
	"github.com/bigsnarfdude/papertrail-modern/storage"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestProcessor(t *testing.T) (*Processor, *storage.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := storage.New(client, storage.WithBloomParameters(1000, 0.01), storage.WithTopKSize(10))
	return New(store, zerolog.Nop()), store
}

func TestProcessRoutesUserLogin(t *testing.T) {
	proc, store := newTestProcessor(t)
	ctx := context.Background()
	ts := time.Date(2025, 10, 16, 10, 30, 0, 0, time.UTC)

	event := Event{
		EventType: UserLogin,
		UserID:    "user123",
		SessionID: "sess-1",
		System:    "production_db",
		Timestamp: ts,
		Metadata: map[string]any{
			"ip": "192.168.1.1",
		},
	}

	if err := proc.Process(ctx, event); err != nil {
		t.Fatalf("Process: %v", err)
	}

	userCount, err := store.GetHLLCardinality(ctx, "users", "production_db", bucket.Hour, ts)
	if err != nil {
		t.Fatalf("GetHLLCardinality: %v", err)
	}
	if userCount != 1 {
		t.Errorf("expected unique user count 1, got %d", userCount)
	}

	present, err := store.CheckBloom(ctx, "user_activity", "production_db", "user123:production_db", ts, bucket.Day)
	if err != nil {
		t.Fatalf("CheckBloom: %v", err)
	}
	if !present {
		t.Error("expected user_activity bloom hit")
	}

	top, err := store.GetTopK(ctx, "event_types", "production_db", 10, ts, bucket.Hour)
	if err != nil {
		t.Fatalf("GetTopK: %v", err)
	}
	if len(top) != 1 || top[0].Item != "user_login" {
		t.Errorf("expected event_types top-k [user_login], got %v", top)
	}
}

func TestProcessSecurityEventDrivesFailedLogins(t *testing.T) {
	proc, store := newTestProcessor(t)
	ctx := context.Background()
	ts := time.Now()

	event := Event{
		EventType: SecurityEvent,
		System:    "auth",
		Timestamp: ts,
		Metadata: map[string]any{
			"ip":          "10.0.0.5",
			"status_code": 401,
		},
	}
	if err := proc.Process(ctx, event); err != nil {
		t.Fatalf("Process: %v", err)
	}

	top, err := store.GetTopK(ctx, "failed_logins", "auth", 10, ts, bucket.Hour)
	if err != nil {
		t.Fatalf("GetTopK: %v", err)
	}
	if len(top) != 1 || top[0].Item != "10.0.0.5" {
		t.Errorf("expected failed_logins top-k [10.0.0.5], got %v", top)
	}
}

func TestProcessWithoutOptionalFieldsSkipsQuietly(t *testing.T) {
	proc, _ := newTestProcessor(t)
	ctx := context.Background()

	event := Event{
		EventType: Custom,
		System:    "batch-job",
		Timestamp: time.Now(),
	}
	if err := proc.Process(ctx, event); err != nil {
		t.Fatalf("Process: %v", err)
	}
}

func TestProcessBatch(t *testing.T) {
	proc, _ := newTestProcessor(t)
	ctx := context.Background()
	ts := time.Now()

	events := []Event{
		{EventType: UserLogin, UserID: "a", System: "sys", Timestamp: ts},
		{EventType: UserLogin, UserID: "b", System: "sys", Timestamp: ts},
		{EventType: APIAccess, UserID: "c", System: "sys", Timestamp: ts},
	}
	ok, total := proc.ProcessBatch(ctx, events)
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}
	if ok != 3 {
		t.Errorf("expected ok 3, got %d", ok)
	}
}
