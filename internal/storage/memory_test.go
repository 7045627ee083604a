package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ejanovitz/Rehearse/internal/interview"
)

func testRecord(id string) *interview.Record {
	return &interview.Record{
		SessionID:  id,
		Name:       "Dana",
		RoleTitle:  "Backend Engineer",
		RoleDesc:   "Go services team",
		RoleBucket: "MID",
		Intensity:  "medium",
		Turns: []interview.Turn{
			{Kind: interview.TurnAI, AIText: "Welcome to the interview."},
			{Kind: interview.TurnUser, AIText: "Welcome to the interview.", UserTranscript: "Thanks, happy to be here."},
		},
		RepeatRequestCount: 1,
		EndedAt:            time.Now().UTC().Truncate(time.Second),
	}
}

func TestMemory_SaveAndLoad(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Save(ctx, testRecord("sess-1")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	rec, err := m.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if rec.Name != "Dana" || rec.RoleTitle != "Backend Engineer" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.Turns) != 2 || rec.Turns[1].UserTranscript != "Thanks, happy to be here." {
		t.Fatalf("unexpected turns: %+v", rec.Turns)
	}
	if rec.RepeatRequestCount != 1 {
		t.Fatalf("expected repeat count 1, got %d", rec.RepeatRequestCount)
	}
}

func TestMemory_LoadUnknownSession(t *testing.T) {
	m := NewMemory()
	if _, err := m.Load(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemory_SaveCopiesCallerRecord(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec := testRecord("sess-1")
	if err := m.Save(ctx, rec); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	// Mutating the caller's record after Save must not leak into the store.
	rec.Turns[0].AIText = "mutated"
	rec.Incomplete = true

	loaded, err := m.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Turns[0].AIText != "Welcome to the interview." {
		t.Fatalf("stored turns share memory with caller: %+v", loaded.Turns)
	}
	if loaded.Incomplete {
		t.Fatalf("stored record shares memory with caller")
	}
}

func TestMemory_LoadCopiesStoredRecord(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Save(ctx, testRecord("sess-1")); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	first, err := m.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	first.Turns[0].AIText = "mutated"

	second, err := m.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if second.Turns[0].AIText != "Welcome to the interview." {
		t.Fatalf("loaded record shares memory with store: %+v", second.Turns)
	}
}

func TestMemory_SaveOverwrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec := testRecord("sess-1")
	rec.Incomplete = true
	if err := m.Save(ctx, rec); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	done := testRecord("sess-1")
	if err := m.Save(ctx, done); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := m.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Incomplete {
		t.Fatalf("expected second save to replace the first")
	}
}
