package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/54b3r/civic-go/internal/prompt"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_AppendAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "session-a", RoleUser, "How much do I owe?"); err != nil {
		t.Fatalf("append user: %v", err)
	}
	if err := s.Append(ctx, "session-a", RoleAssistant, "Your balance is $150.00"); err != nil {
		t.Fatalf("append assistant: %v", err)
	}

	msgs, err := s.Recent(ctx, "session-a", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("want 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].Content != "How much do I owe?" {
		t.Errorf("msg[0]: got %s/%s", msgs[0].Role, msgs[0].Content)
	}
	if msgs[1].Role != RoleAssistant {
		t.Errorf("msg[1]: want assistant, got %s", msgs[1].Role)
	}
}

func Test_Store_RecentKeepsNewest(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 6 {
		if err := s.Append(ctx, "session-b", RoleUser, fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	msgs, err := s.Recent(ctx, "session-b", 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("want 4 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "msg-2" || msgs[3].Content != "msg-5" {
		t.Errorf("want msg-2..msg-5, got %q..%q", msgs[0].Content, msgs[3].Content)
	}
}

func Test_Store_NonPositiveLimit(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "session-c", RoleUser, "hello"); err != nil {
		t.Fatalf("append: %v", err)
	}
	msgs, err := s.Recent(ctx, "session-c", 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("want no messages, got %d", len(msgs))
	}
}

func Test_Store_SessionIsolation(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Append(ctx, "x", RoleUser, "from x"); err != nil {
		t.Fatalf("append x: %v", err)
	}
	if err := s.Append(ctx, "y", RoleUser, "from y"); err != nil {
		t.Fatalf("append y: %v", err)
	}

	msgsX, err := s.Recent(ctx, "x", 10)
	if err != nil {
		t.Fatalf("recent x: %v", err)
	}
	msgsY, err := s.Recent(ctx, "y", 10)
	if err != nil {
		t.Fatalf("recent y: %v", err)
	}
	if len(msgsX) != 1 || msgsX[0].Content != "from x" {
		t.Errorf("session x isolation failed: got %v", msgsX)
	}
	if len(msgsY) != 1 || msgsY[0].Content != "from y" {
		t.Errorf("session y isolation failed: got %v", msgsY)
	}
}

func Test_Store_Clear(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for _, sess := range []string{"keep", "drop"} {
		if err := s.Append(ctx, sess, RoleUser, "hi"); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := s.Clear(ctx, "drop"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	dropped, err := s.Recent(ctx, "drop", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	kept, err := s.Recent(ctx, "keep", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(dropped) != 0 || len(kept) != 1 {
		t.Errorf("want 0 dropped and 1 kept, got %d and %d", len(dropped), len(kept))
	}
}

func Test_Store_OrderingWithinSameSecond(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	fixed := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	contents := []string{"first", "second", "third"}
	for _, c := range contents {
		if err := s.Append(ctx, "order", RoleUser, c); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	msgs, err := s.Recent(ctx, "order", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	for i, want := range contents {
		if msgs[i].Content != want {
			t.Errorf("msg[%d]: want %q, got %q", i, want, msgs[i].Content)
		}
		if !msgs[i].CreatedAt.Equal(fixed) {
			t.Errorf("msg[%d]: want created_at %v, got %v", i, fixed, msgs[i].CreatedAt)
		}
	}
}

func Test_Turns(t *testing.T) {
	t.Parallel()
	msgs := []Message{
		{Role: RoleAssistant, Content: "orphan reply"},
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleUser, Content: "q2"},
		{Role: RoleUser, Content: "q3"},
		{Role: RoleAssistant, Content: "a3"},
	}
	want := []prompt.Turn{
		{User: "q1", Assistant: "a1"},
		{User: "q2"},
		{User: "q3", Assistant: "a3"},
	}
	got := Turns(msgs)
	if len(got) != len(want) {
		t.Fatalf("want %d turns, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("turn[%d]: want %+v, got %+v", i, want[i], got[i])
		}
	}
}
