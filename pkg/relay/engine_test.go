// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestEngine(t *testing.T, fake *fakeProvider, sources ...Source) *Engine {
	t.Helper()
	cfg := newTestConfig(t, sources...)
	return NewEngine(fake, cfg, testTargetID, zerolog.Nop())
}

func TestRelayOne_TextMessage(t *testing.T) {
	t.Parallel()
	fake := newFakeProvider()
	e := newTestEngine(t, fake)

	msg := &Message{ID: 10, ChatID: -100111, Text: "hello"}
	if got := e.RelayOne(context.Background(), msg, false); got != OutcomeRelayed {
		t.Fatalf("outcome: got %v, want relayed", got)
	}

	sends := fake.Sends()
	if len(sends) != 1 {
		t.Fatalf("expected 1 send, got %d", len(sends))
	}
	if sends[0].Kind != "text" || sends[0].ChatID != testTargetID {
		t.Errorf("send: got %+v", sends[0])
	}
	if !strings.HasPrefix(sends[0].Text, "hello") {
		t.Errorf("text: got %q, want prefix %q", sends[0].Text, "hello")
	}
}

// TestRelayOne_UnconfiguredSource verifies messages from chats outside the
// source list are skipped without any provider call.
func TestRelayOne_UnconfiguredSource(t *testing.T) {
	t.Parallel()
	fake := newFakeProvider()
	e := newTestEngine(t, fake)

	msg := &Message{ID: 10, ChatID: -100777, Text: "hello"}
	if got := e.RelayOne(context.Background(), msg, false); got != OutcomeSkipped {
		t.Fatalf("outcome: got %v, want skipped", got)
	}
	if len(fake.Sends()) != 0 {
		t.Errorf("expected no sends, got %d", len(fake.Sends()))
	}
}

func TestRelayOne_FilteredOut(t *testing.T) {
	t.Parallel()
	fake := newFakeProvider()
	cfg := newTestConfig(t)
	cfg.Filters = FilterConfig{Keywords: []string{"sale"}}
	e := NewEngine(fake, cfg, testTargetID, zerolog.Nop())

	msg := &Message{ID: 10, ChatID: -100111, Text: "nothing relevant"}
	if got := e.RelayOne(context.Background(), msg, false); got != OutcomeSkipped {
		t.Fatalf("outcome: got %v, want skipped", got)
	}
	if len(fake.Sends()) != 0 {
		t.Errorf("expected no sends, got %d", len(fake.Sends()))
	}
}

// TestRelayOne_ReplyRemapping verifies the core reply-threading flow:
// relaying the parent records a mapping, and the child is sent replying to
// the parent's relayed copy.
func TestRelayOne_ReplyRemapping(t *testing.T) {
	t.Parallel()
	fake := newFakeProvider()
	e := newTestEngine(t, fake)
	ctx := context.Background()

	parent := &Message{ID: 10, ChatID: -100111, Text: "parent"}
	if got := e.RelayOne(ctx, parent, false); got != OutcomeRelayed {
		t.Fatalf("parent outcome: got %v, want relayed", got)
	}
	parentSentID := fake.Sends()[0].SentID

	child := &Message{ID: 11, ChatID: -100111, Text: "child", ReplyToID: 10}
	if got := e.RelayOne(ctx, child, false); got != OutcomeRelayed {
		t.Fatalf("child outcome: got %v, want relayed", got)
	}

	sends := fake.Sends()
	if len(sends) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sends))
	}
	if sends[1].ReplyTo != parentSentID {
		t.Errorf("child reply target: got %d, want %d", sends[1].ReplyTo, parentSentID)
	}
}

// TestRelayOne_RecencyFallback verifies that an unmapped reply falls back
// to the target's most recent message. This is a documented approximation:
// the chosen parent may be unrelated if other traffic intervened.
func TestRelayOne_RecencyFallback(t *testing.T) {
	t.Parallel()
	fake := newFakeProvider()
	fake.recent[testTargetID] = []Message{
		{ID: 7777, ChatID: testTargetID},
		{ID: 7770, ChatID: testTargetID},
	}
	e := newTestEngine(t, fake)

	msg := &Message{ID: 20, ChatID: -100111, Text: "orphan reply", ReplyToID: 999}
	if got := e.RelayOne(context.Background(), msg, false); got != OutcomeRelayed {
		t.Fatalf("outcome: got %v, want relayed", got)
	}
	if got := fake.Sends()[0].ReplyTo; got != 7777 {
		t.Errorf("reply target: got %d, want 7777 (newest recent)", got)
	}
}

// TestRelayOne_FallbackQueryFailure verifies a failing fallback query
// degrades to "not a reply" rather than failing the relay.
func TestRelayOne_FallbackQueryFailure(t *testing.T) {
	t.Parallel()
	fake := newFakeProvider()
	fake.recentErr = fmt.Errorf("simulated recent query failure")
	e := newTestEngine(t, fake)

	msg := &Message{ID: 20, ChatID: -100111, Text: "orphan reply", ReplyToID: 999}
	if got := e.RelayOne(context.Background(), msg, false); got != OutcomeRelayed {
		t.Fatalf("outcome: got %v, want relayed", got)
	}
	if got := fake.Sends()[0].ReplyTo; got != 0 {
		t.Errorf("reply target: got %d, want 0", got)
	}
}

func TestRelayOne_MediaWithCaption(t *testing.T) {
	t.Parallel()
	fake := newFakeProvider()
	e := newTestEngine(t, fake)

	msg := &Message{
		ID: 30, ChatID: -100111, Text: "look at this",
		Media: []Media{{Kind: MediaPhoto, FileID: "photo-1"}},
	}
	if got := e.RelayOne(context.Background(), msg, false); got != OutcomeRelayed {
		t.Fatalf("outcome: got %v, want relayed", got)
	}

	sends := fake.Sends()
	if len(sends) != 1 || sends[0].Kind != "media" {
		t.Fatalf("expected 1 media send, got %+v", sends)
	}
	if sends[0].Media.FileID != "photo-1" {
		t.Errorf("media: got %q, want photo-1", sends[0].Media.FileID)
	}
	if !strings.HasPrefix(sends[0].Text, "look at this") {
		t.Errorf("caption: got %q", sends[0].Text)
	}
}

// TestRelayOne_MediaSendFallback verifies the single recovery path: a
// failed media send with a non-empty caption triggers exactly one plain
// text send, and the outcome is still relayed.
func TestRelayOne_MediaSendFallback(t *testing.T) {
	t.Parallel()
	fake := newFakeProvider()
	fake.failMedia = 1
	e := newTestEngine(t, fake)

	msg := &Message{
		ID: 31, ChatID: -100111, Text: "caption survives",
		Media: []Media{{Kind: MediaVideo, FileID: "vid-1"}},
	}
	if got := e.RelayOne(context.Background(), msg, false); got != OutcomeRelayed {
		t.Fatalf("outcome: got %v, want relayed", got)
	}

	sends := fake.Sends()
	if len(sends) != 1 {
		t.Fatalf("expected exactly 1 successful send, got %d", len(sends))
	}
	if sends[0].Kind != "text" {
		t.Errorf("fallback send kind: got %q, want text", sends[0].Kind)
	}
	if !strings.HasPrefix(sends[0].Text, "caption survives") {
		t.Errorf("fallback text: got %q", sends[0].Text)
	}

	// The mapping must record the fallback message's id.
	if got, ok := e.replies.Get(-100111, 31); !ok || got != sends[0].SentID {
		t.Errorf("mapping: got (%d, %v), want (%d, true)", got, ok, sends[0].SentID)
	}
}

// TestRelayOne_MediaFallbackAlsoFails verifies the message is marked failed
// and no mapping is recorded when both sends fail.
func TestRelayOne_MediaFallbackAlsoFails(t *testing.T) {
	t.Parallel()
	fake := newFakeProvider()
	fake.failMedia = 1
	fake.failText = 1
	e := newTestEngine(t, fake)

	msg := &Message{
		ID: 32, ChatID: -100111, Text: "caption",
		Media: []Media{{Kind: MediaDocument, FileID: "doc-1"}},
	}
	if got := e.RelayOne(context.Background(), msg, false); got != OutcomeFailed {
		t.Fatalf("outcome: got %v, want failed", got)
	}
	if e.replies.Len() != 0 {
		t.Errorf("mapping recorded for failed message")
	}
}

// TestRelayOne_MediaFailureWithoutCaption verifies no text fallback happens
// when there is nothing to say.
func TestRelayOne_MediaFailureWithoutCaption(t *testing.T) {
	t.Parallel()
	fake := newFakeProvider()
	fake.failMedia = 1
	cfg := newTestConfig(t)
	// Suppress the origin footer so the media payload has no caption.
	off := false
	cfg.AddSourceInfo = &off
	e := NewEngine(fake, cfg, testTargetID, zerolog.Nop())

	msg := &Message{ID: 33, ChatID: -100111, Media: []Media{{Kind: MediaSticker, FileID: "st-1"}}}
	if got := e.RelayOne(context.Background(), msg, false); got != OutcomeFailed {
		t.Fatalf("outcome: got %v, want failed", got)
	}
	if len(fake.Sends()) != 0 {
		t.Errorf("expected no successful sends, got %d", len(fake.Sends()))
	}
}

// TestRelayOne_BackfillTimestampFooter verifies backfilled messages carry
// the original time while live ones don't.
func TestRelayOne_BackfillTimestampFooter(t *testing.T) {
	t.Parallel()
	fake := newFakeProvider()
	e := newTestEngine(t, fake)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	live := &Message{ID: 40, ChatID: -100111, Text: "live", Time: ts}
	backfilled := &Message{ID: 41, ChatID: -100111, Text: "old", Time: ts}

	e.RelayOne(ctx, live, false)
	e.RelayOne(ctx, backfilled, true)

	sends := fake.Sends()
	if len(sends) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(sends))
	}
	if strings.Contains(sends[0].Text, "Time:") {
		t.Errorf("live message has timestamp footer: %q", sends[0].Text)
	}
	if !strings.Contains(sends[1].Text, "Time: 2024-05-01 12:00:00") {
		t.Errorf("backfilled message missing timestamp footer: %q", sends[1].Text)
	}
}

func TestRunLive_ProcessesUntilClose(t *testing.T) {
	t.Parallel()
	fake := newFakeProvider()
	e := newTestEngine(t, fake)

	events := make(chan Message, 3)
	events <- Message{ID: 50, ChatID: -100111, Text: "one"}
	events <- Message{ID: 51, ChatID: -100777, Text: "not a source"}
	events <- Message{ID: 52, ChatID: -100111, Text: "two"}
	close(events)

	if err := e.RunLive(context.Background(), events); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(fake.Sends()); got != 2 {
		t.Errorf("expected 2 sends, got %d", got)
	}
}

func TestRunLive_ContextCancel(t *testing.T) {
	t.Parallel()
	fake := newFakeProvider()
	e := newTestEngine(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	events := make(chan Message)

	if err := e.RunLive(ctx, events); err != context.Canceled {
		t.Errorf("got %v, want context.Canceled", err)
	}
}
