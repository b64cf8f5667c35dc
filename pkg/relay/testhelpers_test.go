// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// testTargetID is the target conversation used by engine and backfill tests.
const testTargetID int64 = -100999

// sendCall records one outbound send for assertions.
type sendCall struct {
	Kind    string // "text" or "media"
	ChatID  int64
	Text    string
	Media   Media
	ReplyTo int
	SentID  int
}

// fetchCall records one history fetch for assertions.
type fetchCall struct {
	ChatID int64
	Opts   FetchOptions
}

// fakeProvider is an in-memory Provider that records calls and serves
// canned responses, in the spirit of a fake API server.
type fakeProvider struct {
	mu sync.Mutex

	nextID  int
	sends   []sendCall
	fetches []fetchCall

	conversations []Conversation
	listErr       error

	resolve    map[string]Conversation
	resolveErr map[string]error

	history    map[int64][]Message
	historyErr map[int64]error

	recent    map[int64][]Message
	recentErr error

	// failMedia / failText fail the next N sends of that kind.
	failMedia int
	failText  int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		nextID:     1000,
		resolve:    make(map[string]Conversation),
		resolveErr: make(map[string]error),
		history:    make(map[int64][]Message),
		historyErr: make(map[int64]error),
		recent:     make(map[int64][]Message),
	}
}

var _ Provider = (*fakeProvider)(nil)

func (f *fakeProvider) ListConversations(_ context.Context) ([]Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.conversations, nil
}

func (f *fakeProvider) FetchMessages(_ context.Context, chatID int64, opts FetchOptions) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, fetchCall{ChatID: chatID, Opts: opts})
	if err, ok := f.historyErr[chatID]; ok {
		return nil, err
	}
	msgs := f.history[chatID]
	if !opts.Since.IsZero() {
		var kept []Message
		for _, m := range msgs {
			if !m.Time.Before(opts.Since) {
				kept = append(kept, m)
			}
		}
		msgs = kept
	}
	if opts.Limit > 0 && len(msgs) > opts.Limit {
		msgs = msgs[:opts.Limit]
	}
	return msgs, nil
}

func (f *fakeProvider) ResolveConversation(_ context.Context, ref string) (Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.resolveErr[ref]; ok {
		return Conversation{}, err
	}
	if conv, ok := f.resolve[ref]; ok {
		return conv, nil
	}
	return Conversation{}, ErrNotFound
}

func (f *fakeProvider) SendText(_ context.Context, chatID int64, text string, replyTo int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failText > 0 {
		f.failText--
		return 0, fmt.Errorf("simulated text send failure")
	}
	f.nextID++
	f.sends = append(f.sends, sendCall{
		Kind: "text", ChatID: chatID, Text: text, ReplyTo: replyTo, SentID: f.nextID,
	})
	return f.nextID, nil
}

func (f *fakeProvider) SendMedia(_ context.Context, chatID int64, media Media, caption string, replyTo int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMedia > 0 {
		f.failMedia--
		return 0, fmt.Errorf("simulated media send failure")
	}
	f.nextID++
	f.sends = append(f.sends, sendCall{
		Kind: "media", ChatID: chatID, Text: caption, Media: media, ReplyTo: replyTo, SentID: f.nextID,
	})
	return f.nextID, nil
}

func (f *fakeProvider) RecentMessages(_ context.Context, chatID int64, limit int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	msgs := f.recent[chatID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *fakeProvider) Sends() []sendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]sendCall, len(f.sends))
	copy(cp, f.sends)
	return cp
}

func (f *fakeProvider) Fetches() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]fetchCall, len(f.fetches))
	copy(cp, f.fetches)
	return cp
}

// newTestConfig builds a validated config with millisecond pacing so tests
// stay fast.
func newTestConfig(t *testing.T, sources ...Source) *Config {
	t.Helper()
	if len(sources) == 0 {
		sources = []Source{{ID: -100111, Label: "Source A"}}
	}
	cfg := &Config{
		APIToken:     "123456:test-token",
		TargetChat:   fmt.Sprintf("%d", testTargetID),
		Sources:      sources,
		MessageDelay: time.Millisecond,
		SourceDelay:  time.Millisecond,
	}
	if err := cfg.PostProcess(); err != nil {
		t.Fatalf("failed to build test config: %v", err)
	}
	return cfg
}
