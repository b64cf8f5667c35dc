// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Provider when a conversation cannot be
// resolved at all.
var ErrNotFound = errors.New("conversation not found")

// ErrNoAccess is returned by a Provider when a conversation exists but the
// account cannot read it.
var ErrNoAccess = errors.New("no access to conversation")

// FetchOptions bounds a history fetch. Zero values mean unbounded.
type FetchOptions struct {
	// Limit is the maximum number of messages to return.
	Limit int
	// Since excludes messages older than this time.
	Since time.Time
}

// Provider is the messaging platform client consumed by the engine and the
// backfiller. Implementations live in sub-packages (see telegram); tests
// inject fakes. All methods are expected to be safe for sequential use from
// a single goroutine.
type Provider interface {
	// ListConversations returns every conversation the account can see.
	// Used only by the backfiller's fallback resolution scan.
	ListConversations(ctx context.Context) ([]Conversation, error)

	// FetchMessages returns historical messages for a conversation within
	// the given bounds. Order is unspecified; callers must sort.
	FetchMessages(ctx context.Context, chatID int64, opts FetchOptions) ([]Message, error)

	// ResolveConversation resolves a numeric id or @handle. Returns
	// ErrNotFound or ErrNoAccess when the account cannot see the target.
	ResolveConversation(ctx context.Context, ref string) (Conversation, error)

	// SendText sends a plain text message. replyTo 0 means no reply.
	// Returns the sent message's id.
	SendText(ctx context.Context, chatID int64, text string, replyTo int) (int, error)

	// SendMedia sends a single attachment with an optional caption.
	// Returns the sent message's id.
	SendMedia(ctx context.Context, chatID int64, media Media, caption string, replyTo int) (int, error)

	// RecentMessages returns up to limit messages from a conversation,
	// newest first. Used only by the reply recency fallback.
	RecentMessages(ctx context.Context, chatID int64, limit int) ([]Message, error)
}

// EventSource produces live inbound messages. The returned channel is
// closed when the source stops; consuming it one message at a time is what
// preserves the no-overlap ordering guarantee.
type EventSource interface {
	Events(ctx context.Context) (<-chan Message, error)
}
