// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"

	"github.com/rs/zerolog"
)

// recentFallbackLimit is how many target messages the reply recency
// fallback inspects. Only the newest is used; the query matches what the
// provider exposes.
const recentFallbackLimit = 5

// Outcome is the result of one relay attempt.
type Outcome int

const (
	// OutcomeSkipped means the message did not qualify (not a configured
	// source, filtered out, or nothing to send).
	OutcomeSkipped Outcome = iota
	// OutcomeRelayed means exactly one copy reached the target.
	OutcomeRelayed
	// OutcomeFailed means the send (and its fallback, if any) failed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRelayed:
		return "relayed"
	case OutcomeFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// Engine orchestrates the relay pipeline for a single message and for the
// live event stream: filter, compose, reply resolution, send, mapping
// registration. It exclusively owns the ReplyMap for the lifetime of a run.
type Engine struct {
	provider Provider
	cfg      *Config
	replies  *ReplyMap
	target   int64
	log      zerolog.Logger
}

// NewEngine creates an engine relaying into the given target conversation.
func NewEngine(provider Provider, cfg *Config, target int64, log zerolog.Logger) *Engine {
	return &Engine{
		provider: provider,
		cfg:      cfg,
		replies:  NewReplyMap(),
		target:   target,
		log:      log.With().Str("component", "engine").Logger(),
	}
}

// RelayOne runs the full pipeline for one message. Backfilled messages get
// the original timestamp appended, live ones don't need it. Errors never
// propagate out: a failed send is reported in the outcome and the run
// continues with the next message.
func (e *Engine) RelayOne(ctx context.Context, msg *Message, isBackfill bool) Outcome {
	label, ok := e.cfg.SourceLabel(msg.ChatID)
	if !ok {
		return OutcomeSkipped
	}
	if !ShouldRelay(msg, e.cfg.Filters) {
		e.log.Debug().
			Int64("chat_id", msg.ChatID).
			Int("message_id", msg.ID).
			Msg("Message filtered out")
		return OutcomeSkipped
	}

	replyTo := e.resolveReplyTarget(ctx, msg.ChatID, msg.ReplyToID)
	payload := Compose(msg, label, e.cfg.SourceInfoEnabled(), isBackfill)

	var sentID int
	var err error
	switch {
	case payload.Media != nil:
		sentID, err = e.provider.SendMedia(ctx, e.target, *payload.Media, payload.Text, replyTo)
		if err != nil && payload.Text != "" {
			// One local recovery: drop the media, keep the caption.
			e.log.Warn().Err(err).
				Int64("chat_id", msg.ChatID).
				Int("message_id", msg.ID).
				Str("media_kind", payload.Media.Kind.String()).
				Msg("Media send failed, retrying as plain text")
			sentID, err = e.provider.SendText(ctx, e.target, payload.Text, replyTo)
		}
	case payload.Text != "":
		sentID, err = e.provider.SendText(ctx, e.target, payload.Text, replyTo)
	default:
		// Unreachable after the filter, but a defined no-op for safety.
		return OutcomeSkipped
	}
	if err != nil {
		e.log.Error().Err(err).
			Int64("chat_id", msg.ChatID).
			Int("message_id", msg.ID).
			Msg("Failed to relay message")
		return OutcomeFailed
	}

	e.replies.Record(msg.ChatID, msg.ID, sentID)
	e.log.Debug().
		Int64("chat_id", msg.ChatID).
		Int("message_id", msg.ID).
		Int("sent_id", sentID).
		Msg("Message relayed")
	return OutcomeRelayed
}

// resolveReplyTarget maps a source reply reference to a target message id.
// Returns 0 when the outgoing message should not be a reply.
//
// When no mapping exists the recency fallback kicks in: reply to the
// target's most recent message. That is a best-effort guess: the true
// parent may have been sent by another actor or before this process
// started, and intervening traffic can make the guess wrong.
// A failed fallback query degrades to "not a reply".
func (e *Engine) resolveReplyTarget(ctx context.Context, chatID int64, replyToID int) int {
	if replyToID == 0 {
		return 0
	}
	if target, ok := e.replies.Get(chatID, replyToID); ok {
		return target
	}
	recent, err := e.provider.RecentMessages(ctx, e.target, recentFallbackLimit)
	if err != nil || len(recent) == 0 {
		e.log.Debug().
			Int64("chat_id", chatID).
			Int("reply_to", replyToID).
			Msg("No reply mapping and no recent target message, sending without reply")
		return 0
	}
	return recent[0].ID
}

// RunLive consumes the live event stream one message at a time. Each event
// is processed through the full pipeline before the next is accepted, so
// relays never overlap. Returns when the stream closes or the context is
// cancelled.
func (e *Engine) RunLive(ctx context.Context, events <-chan Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			if e.RelayOne(ctx, &msg, false) == OutcomeRelayed {
				e.log.Info().
					Int64("chat_id", msg.ChatID).
					Int("message_id", msg.ID).
					Msg("New message relayed")
			}
		}
	}
}
