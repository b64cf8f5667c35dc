// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// backfillProgressEvery controls how often backfill progress is logged.
const backfillProgressEvery = 10

// SourceSummary reports one source's backfill results.
type SourceSummary struct {
	ChatID   int64
	Label    string
	Eligible int
	Relayed  int
	Failed   int
}

// Backfiller replays bounded historical message windows from each
// configured source into the target, oldest first, through the engine.
type Backfiller struct {
	engine   *Engine
	provider Provider
	cfg      *Config
	pacer    Pacer
	log      zerolog.Logger
}

// NewBackfiller wires a backfiller around an existing engine so backfilled
// and live messages share one reply mapping.
func NewBackfiller(engine *Engine, provider Provider, cfg *Config, log zerolog.Logger) *Backfiller {
	return &Backfiller{
		engine:   engine,
		provider: provider,
		cfg:      cfg,
		pacer:    NewPacer(cfg.MessageDelay, cfg.SourceDelay),
		log:      log.With().Str("component", "backfill").Logger(),
	}
}

// Backfill replays up to limit messages no older than daysBack days from
// one source. Zero bounds mean unbounded. Messages are relayed in
// non-decreasing timestamp order regardless of fetch order, so reply
// parents are mapped before their children are processed.
func (b *Backfiller) Backfill(ctx context.Context, chatID int64, limit, daysBack int) (SourceSummary, error) {
	label, _ := b.cfg.SourceLabel(chatID)
	summary := SourceSummary{ChatID: chatID, Label: label}
	log := b.log.With().Int64("chat_id", chatID).Str("source", label).Logger()

	conv, err := b.resolveSource(ctx, chatID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to resolve source, skipping backfill")
		return summary, err
	}
	log.Info().Str("name", conv.Name).Msg("Starting history backfill")

	opts := FetchOptions{Limit: limit}
	if daysBack > 0 {
		opts.Since = time.Now().AddDate(0, 0, -daysBack)
	}
	messages, err := b.provider.FetchMessages(ctx, chatID, opts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch history, skipping backfill")
		return summary, fmt.Errorf("failed to fetch history for %d: %w", chatID, err)
	}

	// Oldest first, whatever order the provider returned.
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Time.Before(messages[j].Time)
	})
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}

	summary.Eligible = len(messages)
	log.Info().Int("count", len(messages)).Msg("Fetched history")

	for i := range messages {
		switch b.engine.RelayOne(ctx, &messages[i], true) {
		case OutcomeRelayed:
			summary.Relayed++
		case OutcomeFailed:
			summary.Failed++
		}
		if (i+1)%backfillProgressEvery == 0 {
			log.Info().
				Int("processed", i+1).
				Int("total", len(messages)).
				Int("relayed", summary.Relayed).
				Msg("Backfill progress")
		}
		if err := b.pacer.AfterMessage(ctx); err != nil {
			return summary, err
		}
	}

	log.Info().
		Int("relayed", summary.Relayed).
		Int("eligible", summary.Eligible).
		Msg("History backfill complete")
	return summary, nil
}

// resolveSource resolves a source conversation, falling back to a linear
// scan of the account's conversation list when direct resolution fails.
// The two steps are separate on purpose so each path stays testable.
func (b *Backfiller) resolveSource(ctx context.Context, chatID int64) (Conversation, error) {
	conv, err := b.provider.ResolveConversation(ctx, fmt.Sprintf("%d", chatID))
	if err == nil {
		return conv, nil
	}
	b.log.Warn().Err(err).
		Int64("chat_id", chatID).
		Msg("Direct resolution failed, scanning conversation list")

	convs, listErr := b.provider.ListConversations(ctx)
	if listErr != nil {
		return Conversation{}, fmt.Errorf("failed to resolve %d: %w (list fallback: %v)", chatID, err, listErr)
	}
	for _, c := range convs {
		if c.ID == chatID {
			return c, nil
		}
	}
	return Conversation{}, fmt.Errorf("failed to resolve %d: %w", chatID, err)
}

// BackfillAll runs Backfill for every configured source in config order,
// pacing between sources. A source that fails to resolve or fetch is logged
// and skipped; the others still run. No-op when history sync is disabled.
func (b *Backfiller) BackfillAll(ctx context.Context) ([]SourceSummary, error) {
	if !b.cfg.HistorySync.Enabled {
		b.log.Info().Msg("History sync disabled, skipping backfill")
		return nil, nil
	}

	limit := b.cfg.HistorySync.Limit
	daysBack := b.cfg.HistorySync.DaysBack
	b.log.Info().
		Int("limit", limit).
		Int("days_back", daysBack).
		Int("sources", len(b.cfg.Sources)).
		Msg("Backfilling all sources")

	summaries := make([]SourceSummary, 0, len(b.cfg.Sources))
	for i, src := range b.cfg.Sources {
		summary, err := b.Backfill(ctx, src.ID, limit, daysBack)
		summaries = append(summaries, summary)
		if err != nil && ctx.Err() != nil {
			return summaries, ctx.Err()
		}
		if i < len(b.cfg.Sources)-1 {
			if err := b.pacer.BetweenSources(ctx); err != nil {
				return summaries, err
			}
		}
	}
	return summaries, nil
}
