// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Service is the driver-facing surface of the relay. It owns target
// resolution and wires the engine and backfiller around one shared reply
// mapping, so replies thread correctly across the backfill→live boundary.
//
// Delivery semantics are at-least-once: relay state lives in memory only,
// so a restart after a partial backfill replays from the configured bounds
// and re-sends messages that already went out. There is no dedup ledger.
type Service struct {
	provider Provider
	events   EventSource
	cfg      *Config
	log      zerolog.Logger

	engine     *Engine
	backfiller *Backfiller
	target     Conversation
}

// NewService creates a relay service. events may be nil when only
// RunBackfillOnce will be used.
func NewService(provider Provider, events EventSource, cfg *Config, log zerolog.Logger) *Service {
	return &Service{
		provider: provider,
		events:   events,
		cfg:      cfg,
		log:      log.With().Str("component", "service").Logger(),
	}
}

// init resolves the target conversation and builds the pipeline once.
func (s *Service) init(ctx context.Context) error {
	if s.engine != nil {
		return nil
	}
	target, err := s.provider.ResolveConversation(ctx, s.cfg.TargetChat)
	if err != nil {
		return fmt.Errorf("failed to resolve target %q: %w", s.cfg.TargetChat, err)
	}
	s.target = target
	s.engine = NewEngine(s.provider, s.cfg, target.ID, s.log)
	s.backfiller = NewBackfiller(s.engine, s.provider, s.cfg, s.log)
	s.log.Info().
		Int64("target_id", target.ID).
		Str("target_name", target.Name).
		Msg("Target resolved")
	return nil
}

// RunBackfillOnce performs the one-time ordered historical backfill for all
// configured sources and logs a per-source summary.
func (s *Service) RunBackfillOnce(ctx context.Context) error {
	if err := s.init(ctx); err != nil {
		return err
	}
	summaries, err := s.backfiller.BackfillAll(ctx)
	for _, sum := range summaries {
		s.log.Info().
			Str("source", sum.Label).
			Int("relayed", sum.Relayed).
			Int("eligible", sum.Eligible).
			Int("failed", sum.Failed).
			Msg("Backfill summary")
	}
	return err
}

// RunLiveRelay consumes the live event stream until the context is
// cancelled or the stream ends. Callers wanting the original tool's
// behavior run RunBackfillOnce first; live relay never starts implicitly.
func (s *Service) RunLiveRelay(ctx context.Context) error {
	if s.events == nil {
		return fmt.Errorf("no event source configured")
	}
	if err := s.init(ctx); err != nil {
		return err
	}
	events, err := s.events.Events(ctx)
	if err != nil {
		return fmt.Errorf("failed to start event source: %w", err)
	}
	s.log.Info().
		Int("sources", len(s.cfg.Sources)).
		Str("target", s.target.Name).
		Msg("Listening for new messages")
	return s.engine.RunLive(ctx, events)
}
