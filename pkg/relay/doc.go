// Copyright 2024-2026 Aiku AI

// Package relay replicates messages from a set of source conversations
// into a single target conversation, in two modes: a one-time ordered
// historical backfill and a continuous live relay.
//
// # Pipeline
//
// Every message flows through the same pipeline, owned by [Engine]:
// [ShouldRelay] decides whether it qualifies, [Compose] builds the outgoing
// payload (text plus at most one media reference, with an optional origin
// footer), the [ReplyMap] re-threads replies across the source→target
// boundary, and the [Provider] performs the send. Backfill is fed by
// [Backfiller], which orders each source's history oldest-first so reply
// parents are always mapped before their children.
//
// # Delivery semantics
//
// At-least-once, not exactly-once. The reply mapping and all relay state
// are in-memory only; a restart after a partial backfill replays from the
// configured bounds and re-sends what already went out.
//
// # Sub-packages
//
//   - telegram implements [Provider] and [EventSource] on the Telegram
//     Bot API.
package relay
