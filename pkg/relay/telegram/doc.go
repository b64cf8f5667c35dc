// Copyright 2024-2026 Aiku AI

// Package telegram implements the relay provider interfaces on top of the
// Telegram Bot API via telego.
//
// The Bot API does not expose chat history, so the client keeps a bounded
// in-memory archive of every message it observes: the pending update backlog
// drained at connect time, live updates, and the client's own sends. History
// fetches and recency lookups are served from that archive.
package telegram
