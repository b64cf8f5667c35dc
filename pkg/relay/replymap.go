// Copyright 2024-2026 Aiku AI

package relay

import "sync"

// mappingKey identifies a source message across all configured sources.
// Keying by (chat, message) avoids id collisions between sources.
type mappingKey struct {
	chatID    int64
	messageID int
}

// ReplyMap associates source message ids with the ids of their relayed
// copies in the target conversation, so replies can be re-threaded across
// the source→target boundary.
//
// Entries are recorded only as messages are successfully relayed and live
// for the process lifetime only; there is no persistence. The engine is the
// single writer (one Record per successful send), the mutex exists because
// the live event pump runs on its own goroutine.
type ReplyMap struct {
	mu sync.RWMutex
	m  map[mappingKey]int
}

// NewReplyMap returns an empty mapping table.
func NewReplyMap() *ReplyMap {
	return &ReplyMap{m: make(map[mappingKey]int)}
}

// Get returns the target message id mapped for a source message, if any.
func (rm *ReplyMap) Get(chatID int64, messageID int) (int, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	target, ok := rm.m[mappingKey{chatID, messageID}]
	return target, ok
}

// Record registers a source→target association after a successful send.
// First write wins; an existing entry is never overwritten.
func (rm *ReplyMap) Record(chatID int64, messageID, targetID int) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	key := mappingKey{chatID, messageID}
	if _, ok := rm.m[key]; ok {
		return
	}
	rm.m[key] = targetID
}

// Len returns the number of recorded associations.
func (rm *ReplyMap) Len() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.m)
}
