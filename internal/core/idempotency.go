package core

import (
	"container/list"
	"fmt"
)

// IdempotencyChecker implements two-tier deduplication
type IdempotencyChecker struct {
	// Tier 1: In-memory LRU
	lru *IdempotencyLRU

	// Tier 2: Postgres (injected via interface)
	dbChecker DBIdempotencyChecker

	// Metrics
	metrics *IdempotencyMetrics
}

// DBIdempotencyChecker is the interface for Postgres dedup lookup
type DBIdempotencyChecker interface {
	IsDuplicate(callType string, idempotencyKey string) (bool, error)
}

func NewIdempotencyChecker(capacity int, dbChecker DBIdempotencyChecker) *IdempotencyChecker {
	return &IdempotencyChecker{
		lru:       NewIdempotencyLRU(capacity),
		dbChecker: dbChecker,
		metrics:   NewIdempotencyMetrics(),
	}
}

// Dedup tiers reported by IsDuplicate.
const (
	TierLRU      = "lru"
	TierPostgres = "postgres"
)

// IsDuplicate checks if a call has been applied (two-tier lookup) and
// reports which tier caught it.
func (ic *IdempotencyChecker) IsDuplicate(callType string, idempotencyKey string) (bool, string) {
	key := compositeKey(callType, idempotencyKey)

	// Tier 1: LRU check (hot path)
	if ic.lru.Contains(key) {
		ic.metrics.RecordDuplicate(callType, TierLRU)
		return true, TierLRU
	}

	// Tier 2: Postgres check (cold path)
	if ic.dbChecker != nil {
		isDup, err := ic.dbChecker.IsDuplicate(callType, idempotencyKey)
		if err != nil {
			// assume not duplicate; the unique index on the event log still
			// rejects a true replay at persist time
			ic.metrics.RecordTier2Error()
			return false, ""
		}

		if isDup {
			ic.metrics.RecordDuplicate(callType, TierPostgres)
			ic.lru.Add(key)
			return true, TierPostgres
		}
	}

	return false, ""
}

func compositeKey(callType, idempotencyKey string) string {
	return fmt.Sprintf("%s:%s", callType, idempotencyKey)
}

// MarkProcessed adds key to LRU after the call is applied
func (ic *IdempotencyChecker) MarkProcessed(callType string, idempotencyKey string) {
	ic.lru.Add(compositeKey(callType, idempotencyKey))
}

// LRU exposes the hot tier for snapshots and warm-up.
func (ic *IdempotencyChecker) LRU() *IdempotencyLRU {
	return ic.lru
}

// GetMetrics returns metrics for monitoring
func (ic *IdempotencyChecker) GetMetrics() *IdempotencyMetrics {
	return ic.metrics
}

// --- LRU Implementation ---

// IdempotencyLRU is an LRU cache for idempotency keys.
// Not thread-safe; only the engine goroutine touches it.
type IdempotencyLRU struct {
	capacity int
	cache    map[string]*list.Element
	lruList  *list.List

	evictions int64 // For metrics
}

type lruEntry struct {
	key string
}

func NewIdempotencyLRU(capacity int) *IdempotencyLRU {
	return &IdempotencyLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		lruList:  list.New(),
	}
}

// Contains checks if key exists (promotes to front)
func (lru *IdempotencyLRU) Contains(key string) bool {
	elem, exists := lru.cache[key]
	if exists {
		// Move to front (most recently used)
		lru.lruList.MoveToFront(elem)
		return true
	}
	return false
}

// Add inserts a key (or promotes if exists)
func (lru *IdempotencyLRU) Add(key string) {
	// Check if already exists
	if elem, exists := lru.cache[key]; exists {
		lru.lruList.MoveToFront(elem)
		return
	}

	// Add new entry
	entry := &lruEntry{key: key}
	elem := lru.lruList.PushFront(entry)
	lru.cache[key] = elem

	// Evict if over capacity
	if lru.lruList.Len() > lru.capacity {
		lru.evictOldest()
	}
}

func (lru *IdempotencyLRU) evictOldest() {
	elem := lru.lruList.Back()
	if elem != nil {
		lru.lruList.Remove(elem)
		entry := elem.Value.(*lruEntry)
		delete(lru.cache, entry.key)
		lru.evictions++
	}
}

// WarmFromKeys loads a batch of composite keys into the LRU, oldest first.
func (lru *IdempotencyLRU) WarmFromKeys(keys []string) {
	for _, key := range keys {
		if _, exists := lru.cache[key]; exists {
			continue
		}
		entry := &lruEntry{key: key}
		elem := lru.lruList.PushFront(entry)
		lru.cache[key] = elem

		if lru.lruList.Len() > lru.capacity {
			lru.evictOldest()
		}
	}
}

// Keys returns the cached composite keys, oldest first.
func (lru *IdempotencyLRU) Keys() []string {
	keys := make([]string, 0, lru.lruList.Len())
	for e := lru.lruList.Back(); e != nil; e = e.Prev() {
		keys = append(keys, e.Value.(*lruEntry).key)
	}
	return keys
}

// Size returns current number of entries
func (lru *IdempotencyLRU) Size() int {
	return lru.lruList.Len()
}

// Evictions returns total evictions (for metrics)
func (lru *IdempotencyLRU) Evictions() int64 {
	return lru.evictions
}

// --- Metrics ---

// IdempotencyMetrics tracks dedup stats.
// Not thread-safe; only the engine goroutine touches it.
type IdempotencyMetrics struct {
	duplicatesLRU      map[string]int64 // call_type -> count
	duplicatesPostgres map[string]int64
	tier2Errors        int64
}

func NewIdempotencyMetrics() *IdempotencyMetrics {
	return &IdempotencyMetrics{
		duplicatesLRU:      make(map[string]int64),
		duplicatesPostgres: make(map[string]int64),
	}
}

func (m *IdempotencyMetrics) RecordDuplicate(callType string, tier string) {
	if tier == TierLRU {
		m.duplicatesLRU[callType]++
	} else {
		m.duplicatesPostgres[callType]++
	}
}

func (m *IdempotencyMetrics) RecordTier2Error() {
	m.tier2Errors++
}

func (m *IdempotencyMetrics) GetDuplicates(callType string) (lru int64, postgres int64) {
	return m.duplicatesLRU[callType], m.duplicatesPostgres[callType]
}

func (m *IdempotencyMetrics) GetTier2Errors() int64 {
	return m.tier2Errors
}
