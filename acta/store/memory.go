// Package store provides in-memory implementations of the acta storage
// interfaces, used by tests and development servers.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/warp/acta-engine/acta"
)

// =============================================================================
// MEMORY REPOSITORY
// =============================================================================

// Memory is a map-backed acta.Repository keyed by the serialized
// composite reference. Get and List hand out deep copies so callers
// never share mutable state with the store.
type Memory struct {
	mu    sync.RWMutex
	actas map[string]*acta.Acta
}

func NewMemory() *Memory {
	return &Memory{actas: make(map[string]*acta.Acta)}
}

func (m *Memory) Get(_ context.Context, ref acta.Ref) (*acta.Acta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.actas[ref.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", acta.ErrNotFound, ref)
	}
	return a.Clone(), nil
}

func (m *Memory) Put(_ context.Context, a *acta.Acta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.actas[a.Ref.String()] = a.Clone()
	return nil
}

func (m *Memory) List(_ context.Context, f acta.ListFilter) ([]*acta.Acta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.actas))
	for k := range m.actas {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var result []*acta.Acta
	for _, k := range keys {
		if a := m.actas[k]; f.Matches(a) {
			result = append(result, a.Clone())
		}
	}
	return result, nil
}

// =============================================================================
// MEMORY AUDIT LOG
// =============================================================================

// MemoryAudit is an append-only in-memory acta.AuditLog.
type MemoryAudit struct {
	mu     sync.RWMutex
	events []acta.AuditEvent
}

func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{}
}

func (m *MemoryAudit) Append(_ context.Context, ev acta.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, ev)
	return nil
}

// Query returns events newest-first, filtered by free-text search over
// action and metadata, with limit/offset paging.
func (m *MemoryAudit) Query(_ context.Context, f acta.AuditFilter) ([]acta.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []acta.AuditEvent
	for i := len(m.events) - 1; i >= 0; i-- {
		ev := m.events[i]
		if f.Search != "" &&
			!strings.Contains(string(ev.Action), f.Search) &&
			!strings.Contains(ev.Metadata, f.Search) {
			continue
		}
		matched = append(matched, ev)
	}

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, nil
}
