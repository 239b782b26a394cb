package store

import (
	"context"
	"sort"
	"sync"

	"github.com/vk/beacongrid/internal/beacon"
)

// Memory is the in-process backend. It is safe for concurrent use by the
// HTTP handlers.
type Memory struct {
	mu        sync.RWMutex
	histories map[string][]beacon.Record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{histories: make(map[string][]beacon.Record)}
}

// Append implements Store.
func (m *Memory) Append(_ context.Context, id string, rec beacon.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histories[id] = append(m.histories[id], rec)
	return nil
}

// History implements Store.
func (m *Memory) History(_ context.Context, id string) ([]beacon.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records, ok := m.histories[id]
	if !ok {
		return nil, ErrUnknownDevice
	}
	out := make([]beacon.Record, len(records))
	copy(out, records)
	return out, nil
}

// Latest implements Store.
func (m *Memory) Latest(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, 0, len(m.histories))
	for id, records := range m.histories {
		if len(records) == 0 {
			continue
		}
		entries = append(entries, Entry{IDNumber: id, Record: records[len(records)-1]})
	}
	sortEntries(entries)
	return entries, nil
}

// sortEntries orders by receive time descending, device id as a
// deterministic tie-break.
func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Record.ReceiveTime != entries[j].Record.ReceiveTime {
			return entries[i].Record.ReceiveTime > entries[j].Record.ReceiveTime
		}
		return entries[i].IDNumber < entries[j].IDNumber
	})
}

// snapshot copies the full history map for persistence.
func (m *Memory) snapshot() map[string][]beacon.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]beacon.Record, len(m.histories))
	for id, records := range m.histories {
		copied := make([]beacon.Record, len(records))
		copy(copied, records)
		out[id] = copied
	}
	return out
}

// seed replaces the history map, used when loading a snapshot file.
func (m *Memory) seed(histories map[string][]beacon.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if histories == nil {
		histories = make(map[string][]beacon.Record)
	}
	m.histories = histories
}
