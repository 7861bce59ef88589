package book

import (
	"sort"
	"sync"
)

// Entry is one (index, record) pair of a ChapterMap snapshot.
type Entry struct {
	Index  int
	Record Record
}

// ChapterMap is the shared index -> record map of one run.
type ChapterMap struct {
	mu      sync.RWMutex
	records map[int]Record
}

func NewChapterMap() *ChapterMap {
	return &ChapterMap{records: make(map[int]Record)}
}

// FromEntries builds a map from a snapshot.
func FromEntries(entries []Entry) *ChapterMap {
	m := NewChapterMap()
	for _, e := range entries {
		m.records[e.Index] = e.Record
	}
	return m
}

func (m *ChapterMap) Get(index int) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[index]
	return r, ok
}

func (m *ChapterMap) Set(index int, r Record) {
	m.mu.Lock()
	m.records[index] = r
	m.mu.Unlock()
}

// HasComplete reports whether index holds a record that needs no repair.
func (m *ChapterMap) HasComplete(index int, imagesEnabled bool) bool {
	r, ok := m.Get(index)
	return ok && r.Complete(imagesEnabled)
}

func (m *ChapterMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.records)
}

// Replace swaps the content of m with other's records.
func (m *ChapterMap) Replace(other *ChapterMap) {
	entries := other.Snapshot()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = make(map[int]Record, len(entries))
	for _, e := range entries {
		m.records[e.Index] = e.Record
	}
}

func (m *ChapterMap) Clear() {
	m.mu.Lock()
	m.records = make(map[int]Record)
	m.mu.Unlock()
}

// Snapshot returns a copy of all entries ordered by index.
func (m *ChapterMap) Snapshot() []Entry {
	m.mu.RLock()
	out := make([]Entry, 0, len(m.records))
	for i, r := range m.records {
		out = append(out, Entry{Index: i, Record: r})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
