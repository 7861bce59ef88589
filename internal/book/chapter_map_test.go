package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordComplete(t *testing.T) {
	r := Record{Title: "a", ImageFailures: 2}

	assert.False(t, r.Complete(true))
	assert.True(t, r.Complete(false))
	assert.True(t, Record{}.Complete(true))
}

func TestChapterMap_SnapshotOrdered(t *testing.T) {
	m := NewChapterMap()
	for _, i := range []int{5, 1, 3, 0} {
		m.Set(i, Record{Title: string(rune('a' + i))})
	}

	snap := m.Snapshot()
	require.Len(t, snap, 4)
	for i := 1; i < len(snap); i++ {
		assert.Less(t, snap[i-1].Index, snap[i].Index)
	}

	copied := FromEntries(snap)
	assert.Equal(t, 4, copied.Len())
	r, ok := copied.Get(3)
	require.True(t, ok)
	assert.Equal(t, "d", r.Title)
}

func TestChapterMap_HasComplete(t *testing.T) {
	m := NewChapterMap()
	m.Set(0, Record{ImageFailures: 1})
	m.Set(1, Record{})

	assert.False(t, m.HasComplete(0, true))
	assert.True(t, m.HasComplete(0, false))
	assert.True(t, m.HasComplete(1, true))
	assert.False(t, m.HasComplete(2, false))
}

func TestChapterMap_ReplaceAndClear(t *testing.T) {
	m := NewChapterMap()
	m.Set(9, Record{Title: "old"})

	other := NewChapterMap()
	other.Set(1, Record{Title: "new"})
	m.Replace(other)

	_, ok := m.Get(9)
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())

	m.Clear()
	assert.Equal(t, 0, m.Len())
}

func TestBundleMissingCount(t *testing.T) {
	b := &Bundle{Chapters: []BundleChapter{{}, {Missing: true}, {Missing: true}}}
	assert.Equal(t, 2, b.MissingCount())
}
