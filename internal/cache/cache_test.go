package cache

import (
	"context"
	"testing"
	"time"

	"github.com/brogergvhs/noveld/internal/book"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func setupStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	s, err := Open(":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func sampleEntries() []book.Entry {
	return []book.Entry{
		{Index: 0, Record: book.Record{Title: "Prologue", Content: "<p>a</p>", TextSegment: "Prologue\n\na\n\n"}},
		{Index: 2, Record: book.Record{
			Title:         "Chapter 2",
			Content:       `<p><img src="img_2_0.jpg"/></p>`,
			TextSegment:   "Chapter 2\n\n\n\n",
			ImageFailures: 1,
			Images: []book.Image{
				{ID: "img_2_0.jpg", Data: []byte{0xff, 0xd8, 0x00, 0x01, 0xfe}, MediaType: "image/jpeg"},
			},
		}},
		{Index: 5, Record: book.Record{Title: "Link", Content: "https://x {non-site link}", NonSite: true, URL: "https://x"}},
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	s.Save(ctx, "1234", sampleEntries())

	n, m := s.Load(ctx, "1234")
	require.NotNil(t, m)
	assert.Equal(t, 3, n)
	assert.Equal(t, sampleEntries(), m.Snapshot())

	r, ok := m.Get(2)
	require.True(t, ok)
	assert.Equal(t, []byte{0xff, 0xd8, 0x00, 0x01, 0xfe}, r.Images[0].Data)
}

func TestStore_LoadMissing(t *testing.T) {
	s := setupStore(t)

	n, m := s.Load(context.Background(), "nope")
	assert.Zero(t, n)
	assert.Nil(t, m)
}

func TestStore_SaveOverwrites(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	s.Save(ctx, "b", sampleEntries())
	s.Save(ctx, "b", sampleEntries()[:1])

	n, _ := s.Load(ctx, "b")
	assert.Equal(t, 1, n)
}

func TestStore_ExpiredEntryPurgedOnLoad(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := setupStore(t, WithClock(clock.Now))
	ctx := context.Background()

	s.Save(ctx, "old", sampleEntries())
	clock.t = clock.t.Add(DefaultExpiry + time.Minute)

	n, m := s.Load(ctx, "old")
	assert.Zero(t, n)
	assert.Nil(t, m)

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM book_cache").Scan(&count))
	assert.Zero(t, count, "stale entry should be deleted")
}

func TestStore_WithinExpiryWindow(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	s := setupStore(t, WithClock(clock.Now))
	ctx := context.Background()

	s.Save(ctx, "fresh", sampleEntries())
	clock.t = clock.t.Add(DefaultExpiry - time.Minute)

	n, m := s.Load(ctx, "fresh")
	assert.Equal(t, 3, n)
	assert.NotNil(t, m)
}

func TestStore_Clear(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	s.Save(ctx, "c", sampleEntries())
	s.Clear(ctx, "c")

	_, m := s.Load(ctx, "c")
	assert.Nil(t, m)
}

func TestStore_CorruptPayloadTreatedAsAbsent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.db.Exec("INSERT INTO book_cache (key, ts, payload) VALUES (?, ?, ?)",
		key("bad"), time.Now().UnixMilli(), []byte("{not json"))
	require.NoError(t, err)

	n, m := s.Load(ctx, "bad")
	assert.Zero(t, n)
	assert.Nil(t, m)
}

func TestStore_ListAndPrune(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	s := setupStore(t, WithClock(clock.Now))
	ctx := context.Background()

	s.Save(ctx, "old", sampleEntries())
	clock.t = clock.t.Add(30 * time.Hour)
	s.Save(ctx, "new", sampleEntries()[:2])

	infos, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "new", infos[0].BookID)
	assert.Equal(t, 2, infos[0].Chapters)
	assert.False(t, infos[0].Expired)
	assert.True(t, infos[1].Expired)

	removed, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	infos, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "new", infos[0].BookID)
}

func TestStore_FailuresAreSwallowed(t *testing.T) {
	s := setupStore(t)
	require.NoError(t, s.db.Close())

	assert.NotPanics(t, func() {
		s.Save(context.Background(), "x", sampleEntries())
		s.Clear(context.Background(), "x")
		n, m := s.Load(context.Background(), "x")
		assert.Zero(t, n)
		assert.Nil(t, m)
	})
}
