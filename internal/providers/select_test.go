package providers

import (
	"testing"

	"github.com/brogergvhs/noveld/internal/book"

	"github.com/stretchr/testify/assert"
)

func tasks(n int) []book.Task {
	out := make([]book.Task, n)
	for i := range out {
		out[i] = book.Task{Index: i, URL: "u", Title: "t"}
	}
	return out
}

func TestFilterRange(t *testing.T) {
	got := Filter(tasks(10), "3-5", "")
	assert.Len(t, got, 3)
	assert.Equal(t, 2, got[0].Index)
	assert.Equal(t, 4, got[2].Index)

	assert.Nil(t, FilterRange(tasks(10), "5-3"))
	assert.Nil(t, FilterRange(tasks(10), "1-11"))
	assert.Nil(t, FilterRange(tasks(10), "x"))
}

func TestFilterList(t *testing.T) {
	got := Filter(tasks(10), "", "1, 3,3,42,abc,10")
	if assert.Len(t, got, 3) {
		assert.Equal(t, []int{0, 2, 9}, []int{got[0].Index, got[1].Index, got[2].Index})
	}
}

func TestFilterAll(t *testing.T) {
	assert.Len(t, Filter(tasks(4), "", ""), 4)
}
