package reconcile

import (
	"bytes"
	"math/rand"
	"slices"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID    uint64
	Title string
}

func itemID(i item) uint64 { return i.ID }

func newTestList(buf *bytes.Buffer) *List[item] {
	log := zerolog.Nop()
	if buf != nil {
		log = zerolog.New(buf)
	}
	return NewList("test", itemID, log)
}

func fill(l *List[item], ids ...uint64) {
	for _, id := range ids {
		l.Add(item{ID: id}, Append)
	}
}

func TestList_MoveScenario(t *testing.T) {
	l := newTestList(nil)
	fill(l, 1, 2, 3)

	require.True(t, l.Move(0, 2))
	assert.Equal(t, []uint64{2, 3, 1}, l.IDs())

	require.True(t, l.Move(2, 0))
	assert.Equal(t, []uint64{1, 2, 3}, l.IDs())
}

func TestList_RemoveMissingIDIsWarningOnly(t *testing.T) {
	var buf bytes.Buffer
	l := newTestList(&buf)
	fill(l, 1, 2, 3)
	before := l.Version()

	_, ok := l.RemoveByID(99)
	assert.False(t, ok)
	assert.Equal(t, []uint64{1, 2, 3}, l.IDs())
	assert.Equal(t, before, l.Version())
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"id":99`)
}

func TestList_OutOfRangeIsNoop(t *testing.T) {
	l := newTestList(nil)
	fill(l, 1, 2)

	_, ok := l.RemoveAt(5)
	assert.False(t, ok)
	assert.False(t, l.Move(0, 2))
	assert.False(t, l.Move(-1, 0))
	assert.False(t, l.Insert(3, item{ID: 9}))
	assert.False(t, l.UpdateByID(9, func(*item) {}))
	assert.Equal(t, []uint64{1, 2}, l.IDs())
}

func TestList_DuplicateAddDropped(t *testing.T) {
	l := newTestList(nil)
	fill(l, 1, 2)

	assert.False(t, l.Add(item{ID: 1, Title: "again"}, Prepend))
	assert.Equal(t, []uint64{1, 2}, l.IDs())
	got, _ := l.Get(1)
	assert.Equal(t, "", got.Title)
}

func TestList_Prepend(t *testing.T) {
	l := newTestList(nil)
	fill(l, 1, 2)
	l.Add(item{ID: 3}, Prepend)
	assert.Equal(t, []uint64{3, 1, 2}, l.IDs())
}

func TestList_UpdateKeepsPosition(t *testing.T) {
	l := newTestList(nil)
	fill(l, 1, 2, 3)

	require.True(t, l.UpdateByID(2, func(it *item) { it.Title = "renamed" }))
	assert.Equal(t, []uint64{1, 2, 3}, l.IDs())
	got, ok := l.At(1)
	require.True(t, ok)
	assert.Equal(t, "renamed", got.Title)
}

func TestList_ReplaceAllAndClear(t *testing.T) {
	l := newTestList(nil)
	fill(l, 1, 2, 3)

	l.ReplaceAll([]item{{ID: 7}, {ID: 5}, {ID: 7}})
	assert.Equal(t, []uint64{7, 5}, l.IDs())

	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.IDs())
}

func TestList_VersionOnlyMovesOnChange(t *testing.T) {
	l := newTestList(nil)
	v0 := l.Version()
	fill(l, 1)
	assert.Equal(t, v0+1, l.Version())

	l.Add(item{ID: 1}, Append)
	assert.Equal(t, v0+1, l.Version())

	l.Move(0, 0)
	assert.Equal(t, v0+1, l.Version())
}

// model is an independent reference of the server's canonical order.
type model []uint64

func (m model) move(src, dst int) model {
	id := m[src]
	m = slices.Delete(m, src, src+1)
	return slices.Insert(m, dst, id)
}

func TestList_OrderMatchesServerForRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	l := newTestList(nil)

	type row struct {
		ID    uint64
		Label int
	}
	b := NewBinding(Hooks[item, *row]{
		Create: func(it item) *row { return &row{ID: it.ID} },
		Reindex: func(hs []*row, from int) {
			for i := from; i < len(hs); i++ {
				hs[i].Label = i + 1
			}
		},
	})
	l.Observe(b)

	var server model
	next := uint64(1)
	for step := 0; step < 2000; step++ {
		switch op := rng.Intn(10); {
		case op < 4 || len(server) == 0:
			if rng.Intn(2) == 0 {
				server = append(server, next)
				l.Add(item{ID: next}, Append)
			} else {
				server = slices.Insert(server, 0, next)
				l.Add(item{ID: next}, Prepend)
			}
			next++
		case op < 6:
			i := rng.Intn(len(server))
			server = slices.Delete(server, i, i+1)
			l.RemoveAt(i)
		case op < 7:
			i := rng.Intn(len(server))
			id := server[i]
			server = slices.Delete(server, i, i+1)
			l.RemoveByID(id)
		case op < 9:
			src, dst := rng.Intn(len(server)), rng.Intn(len(server))
			server = server.move(src, dst)
			l.Move(src, dst)
		default:
			if rng.Intn(20) == 0 {
				server = nil
				l.Clear()
			}
		}

		require.Equal(t, nonNil(server), nonNil(l.IDs()), "step %d", step)
		hs := b.Handles()
		require.Len(t, hs, len(server))
		for i, h := range hs {
			require.Equal(t, server[i], h.ID, "handle out of lockstep at %d", i)
			require.Equal(t, i+1, h.Label)
		}
	}
}

func nonNil(ids []uint64) []uint64 {
	if len(ids) == 0 {
		return nil
	}
	return ids
}
