// Package reconcile keeps local ordered collections isomorphic to the
// server's canonical order by applying its operations in receipt order.
package reconcile

import (
	"github.com/rs/zerolog"
)

// Placement tells Add where a new item goes.
type Placement int

const (
	Append Placement = iota
	Prepend
)

// Observer receives every applied mutation, in order. Indices are the
// positions at the time of the notification.
type Observer[T any] interface {
	Inserted(index int, item T)
	Removed(index int, item T)
	Moved(from, to int, item T)
	Updated(index int, item T)
	Reset(items []T)
}

// List is an ordered, id-keyed sequence. Operations on a missing id or an
// out-of-range index are logged and ignored: a remove racing another
// client's delete is expected in a shared room.
type List[T any] struct {
	name      string
	idOf      func(T) uint64
	items     []T
	version   uint64
	observers []Observer[T]
	log       zerolog.Logger
}

func NewList[T any](name string, idOf func(T) uint64, log zerolog.Logger) *List[T] {
	return &List[T]{
		name: name,
		idOf: idOf,
		log:  log.With().Str("collection", name).Logger(),
	}
}

// Observe attaches o and immediately resets it to the current content.
func (l *List[T]) Observe(o Observer[T]) {
	l.observers = append(l.observers, o)
	o.Reset(l.Items())
}

// Version changes on every applied mutation and never on a no-op.
func (l *List[T]) Version() uint64 { return l.version }

func (l *List[T]) Len() int { return len(l.items) }

func (l *List[T]) At(index int) (T, bool) {
	if index < 0 || index >= len(l.items) {
		var zero T
		return zero, false
	}
	return l.items[index], true
}

func (l *List[T]) Get(id uint64) (T, bool) {
	if i := l.IndexOf(id); i >= 0 {
		return l.items[i], true
	}
	var zero T
	return zero, false
}

// IndexOf returns the position of id or -1.
func (l *List[T]) IndexOf(id uint64) int {
	for i, it := range l.items {
		if l.idOf(it) == id {
			return i
		}
	}
	return -1
}

func (l *List[T]) IDs() []uint64 {
	ids := make([]uint64, len(l.items))
	for i, it := range l.items {
		ids[i] = l.idOf(it)
	}
	return ids
}

// Items returns a copy of the current sequence.
func (l *List[T]) Items() []T {
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Add appends or prepends item. An item whose id is already present is a
// duplicated delivery and is dropped.
func (l *List[T]) Add(item T, p Placement) bool {
	index := len(l.items)
	if p == Prepend {
		index = 0
	}
	return l.Insert(index, item)
}

func (l *List[T]) Insert(index int, item T) bool {
	id := l.idOf(item)
	if l.IndexOf(id) >= 0 {
		l.log.Warn().Uint64("id", id).Msg("reconcile: duplicate id, insert ignored")
		return false
	}
	if index < 0 || index > len(l.items) {
		l.log.Warn().Int("index", index).Int("len", len(l.items)).Msg("reconcile: insert index out of range")
		return false
	}
	l.items = append(l.items, item)
	copy(l.items[index+1:], l.items[index:])
	l.items[index] = item
	l.version++
	for _, o := range l.observers {
		o.Inserted(index, item)
	}
	return true
}

func (l *List[T]) RemoveAt(index int) (T, bool) {
	if index < 0 || index >= len(l.items) {
		l.log.Warn().Int("index", index).Int("len", len(l.items)).Msg("reconcile: remove index out of range")
		var zero T
		return zero, false
	}
	return l.removeAt(index), true
}

func (l *List[T]) RemoveByID(id uint64) (T, bool) {
	i := l.IndexOf(id)
	if i < 0 {
		l.log.Warn().Uint64("id", id).Msg("reconcile: remove of missing id ignored")
		var zero T
		return zero, false
	}
	return l.removeAt(i), true
}

func (l *List[T]) removeAt(index int) T {
	item := l.items[index]
	copy(l.items[index:], l.items[index+1:])
	var zero T
	l.items[len(l.items)-1] = zero
	l.items = l.items[:len(l.items)-1]
	l.version++
	for _, o := range l.observers {
		o.Removed(index, item)
	}
	return item
}

// Move removes the item at src and reinserts it so that it ends up at dst.
func (l *List[T]) Move(src, dst int) bool {
	n := len(l.items)
	if src < 0 || src >= n || dst < 0 || dst >= n {
		l.log.Warn().Int("source", src).Int("dest", dst).Int("len", n).Msg("reconcile: move index out of range")
		return false
	}
	if src == dst {
		return true
	}
	item := l.items[src]
	if src < dst {
		copy(l.items[src:dst], l.items[src+1:dst+1])
	} else {
		copy(l.items[dst+1:src+1], l.items[dst:src])
	}
	l.items[dst] = item
	l.version++
	for _, o := range l.observers {
		o.Moved(src, dst, item)
	}
	return true
}

// ReplaceAll discards the current content and rebuilds it from items.
// Repeated ids in items keep their first occurrence.
func (l *List[T]) ReplaceAll(items []T) {
	seen := make(map[uint64]struct{}, len(items))
	next := make([]T, 0, len(items))
	for _, it := range items {
		id := l.idOf(it)
		if _, ok := seen[id]; ok {
			l.log.Warn().Uint64("id", id).Msg("reconcile: duplicate id in snapshot dropped")
			continue
		}
		seen[id] = struct{}{}
		next = append(next, it)
	}
	l.items = next
	l.version++
	l.notifyReset()
}

// UpdateByID mutates the item in place without changing its position.
// The patch must not change the id.
func (l *List[T]) UpdateByID(id uint64, patch func(*T)) bool {
	i := l.IndexOf(id)
	if i < 0 {
		l.log.Warn().Uint64("id", id).Msg("reconcile: update of missing id ignored")
		return false
	}
	patch(&l.items[i])
	l.version++
	for _, o := range l.observers {
		o.Updated(i, l.items[i])
	}
	return true
}

func (l *List[T]) Clear() {
	l.items = nil
	l.version++
	l.notifyReset()
}

func (l *List[T]) notifyReset() {
	for _, o := range l.observers {
		o.Reset(l.Items())
	}
}
