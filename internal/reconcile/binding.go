package reconcile

// Hooks build and maintain presentation handles for a Binding.
type Hooks[T, H any] struct {
	Create func(item T) H
	// Update refreshes a handle after an in-place edit. Nil recreates it.
	Update func(h H, item T) H
	// Reindex runs after any change of position, from the first index whose
	// position or neighbours changed.
	Reindex func(handles []H, from int)
}

// Binding keeps a slice of presentation handles in index-lockstep with the
// List it observes.
type Binding[T, H any] struct {
	hooks   Hooks[T, H]
	handles []H
}

func NewBinding[T, H any](hooks Hooks[T, H]) *Binding[T, H] {
	return &Binding[T, H]{hooks: hooks}
}

// Handles returns a copy of the current handles.
func (b *Binding[T, H]) Handles() []H {
	out := make([]H, len(b.handles))
	copy(out, b.handles)
	return out
}

func (b *Binding[T, H]) Len() int { return len(b.handles) }

func (b *Binding[T, H]) Inserted(index int, item T) {
	var zero H
	b.handles = append(b.handles, zero)
	copy(b.handles[index+1:], b.handles[index:])
	b.handles[index] = b.hooks.Create(item)
	b.reindex(index)
}

func (b *Binding[T, H]) Removed(index int, _ T) {
	copy(b.handles[index:], b.handles[index+1:])
	var zero H
	b.handles[len(b.handles)-1] = zero
	b.handles = b.handles[:len(b.handles)-1]
	b.reindex(index)
}

func (b *Binding[T, H]) Moved(from, to int, _ T) {
	h := b.handles[from]
	if from < to {
		copy(b.handles[from:to], b.handles[from+1:to+1])
	} else {
		copy(b.handles[to+1:from+1], b.handles[to:from])
	}
	b.handles[to] = h
	b.reindex(min(from, to))
}

func (b *Binding[T, H]) Updated(index int, item T) {
	if b.hooks.Update != nil {
		b.handles[index] = b.hooks.Update(b.handles[index], item)
		return
	}
	b.handles[index] = b.hooks.Create(item)
}

func (b *Binding[T, H]) Reset(items []T) {
	b.handles = make([]H, len(items))
	for i, it := range items {
		b.handles[i] = b.hooks.Create(it)
	}
	b.reindex(0)
}

func (b *Binding[T, H]) reindex(from int) {
	if b.hooks.Reindex != nil {
		b.hooks.Reindex(b.handles, from)
	}
}
