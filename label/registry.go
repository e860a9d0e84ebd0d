package label

import (
	"fmt"
	"sync/atomic"
)

// entry is one registered item.
type entry[E any] struct {
	name string
	item E
}

// registry holds the items attached to one label.
//
// Writes happen only from generated init functions, which Go runs
// sequentially before main. The first read seals the registry; from then
// on entries is never written again, so readers need no lock.
type registry[E any] struct {
	label   string
	entries []entry[E]
	sealed  atomic.Bool
}

func (r *registry[E]) add(name string, item E) {
	if r.sealed.Load() {
		panic(fmt.Sprintf("label: %s attached to %q after the label was first read; "+
			"a package init read the label before every attaching package was initialized", name, r.label))
	}
	r.entries = append(r.entries, entry[E]{name: name, item: item})
}

// snapshot seals the registry and returns its entries.
func (r *registry[E]) snapshot() []entry[E] {
	r.sealed.Store(true)
	return r.entries
}

func (r *registry[E]) iter() func(yield func(E) bool) {
	return func(yield func(E) bool) {
		for _, e := range r.snapshot() {
			if !yield(e.item) {
				return
			}
		}
	}
}

func (r *registry[E]) iterNamed() func(yield func(string, E) bool) {
	return func(yield func(string, E) bool) {
		for _, e := range r.snapshot() {
			if !yield(e.name, e.item) {
				return
			}
		}
	}
}
