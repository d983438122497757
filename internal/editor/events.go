package editor

import (
	"maps"
	"slices"
	"sync"
)

// EventKind says which part of the workspace changed.
type EventKind int

const (
	// EventGrid: the live matrix or its dimensions changed.
	EventGrid EventKind = iota
	// EventCategories: categories or images were added or removed.
	EventCategories
	// EventSelection: the training selection changed.
	EventSelection
	// EventNetwork: layer sizes or parameters changed.
	EventNetwork
	// EventReconciled: a reconcile pruned local state; re-render everything.
	EventReconciled
)

func (k EventKind) String() string {
	switch k {
	case EventGrid:
		return "grid"
	case EventCategories:
		return "categories"
	case EventSelection:
		return "selection"
	case EventNetwork:
		return "network"
	case EventReconciled:
		return "reconciled"
	default:
		return "unknown"
	}
}

// Event is a change notification. Listeners read the new state back through
// the workspace accessors.
type Event struct {
	Kind EventKind
	// Category is set when the change concerns one category.
	Category string
}

type listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Event)
}

func (l *listeners) add(fn func(Event)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(Event))
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.fns, id)
	}
}

// emit calls listeners in subscription order. It must not be called with the
// workspace lock held, since listeners read state back.
func (l *listeners) emit(events ...Event) {
	l.mu.Lock()
	fns := make([]func(Event), 0, len(l.fns))
	for _, id := range slices.Sorted(maps.Keys(l.fns)) {
		fns = append(fns, l.fns[id])
	}
	l.mu.Unlock()

	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}
