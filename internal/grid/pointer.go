package grid

import "sync/atomic"

// Pointer tracks whether the primary pointer button is held. It is driven by
// global pointer-down/up signals, not by the grid.
type Pointer struct {
	held atomic.Bool
}

// Down marks the pointer as held.
func (p *Pointer) Down() { p.held.Store(true) }

// Up releases the pointer.
func (p *Pointer) Up() { p.held.Store(false) }

// Held reports whether the pointer is currently held.
func (p *Pointer) Held() bool { return p.held.Load() }
