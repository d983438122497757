// Package editor owns the editing session: the live grid, the category
// store, the network layout, the local cache and the sync engine. Commands are
// plain methods returning errors; presentation code subscribes to change
// events and reads state back through the accessors.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/banshee-data/pixelset/internal/cache"
	"github.com/banshee-data/pixelset/internal/dataset"
	"github.com/banshee-data/pixelset/internal/grid"
	"github.com/banshee-data/pixelset/internal/monitoring"
	"github.com/banshee-data/pixelset/internal/network"
	"github.com/banshee-data/pixelset/internal/remotesync"
)

// ErrOffline is returned by operations that need the remote service when
// the workspace has no sync engine.
var ErrOffline = errors.New("workspace is offline")

// Options configures a Workspace.
type Options struct {
	Rows, Cols int
	// Cache defaults to an in-memory cache.
	Cache cache.Cache
	// Engine is nil for an offline workspace: additive edits stay local and
	// deletes are refused.
	Engine *remotesync.Engine
}

// Workspace is the explicit state of one editing session.
type Workspace struct {
	mu      sync.Mutex
	grid    *grid.Grid
	store   *dataset.Store
	net     *network.Network
	pointer grid.Pointer

	cache  cache.Cache
	engine *remotesync.Engine

	listeners  listeners
	background sync.WaitGroup
}

// New returns a workspace with an empty store. Call Start to hydrate it.
func New(opts Options) (*Workspace, error) {
	if opts.Rows == 0 && opts.Cols == 0 {
		opts.Rows, opts.Cols = grid.Medium, grid.Medium
	}
	g, err := grid.New(opts.Rows, opts.Cols)
	if err != nil {
		return nil, err
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemoryCache()
	}
	w := &Workspace{
		grid:   g,
		store:  dataset.NewStore(),
		net:    network.New(g.InputSize(), 0),
		cache:  opts.Cache,
		engine: opts.Engine,
	}
	g.OnResize(func(rows, cols int) { w.net.SetInputSize(rows * cols) })
	return w, nil
}

// Subscribe registers fn for change events and returns a function removing
// it. Events are delivered on the goroutine that caused the change.
func (w *Workspace) Subscribe(fn func(Event)) (unsubscribe func()) {
	return w.listeners.add(fn)
}

// Online reports whether mutations are pushed to a remote store.
func (w *Workspace) Online() bool { return w.engine != nil }

// Start hydrates the store from the cache, emits a render, and reconciles
// against the remote store in the background. A second render
// (EventReconciled) follows only if reconciliation changed something.
func (w *Workspace) Start(ctx context.Context) {
	w.mu.Lock()
	w.store = dataset.FromSnapshot(w.cache.Load())
	w.syncOutputLocked()
	w.mu.Unlock()

	w.listeners.emit(Event{Kind: EventCategories}, Event{Kind: EventSelection}, Event{Kind: EventNetwork})

	if w.engine == nil {
		return
	}
	w.background.Add(1)
	go func() {
		defer w.background.Done()
		if _, err := w.Reconcile(ctx); err != nil {
			monitoring.Logf("editor: startup reconcile failed, showing cached data: %v", err)
		}
	}()
}

// Wait blocks until background reconciles and pushes have finished.
func (w *Workspace) Wait() {
	w.background.Wait()
	if w.engine != nil {
		w.engine.Wait()
	}
}

// Reconcile prunes local categories and images the remote store no longer
// has. It reports whether anything changed.
func (w *Workspace) Reconcile(ctx context.Context) (bool, error) {
	if w.engine == nil {
		return false, ErrOffline
	}
	changed, err := w.engine.Reconcile(ctx, lockedStore{w})
	if err != nil || !changed {
		return false, err
	}
	w.mu.Lock()
	w.syncOutputLocked()
	w.persistLocked()
	w.mu.Unlock()
	w.listeners.emit(Event{Kind: EventReconciled})
	return true, nil
}

// lockedStore prunes the workspace store under the workspace lock.
type lockedStore struct{ w *Workspace }

func (l lockedStore) Prune(remote map[string][]string) bool {
	l.w.mu.Lock()
	defer l.w.mu.Unlock()
	return l.w.store.Prune(remote)
}

// push sends an additive mutation; failures are logged by the engine.
func (w *Workspace) push(ctx context.Context, m remotesync.Mutation) {
	if w.engine == nil {
		return
	}
	_ = w.engine.Push(ctx, m)
}

// pushDestructive sends a delete and waits for the answer. Offline there is
// nobody to acknowledge it, so deletes are refused.
func (w *Workspace) pushDestructive(ctx context.Context, m remotesync.Mutation) error {
	if w.engine == nil {
		return fmt.Errorf("%w: %s: %w", dataset.ErrRemoteRequestFailed, m, ErrOffline)
	}
	return w.engine.Push(ctx, m)
}

func (w *Workspace) persistLocked() {
	if err := w.cache.Save(w.store.Snapshot()); err != nil {
		monitoring.Logf("editor: cache write failed: %v", err)
	}
}

// syncOutputLocked sizes the output layer from the selection.
func (w *Workspace) syncOutputLocked() {
	w.net.SetOutputSize(len(w.store.Selected()))
}

// CreateCategory adds an empty category locally, then announces it remotely.
func (w *Workspace) CreateCategory(ctx context.Context, name string) error {
	w.mu.Lock()
	if err := w.store.CreateCategory(name); err != nil {
		w.mu.Unlock()
		return err
	}
	w.persistLocked()
	w.mu.Unlock()

	w.push(ctx, remotesync.CreateCategory(name))
	w.listeners.emit(Event{Kind: EventCategories, Category: name})
	return nil
}

// RenameCategory renames locally only. The remote API has no rename; a
// later reconcile drops the new name unless it is also saved remotely.
func (w *Workspace) RenameCategory(oldName, newName string) error {
	w.mu.Lock()
	err := w.store.RenameCategory(oldName, newName)
	if err == nil {
		w.persistLocked()
	}
	w.mu.Unlock()
	if err != nil {
		return err
	}
	w.listeners.emit(Event{Kind: EventCategories, Category: newName}, Event{Kind: EventSelection})
	return nil
}

// DeleteCategory validates locally, deletes remotely, and only then removes
// the category from the store. On remote failure nothing changes locally.
func (w *Workspace) DeleteCategory(ctx context.Context, name string, confirm dataset.Confirm) error {
	w.mu.Lock()
	err := w.store.CheckDelete(name, confirm)
	w.mu.Unlock()
	if err != nil {
		return err
	}

	if err := w.pushDestructive(ctx, remotesync.DeleteCategory(name)); err != nil {
		return err
	}

	w.mu.Lock()
	// a reconcile may have pruned it while the request was in flight
	if w.store.Has(name) {
		_ = w.store.RemoveCategory(name)
	}
	w.syncOutputLocked()
	w.persistLocked()
	w.mu.Unlock()

	w.listeners.emit(
		Event{Kind: EventCategories, Category: name},
		Event{Kind: EventSelection},
		Event{Kind: EventNetwork},
	)
	return nil
}

// SaveImage snapshots the live grid into category under name.
func (w *Workspace) SaveImage(ctx context.Context, category, name string) error {
	w.mu.Lock()
	snap := w.grid.Snapshot()
	if err := w.store.AddImage(category, name, snap); err != nil {
		w.mu.Unlock()
		return err
	}
	w.persistLocked()
	w.mu.Unlock()

	w.push(ctx, remotesync.AddImage(category, dataset.Image{Name: name, Grid: snap}))
	w.listeners.emit(Event{Kind: EventCategories, Category: category})
	return nil
}

// DeleteImage deletes the image at index remotely, then locally. The image
// is identified by name across the round trip, so concurrent changes to the
// category do not shift which image is removed.
func (w *Workspace) DeleteImage(ctx context.Context, category string, index int) error {
	w.mu.Lock()
	img, err := w.store.Image(category, index)
	w.mu.Unlock()
	if err != nil {
		return err
	}

	if err := w.pushDestructive(ctx, remotesync.DeleteImage(category, img.Name)); err != nil {
		return err
	}

	w.mu.Lock()
	if i := imageIndex(w.store, category, img.Name); i >= 0 {
		_ = w.store.DeleteImage(category, i)
	}
	w.persistLocked()
	w.mu.Unlock()

	w.listeners.emit(Event{Kind: EventCategories, Category: category})
	return nil
}

func imageIndex(s *dataset.Store, category, name string) int {
	c, ok := s.Category(category)
	if !ok {
		return -1
	}
	for i, img := range c.Images {
		if img.Name == name {
			return i
		}
	}
	return -1
}

// LoadImage restores a saved image into the live grid, adopting its size.
func (w *Workspace) LoadImage(category string, index int) error {
	w.mu.Lock()
	m, err := w.store.LoadImage(category, index)
	if err == nil {
		err = w.grid.Restore(m)
	}
	w.mu.Unlock()
	if err != nil {
		return err
	}
	w.listeners.emit(Event{Kind: EventGrid}, Event{Kind: EventNetwork})
	return nil
}

// SetGrid replaces the live grid with m, adopting its size.
func (w *Workspace) SetGrid(m grid.Matrix) error {
	w.mu.Lock()
	err := w.grid.Restore(m)
	w.mu.Unlock()
	if err != nil {
		return err
	}
	w.listeners.emit(Event{Kind: EventGrid}, Event{Kind: EventNetwork})
	return nil
}

// ToggleSelection flips a category in or out of the training selection and
// returns the new state. Unknown categories are ignored.
func (w *Workspace) ToggleSelection(name string) bool {
	w.mu.Lock()
	known := w.store.Has(name)
	selected := w.store.ToggleSelection(name)
	if known {
		w.syncOutputLocked()
		w.persistLocked()
	}
	w.mu.Unlock()
	if known {
		w.listeners.emit(Event{Kind: EventSelection, Category: name}, Event{Kind: EventNetwork})
	}
	return selected
}

// SaveAll uploads every category in one request.
func (w *Workspace) SaveAll(ctx context.Context) error {
	if w.engine == nil {
		return ErrOffline
	}
	w.mu.Lock()
	cats := w.store.Categories()
	w.mu.Unlock()
	w.push(ctx, remotesync.SaveWholeConfig(cats))
	return nil
}

// Resize replaces the grid with a blank one of the new size.
func (w *Workspace) Resize(rows, cols int) error {
	w.mu.Lock()
	err := w.grid.Resize(rows, cols)
	w.mu.Unlock()
	if err != nil {
		return err
	}
	w.listeners.emit(Event{Kind: EventGrid}, Event{Kind: EventNetwork})
	return nil
}

// Clear blanks the grid.
func (w *Workspace) Clear() {
	w.mu.Lock()
	w.grid.Clear()
	w.mu.Unlock()
	w.listeners.emit(Event{Kind: EventGrid})
}

// Paint sets one cell.
func (w *Workspace) Paint(row, col int, c grid.Color) error {
	w.mu.Lock()
	changed, err := w.grid.Paint(row, col, c)
	w.mu.Unlock()
	if err != nil {
		return err
	}
	if changed {
		w.listeners.emit(Event{Kind: EventGrid})
	}
	return nil
}

// SetBrush selects the colour used by drag painting.
func (w *Workspace) SetBrush(c grid.Color) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.grid.SetBrush(c)
}

// PointerDown and PointerUp forward the global pointer state.
func (w *Workspace) PointerDown() { w.pointer.Down() }
func (w *Workspace) PointerUp()   { w.pointer.Up() }

// Drag paints with the brush if the pointer is held.
func (w *Workspace) Drag(row, col int) error {
	w.mu.Lock()
	changed, err := w.grid.PaintWhileDragging(&w.pointer, row, col)
	w.mu.Unlock()
	if err != nil {
		return err
	}
	if changed {
		w.listeners.emit(Event{Kind: EventGrid})
	}
	return nil
}

// UpdateNetwork applies fn to the network layout. Input and output sizes
// are owned by the workspace and restored after fn runs.
func (w *Workspace) UpdateNetwork(fn func(n *network.Network) error) error {
	w.mu.Lock()
	err := fn(w.net)
	w.net.SetInputSize(w.grid.InputSize())
	w.syncOutputLocked()
	w.mu.Unlock()
	if err != nil {
		return err
	}
	w.listeners.emit(Event{Kind: EventNetwork})
	return nil
}

// Train submits the current layout and selection. Validation failures never
// reach the network.
func (w *Workspace) Train(ctx context.Context, name string) (network.TrainResult, error) {
	w.mu.Lock()
	req, err := w.net.NewTrainRequest(name, w.store.Selected())
	w.mu.Unlock()
	if err != nil {
		return network.TrainResult{}, err
	}
	if w.engine == nil {
		return network.TrainResult{}, ErrOffline
	}
	return w.engine.Remote().TrainNetwork(ctx, req)
}

// Models lists trained models.
func (w *Workspace) Models(ctx context.Context) ([]network.Model, error) {
	if w.engine == nil {
		return nil, ErrOffline
	}
	return w.engine.Remote().ListModels(ctx)
}

// Predict sends the live grid to the prediction endpoint.
func (w *Workspace) Predict(ctx context.Context) ([]float64, error) {
	if w.engine == nil {
		return nil, ErrOffline
	}
	w.mu.Lock()
	input := network.Encode(w.grid.Snapshot())
	w.mu.Unlock()
	return w.engine.Remote().Predict(ctx, input)
}

// Grid returns a copy of the live matrix.
func (w *Workspace) Grid() grid.Matrix {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.grid.Snapshot()
}

// Brush returns the drag-paint colour.
func (w *Workspace) Brush() grid.Color {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.grid.Brush()
}

// Categories returns copies of all categories in creation order.
func (w *Workspace) Categories() []dataset.Category {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.Categories()
}

// Category returns a copy of one category.
func (w *Workspace) Category(name string) (dataset.Category, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.Category(name)
}

// Selected returns the training selection in creation order.
func (w *Workspace) Selected() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.Selected()
}

// Layers returns the network layout.
func (w *Workspace) Layers() []network.Layer {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.net.Layers()
}

// Snapshot returns the serialisable store contents.
func (w *Workspace) Snapshot() dataset.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.Snapshot()
}

func (w *Workspace) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fmt.Sprintf("workspace %dx%d, %d categories, %d selected",
		w.grid.Rows(), w.grid.Cols(), w.store.Len(), len(w.store.Selected()))
}
