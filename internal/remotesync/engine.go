// Package remotesync keeps the local category store consistent with the
// remote authoritative store.
//
// Destructive mutations (deletes) are pushed synchronously and must succeed
// before the caller touches local state. Additive mutations are applied
// locally first and pushed in the background; a failed background push is
// logged and left for the next reconciliation. Mutations of one category
// reach the remote store in issue order, mutations of different categories
// run concurrently.
package remotesync

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/banshee-data/pixelset/internal/dataset"
	"github.com/banshee-data/pixelset/internal/monitoring"
)

// Prunable is anything a remote listing can be reconciled into.
// *dataset.Store satisfies it.
type Prunable interface {
	Prune(remote map[string][]string) bool
}

// Engine pushes mutations and reconciles against a Remote.
type Engine struct {
	remote Remote
	queue  *keyedQueue
	flight singleflight.Group
	wg     sync.WaitGroup

	// OnPushFailure, when set, observes background push failures after they
	// are logged.
	OnPushFailure func(Mutation, error)
}

// NewEngine returns an engine pushing to remote.
func NewEngine(remote Remote) *Engine {
	return &Engine{remote: remote, queue: newKeyedQueue()}
}

// Remote returns the remote the engine talks to.
func (e *Engine) Remote() Remote { return e.remote }

// Push issues exactly one remote request for m. Destructive mutations block
// until the remote answers and return its error. Additive mutations return
// nil immediately; their outcome is only logged.
func (e *Engine) Push(ctx context.Context, m Mutation) error {
	prev, done := e.queue.enqueue(m.key())

	if m.Kind.Destructive() {
		if err := waitTurn(ctx, prev); err != nil {
			// keep the lane ordered: release only after our predecessor
			go func() {
				<-prev
				done()
			}()
			return fmt.Errorf("%w: %s: %w", dataset.ErrRemoteRequestFailed, m, err)
		}
		defer done()
		return e.send(ctx, m)
	}

	bg := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer done()
		if prev != nil {
			<-prev
		}
		if err := e.send(bg, m); err != nil {
			monitoring.Logf("sync: %s failed, local change kept until next reconcile: %v", m, err)
			if e.OnPushFailure != nil {
				e.OnPushFailure(m, err)
			}
		}
	}()
	return nil
}

func waitTurn(ctx context.Context, prev <-chan struct{}) error {
	if prev == nil {
		return nil
	}
	select {
	case <-prev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) send(ctx context.Context, m Mutation) error {
	switch m.Kind {
	case KindCreateCategory:
		// the API has no create endpoint; an empty category upload creates it
		return e.remote.SaveCategories(ctx, []dataset.Category{{Name: m.Category, Images: []dataset.Image{}}})
	case KindDeleteCategory:
		return e.remote.DeleteCategory(ctx, m.Category)
	case KindAddImage:
		return e.remote.SaveImage(ctx, m.Category, m.Image)
	case KindDeleteImage:
		return e.remote.DeleteImage(ctx, m.Category, m.ImageName)
	case KindSaveWholeConfig:
		return e.remote.SaveCategories(ctx, m.Categories)
	default:
		return fmt.Errorf("sync: unknown mutation kind %v", m.Kind)
	}
}

// Wait blocks until every background push issued so far has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Pending returns the number of categories with pushes in flight.
func (e *Engine) Pending() int {
	return e.queue.pending()
}

// Pull fetches the remote listing. Concurrent callers share one request.
func (e *Engine) Pull(ctx context.Context) ([]RemoteCategory, error) {
	v, err, _ := e.flight.Do("pull", func() (interface{}, error) {
		return e.remote.ListCategories(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]RemoteCategory), nil
}

// Reconcile pulls the remote listing and prunes target to it. It reports
// whether target changed. On a failed pull target is left untouched.
func (e *Engine) Reconcile(ctx context.Context, target Prunable) (bool, error) {
	listing, err := e.Pull(ctx)
	if err != nil {
		return false, err
	}
	return target.Prune(Index(listing)), nil
}

// Index maps category names to their image names.
func Index(listing []RemoteCategory) map[string][]string {
	idx := make(map[string][]string, len(listing))
	for _, c := range listing {
		names := make([]string, 0, len(c.Images))
		for _, img := range c.Images {
			names = append(names, img.Name)
		}
		idx[c.Name] = names
	}
	return idx
}
