package remotesync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pixelset/internal/dataset"
	"github.com/banshee-data/pixelset/internal/grid"
	"github.com/banshee-data/pixelset/internal/monitoring"
	"github.com/banshee-data/pixelset/internal/network"
)

// fakeRemote records calls in arrival order. gate, when set, is consulted
// before every call and may block it.
type fakeRemote struct {
	mu      sync.Mutex
	calls   []string
	listing []RemoteCategory
	fail    map[string]error
	gate    func(call string)
	lists   atomic.Int32
}

func (f *fakeRemote) record(call string) error {
	if f.gate != nil {
		f.gate(call)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if err := f.fail[call]; err != nil {
		return fmt.Errorf("%w: %w", dataset.ErrRemoteRequestFailed, err)
	}
	return nil
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) ListCategories(context.Context) ([]RemoteCategory, error) {
	f.lists.Add(1)
	if err := f.record("list"); err != nil {
		return nil, err
	}
	return f.listing, nil
}

func (f *fakeRemote) DeleteCategory(_ context.Context, category string) error {
	return f.record("delete-category " + category)
}

func (f *fakeRemote) DeleteImage(_ context.Context, category, name string) error {
	return f.record("delete-image " + category + "/" + name)
}

func (f *fakeRemote) SaveImage(_ context.Context, category string, img dataset.Image) error {
	return f.record("save-image " + category + "/" + img.Name)
}

func (f *fakeRemote) SaveCategories(_ context.Context, categories []dataset.Category) error {
	names := ""
	for _, c := range categories {
		names += " " + c.Name
	}
	return f.record("save-categories" + names)
}

func (f *fakeRemote) TrainNetwork(context.Context, network.TrainRequest) (network.TrainResult, error) {
	return network.TrainResult{}, f.record("train")
}

func (f *fakeRemote) ListModels(context.Context) ([]network.Model, error) {
	return nil, f.record("models")
}

func (f *fakeRemote) Predict(context.Context, []float64) ([]float64, error) {
	return nil, f.record("predict")
}

func image(name string) dataset.Image {
	return dataset.Image{Name: name, Grid: grid.NewMatrix(2, 2)}
}

func TestPush_ExactlyOneRequestPerMutation(t *testing.T) {
	remote := &fakeRemote{}
	e := NewEngine(remote)
	ctx := context.Background()

	require.NoError(t, e.Push(ctx, CreateCategory("A")))
	e.Wait()
	require.NoError(t, e.Push(ctx, AddImage("A", image("a1"))))
	e.Wait()
	require.NoError(t, e.Push(ctx, DeleteImage("A", "a1")))
	require.NoError(t, e.Push(ctx, DeleteCategory("A")))
	require.NoError(t, e.Push(ctx, SaveWholeConfig([]dataset.Category{{Name: "B"}})))
	e.Wait()

	assert.Equal(t, []string{
		"save-categories A",
		"save-image A/a1",
		"delete-image A/a1",
		"delete-category A",
		"save-categories B",
	}, remote.Calls())
	assert.Equal(t, 0, e.Pending())
}

func TestPush_SameCategoryKeepsIssueOrder(t *testing.T) {
	release := make(chan struct{})
	remote := &fakeRemote{}
	remote.gate = func(call string) {
		if call == "save-image A/a1" {
			<-release
		}
	}
	e := NewEngine(remote)
	ctx := context.Background()

	require.NoError(t, e.Push(ctx, AddImage("A", image("a1"))))
	require.NoError(t, e.Push(ctx, AddImage("A", image("a2"))))
	require.NoError(t, e.Push(ctx, AddImage("B", image("b1"))))

	// B is independent of the stalled A lane
	require.Eventually(t, func() bool {
		return len(remote.Calls()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"save-image B/b1"}, remote.Calls())

	deleted := make(chan error, 1)
	go func() { deleted <- e.Push(ctx, DeleteImage("A", "a1")) }()

	close(release)
	require.NoError(t, <-deleted)
	e.Wait()

	assert.Equal(t, []string{
		"save-image B/b1",
		"save-image A/a1",
		"save-image A/a2",
		"delete-image A/a1",
	}, remote.Calls())
}

func TestPush_DestructiveFailureIsReturned(t *testing.T) {
	remote := &fakeRemote{fail: map[string]error{"delete-category A": errors.New("503")}}
	e := NewEngine(remote)

	err := e.Push(context.Background(), DeleteCategory("A"))
	assert.ErrorIs(t, err, dataset.ErrRemoteRequestFailed)
	assert.Equal(t, 0, e.Pending())
}

func TestPush_DestructiveCancelledWhileQueued(t *testing.T) {
	release := make(chan struct{})
	remote := &fakeRemote{}
	remote.gate = func(call string) {
		if call == "save-image A/a1" {
			<-release
		}
	}
	e := NewEngine(remote)

	require.NoError(t, e.Push(context.Background(), AddImage("A", image("a1"))))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Push(ctx, DeleteImage("A", "a1"))
	assert.ErrorIs(t, err, dataset.ErrRemoteRequestFailed)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	e.Wait()
	require.Eventually(t, func() bool { return e.Pending() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"save-image A/a1"}, remote.Calls())
}

func TestPush_AdditiveFailureLoggedNotReturned(t *testing.T) {
	var logged atomic.Int32
	prev := monitoring.Logf
	monitoring.SetLogger(func(string, ...interface{}) { logged.Add(1) })
	defer monitoring.SetLogger(prev)

	remote := &fakeRemote{fail: map[string]error{"save-image A/a1": errors.New("timeout")}}
	e := NewEngine(remote)
	var failed []Mutation
	var mu sync.Mutex
	e.OnPushFailure = func(m Mutation, err error) {
		assert.ErrorIs(t, err, dataset.ErrRemoteRequestFailed)
		mu.Lock()
		failed = append(failed, m)
		mu.Unlock()
	}

	require.NoError(t, e.Push(context.Background(), AddImage("A", image("a1"))))
	e.Wait()

	assert.Equal(t, int32(1), logged.Load())
	require.Len(t, failed, 1)
	assert.Equal(t, KindAddImage, failed[0].Kind)
}

func TestPush_AdditiveSurvivesCallerCancel(t *testing.T) {
	remote := &fakeRemote{}
	e := NewEngine(remote)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.Push(ctx, CreateCategory("A")))
	cancel()
	e.Wait()
	assert.Equal(t, []string{"save-categories A"}, remote.Calls())
}

func TestPull_SharesConcurrentRequests(t *testing.T) {
	release := make(chan struct{})
	remote := &fakeRemote{listing: []RemoteCategory{{Name: "A"}}}
	remote.gate = func(call string) {
		if call == "list" {
			<-release
		}
	}
	e := NewEngine(remote)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.Pull(context.Background())
			assert.NoError(t, err)
			assert.Len(t, got, 1)
		}()
	}
	require.Eventually(t, func() bool { return remote.lists.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), remote.lists.Load())
}

func TestReconcile_PrunesStore(t *testing.T) {
	remote := &fakeRemote{listing: []RemoteCategory{
		{Name: "A", Images: []RemoteImage{{Name: "a1"}}},
		{Name: "B", Images: []RemoteImage{}},
		{Name: "D", Images: []RemoteImage{{Name: "d1"}}},
	}}
	e := NewEngine(remote)

	s := dataset.NewStore()
	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, s.CreateCategory(name))
	}
	m := grid.NewMatrix(2, 2)
	require.NoError(t, s.AddImage("A", "a1", m))
	require.NoError(t, s.AddImage("A", "a2", m))
	require.NoError(t, s.AddImage("B", "b1", m))
	require.NoError(t, s.AddImage("C", "c1", m))

	changed, err := e.Reconcile(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"A", "B"}, s.Names())
	a, _ := s.Category("A")
	require.Len(t, a.Images, 1)
	assert.Equal(t, "a1", a.Images[0].Name)
	b, _ := s.Category("B")
	assert.Empty(t, b.Images)

	changed, err = e.Reconcile(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, changed, "second reconcile is a no-op")
}

func TestReconcile_PullFailureLeavesStore(t *testing.T) {
	remote := &fakeRemote{fail: map[string]error{"list": errors.New("down")}}
	e := NewEngine(remote)
	s := dataset.NewStore()
	require.NoError(t, s.CreateCategory("A"))

	changed, err := e.Reconcile(context.Background(), s)
	assert.ErrorIs(t, err, dataset.ErrRemoteRequestFailed)
	assert.False(t, changed)
	assert.Equal(t, []string{"A"}, s.Names())
}

func TestKind(t *testing.T) {
	t.Parallel()
	assert.True(t, KindDeleteCategory.Destructive())
	assert.True(t, KindDeleteImage.Destructive())
	assert.False(t, KindCreateCategory.Destructive())
	assert.False(t, KindAddImage.Destructive())
	assert.False(t, KindSaveWholeConfig.Destructive())
	assert.Equal(t, "kind(9)", Kind(9).String())
	assert.Equal(t, `add-image "A"/"a1"`, AddImage("A", image("a1")).String())
}
