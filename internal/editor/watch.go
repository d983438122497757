package editor

import (
	"context"
	"time"

	"github.com/banshee-data/pixelset/internal/monitoring"
	"github.com/banshee-data/pixelset/internal/timeutil"
)

// Watch reconciles every interval until ctx is done. Failed reconciles are
// logged and retried on the next tick.
func (w *Workspace) Watch(ctx context.Context, clock timeutil.Clock, interval time.Duration) error {
	if w.engine == nil {
		return ErrOffline
	}
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			changed, err := w.Reconcile(ctx)
			if err != nil {
				monitoring.Logf("editor: periodic reconcile failed: %v", err)
				continue
			}
			if changed {
				monitoring.Logf("editor: reconcile pruned local state (%s)", w)
			}
		}
	}
}
