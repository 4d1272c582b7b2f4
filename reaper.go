package authority

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// startReaper launches the background sweep loop. Close stops it.
func (a *Authority) startReaper() {
	a.reaperStop = make(chan struct{})
	a.reaperWG.Add(1)

	interval := a.config.Reaper.Interval
	go func() {
		defer a.reaperWG.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-a.reaperStop:
				return
			case <-ticker.C:
				a.runSweep()
			}
		}
	}()
}

func (a *Authority) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), reaperSweepTimeout)
	defer cancel()

	purged, err := a.Sweep(ctx)
	if err != nil {
		a.logger.Warn("credential sweep failed", zap.Error(err))
		return
	}
	if purged > 0 {
		a.logger.Info("credential sweep completed", zap.Int64("purged", purged))
	}
}

const reaperSweepTimeout = 30 * time.Second
