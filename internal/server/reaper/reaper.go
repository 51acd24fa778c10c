// Package reaper removes expired transfers on a fixed schedule.
package reaper

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophxfer/internal/logging"
)

const DefaultInterval = time.Minute

// Store is the part of the storage engine the reaper drives.
type Store interface {
	Expired(now time.Time) []string
	Delete(ctx context.Context, id string) error
}

// Pass summarizes one sweep.
type Pass struct {
	Started time.Time
	Elapsed time.Duration
	Scanned int
	Reaped  int
	Failed  int
}

type Reaper struct {
	store    Store
	interval time.Duration
	log      logging.Logger
	now      func() time.Time

	// OnPass, when set, observes every completed pass.
	OnPass func(Pass)
}

func New(store Store, interval time.Duration, log logging.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Reaper{
		store:    store,
		interval: interval,
		log:      log.With("module", "reaper"),
		now:      time.Now,
	}
}

// Run sweeps once per interval until ctx is cancelled. Passes run
// regardless of request traffic.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info(ctx, "reaper started", "interval", r.interval)
	for {
		select {
		case <-ctx.Done():
			r.log.Info(ctx, "reaper stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce deletes every transfer that is expired now. A failure on one
// transfer is logged and counted; the pass continues with the rest.
func (r *Reaper) RunOnce(ctx context.Context) Pass {
	p := Pass{Started: r.now()}

	ids := r.store.Expired(p.Started)
	p.Scanned = len(ids)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if err := r.store.Delete(ctx, id); err != nil {
			p.Failed++
			r.log.Error(ctx, "failed to reap transfer", "id", id, "error", err)
			continue
		}
		p.Reaped++
	}
	p.Elapsed = r.now().Sub(p.Started)

	if p.Scanned > 0 {
		r.log.Info(ctx, "reaper pass", "scanned", p.Scanned, "reaped", p.Reaped, "failed", p.Failed)
	}
	if r.OnPass != nil {
		r.OnPass(p)
	}
	return p
}
