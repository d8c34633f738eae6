package reaper

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"coderoom/internal/metrics"
	"coderoom/internal/session"
)

// Reaper evicts room sessions that have sat empty past the idle TTL. Only
// the in-memory cache is dropped; the persisted room record is untouched, so
// the next join reloads it.
type Reaper struct {
	cron *cron.Cron
	hub  *session.Hub
	ttl  time.Duration
	log  *zap.Logger
}

func New(hub *session.Hub, ttl time.Duration, log *zap.Logger) *Reaper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reaper{cron: cron.New(), hub: hub, ttl: ttl, log: log}
}

func (r *Reaper) Start() error {
	if _, err := r.cron.AddFunc("@every 1m", r.Sweep); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

func (r *Reaper) Stop() { r.cron.Stop() }

// Sweep runs one eviction pass.
func (r *Reaper) Sweep() {
	evicted := r.hub.Reap(r.ttl)
	metrics.ActiveRooms.Set(float64(r.hub.Len()))
	if evicted > 0 {
		metrics.RoomsEvicted.Add(float64(evicted))
		r.log.Info("evicted idle room sessions",
			zap.Int("evicted", evicted), zap.Int("remaining", r.hub.Len()))
	}
}
