package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/quanghia/lectura/internal/fetcher"
)

// Janitor periodically sweeps the scratch directory for orphaned
// artifacts left behind when a process died between fetch and reclaim.
// With Redis configured, a short lock keeps replicas from sweeping
// concurrently.
type Janitor struct {
	Dir      string
	MaxAge   time.Duration
	CronSpec string
	Rdb      *redis.Client
	Stop     chan struct{}

	lastSweep *time.Time
}

func (j *Janitor) Start() {
	ticker := time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-j.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				j.tick()
			}
		}
	}()
}

func (j *Janitor) tick() {
	if !isDue(j.CronSpec, j.lastSweep) {
		return
	}
	ctx := context.Background()
	if j.Rdb != nil {
		ok, _ := j.Rdb.SetNX(ctx, "sweep:lock:"+j.Dir, "1", 2*time.Minute).Result()
		if !ok {
			return
		}
		defer j.Rdb.Del(ctx, "sweep:lock:"+j.Dir)
	}

	now := time.Now()
	j.lastSweep = &now
	n, err := fetcher.SweepOlderThan(j.Dir, j.MaxAge)
	if err != nil {
		log.Printf("[SWEEP] sweep of %s failed: %v", j.Dir, err)
		return
	}
	if n > 0 {
		log.Printf("[SWEEP] reclaimed %d orphaned artifacts from %s", n, j.Dir)
	}
}

// isDue determines whether a sweep with cronSpec should run now given the
// last sweep time. Supports "@hourly", "@daily", and standard 5-field
// cron expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// invalid spec degrades to hourly
			if last == nil {
				return true
			}
			return now.Sub(*last) >= time.Hour
		}
		if last == nil {
			return true
		}
		return !expr.Next(*last).After(now)
	}
}
