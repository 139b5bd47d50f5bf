package util

import (
	"context"
	"sync/atomic"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide link traffic counter.
var Stats = &stats{}

type stats struct {
	Exchanges  atomic.Int64 // byte exchanges initiated since process start
	Collisions atomic.Int64 // simultaneous sync1 offers resolved
	Timeouts   atomic.Int64 // exchanges that exceeded their bound
	PacketsIn  atomic.Int64 // packets read from BGB
	PacketsOut atomic.Int64 // packets written to BGB
}

func (s *stats) AddExchange()  { s.Exchanges.Add(1) }
func (s *stats) AddCollision() { s.Collisions.Add(1) }
func (s *stats) AddTimeout()   { s.Timeouts.Add(1) }
func (s *stats) AddPacketIn()  { s.PacketsIn.Add(1) }
func (s *stats) AddPacketOut() { s.PacketsOut.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs link statistics every
// 10 seconds while there is activity. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	log := ComponentLogger("stats")

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevExch, prevColl, prevTO int64
		for {
			select {
			case <-ticker.C:
				exch := Stats.Exchanges.Load()
				coll := Stats.Collisions.Load()
				to := Stats.Timeouts.Load()

				dExch := exch - prevExch
				dColl := coll - prevColl
				dTO := to - prevTO

				if dExch > 0 || dColl > 0 || dTO > 0 {
					log.Info().
						Float64("exchanges_per_s", float64(dExch)/10.0).
						Int64("collisions", dColl).
						Int64("timeouts", dTO).
						Msg("link activity")
				}

				prevExch = exch
				prevColl = coll
				prevTO = to

			case <-ctx.Done():
				return
			}
		}
	}()
}
