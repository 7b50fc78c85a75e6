package session

import (
	"log"
	"time"

	"lane-defense/internal/metrics"
)

// accumulator converts measured wall time into whole fixed steps.
// At most maxSteps run per wakeup; any backlog beyond that is dropped.
type accumulator struct {
	period   time.Duration
	maxSteps int
	pending  time.Duration
}

func newAccumulator(tickRate, maxSteps int) accumulator {
	if tickRate <= 0 {
		tickRate = 20
	}
	if maxSteps <= 0 {
		maxSteps = 1
	}
	return accumulator{period: time.Second / time.Duration(tickRate), maxSteps: maxSteps}
}

// advance adds elapsed wall time and returns how many steps to run now and
// how many were skipped.
func (a *accumulator) advance(elapsed time.Duration) (run, skipped int) {
	if elapsed > 0 {
		a.pending += elapsed
	}
	due := int(a.pending / a.period)
	a.pending -= time.Duration(due) * a.period

	run = due
	if run > a.maxSteps {
		skipped = run - a.maxSteps
		run = a.maxSteps
	}
	return run, skipped
}

// startLoopLocked arms the tick goroutine. Caller holds r.mu.
func (r *Room) startLoopLocked() {
	if r.stop != nil || r.closed {
		return
	}
	stop := make(chan struct{})
	r.stop = stop
	go r.run(stop)
}

// stopLoopLocked disarms the tick goroutine. Caller holds r.mu.
func (r *Room) stopLoopLocked() {
	if r.stop == nil {
		return
	}
	close(r.stop)
	r.stop = nil
}

func (r *Room) run(stop chan struct{}) {
	acc := newAccumulator(r.sim.TickRate, r.sim.CatchupMaxTicks)
	ticker := time.NewTicker(acc.period)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			steps, skipped := acc.advance(now.Sub(last))
			last = now
			if skipped > 0 {
				metrics.AddSkippedTicks(skipped)
				log.Printf("⚠️ Room %s fell behind, dropped %d ticks", r.ID, skipped)
			}
			if steps == 0 {
				continue
			}
			if !r.tick(stop, steps) {
				return
			}
		}
	}
}

// tick runs steps fixed steps under the room lock and broadcasts one snapshot.
// It returns false once the loop should exit.
func (r *Room) tick(stop chan struct{}, steps int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Paused or closed while this wakeup waited on the lock
	if r.stop != stop {
		return false
	}

	running := r.stepLocked(steps)
	r.broadcastStateLocked()
	if !running {
		r.stop = nil
		log.Printf("🏁 Room %s loop stopped at tick %d", r.ID, r.world.Tick)
	}
	return running
}

// stepLocked advances the world up to steps times and delivers the resulting
// events. It returns false once the match is over.
func (r *Room) stepLocked(steps int) bool {
	dt := 1 / float64(r.sim.TickRate)
	for i := 0; i < steps; i++ {
		start := time.Now()
		spawnedBefore := r.world.WaveState.Spawned
		running := r.engine.Step(r.world, dt)
		metrics.RecordTick(time.Since(start))
		metrics.EnemiesSpawned(r.world.WaveState.Spawned - spawnedBefore)
		r.flushEventsLocked()
		if !running {
			return false
		}
	}
	return true
}
