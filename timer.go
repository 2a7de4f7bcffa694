/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"math"
	"sync"
	"time"
)

// timerManager runs one logical countdown per room: a tick broadcast every
// second and a terminal callback at expiry. Expiry callbacks acquire the
// room mutex themselves, so they pass through the same serialisation as
// inbound events.
type timerManager struct {
	mu     sync.Mutex
	emit   emitter
	timers map[string]*roomTimer
}

type roomTimer struct {
	mu       sync.Mutex
	end      time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

func newTimerManager(emit emitter) *timerManager {
	return &timerManager{
		emit:   emit,
		timers: make(map[string]*roomTimer),
	}
}

// arm replaces any existing countdown for the room. The caller holds
// room.mu; the new deadline is recorded on the room before the first tick.
func (tm *timerManager) arm(room *Room, d time.Duration, callback func()) {
	tm.cancel(room.Code)

	rt := &roomTimer{
		end:  time.Now().Add(d),
		stop: make(chan struct{}),
	}

	tm.mu.Lock()
	tm.timers[room.Code] = rt
	tm.mu.Unlock()

	room.TimerEnd = rt.end

	go tm.tickLoop(room.Code, rt, callback)
}

func (tm *timerManager) tickLoop(code string, rt *roomTimer, callback func()) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-rt.stop:
			return
		case <-ticker.C:
			rt.mu.Lock()
			end := rt.end
			rt.mu.Unlock()

			remaining := secondsUntil(end)
			if remaining > 0 {
				tm.emit.toRoom(code, evTimerUpdate, timerUpdatePayload{Remaining: remaining})
				continue
			}

			// Cancelled between the tick firing and now; don't run the callback.
			select {
			case <-rt.stop:
				return
			default:
			}

			tm.mu.Lock()
			if tm.timers[code] == rt {
				delete(tm.timers, code)
			}
			tm.mu.Unlock()

			tm.emit.toRoom(code, evTimerUpdate, timerUpdatePayload{Remaining: 0})
			callback()

			return
		}
	}
}

func (tm *timerManager) cancel(code string) {
	tm.mu.Lock()
	rt := tm.timers[code]
	delete(tm.timers, code)
	tm.mu.Unlock()

	if rt != nil {
		rt.stopOnce.Do(func() { close(rt.stop) })
	}
}

// extend shifts the deadline forward. The caller holds room.mu and mirrors
// the new deadline onto room.TimerEnd.
func (tm *timerManager) extend(room *Room, extra time.Duration) bool {
	tm.mu.Lock()
	rt := tm.timers[room.Code]
	tm.mu.Unlock()

	if rt == nil {
		return false
	}

	rt.mu.Lock()
	rt.end = rt.end.Add(extra)
	room.TimerEnd = rt.end
	rt.mu.Unlock()

	return true
}

func secondsUntil(end time.Time) int {
	s := int(math.Ceil(time.Until(end).Seconds()))
	if s < 0 {
		return 0
	}
	return s
}
