// Package debounce provides keyed, cancellable trailing-edge timers.
package debounce

import (
	"sort"
	"sync"
	"time"
)

// FireFunc receives the key and generation of a timer that expired.
type FireFunc func(key string, gen uint64)

// Debouncer runs one timer per key. Triggering a key again restarts its
// timer and bumps its generation, so a fire carrying an older generation is
// stale and must be ignored by the receiver. Claim performs that check.
type Debouncer struct {
	delay time.Duration
	fire  FireFunc

	mu      sync.Mutex
	timers  map[string]*time.Timer
	gens    map[string]uint64
	stopped bool
}

// New creates a debouncer that calls fire delay after the last trigger of a key.
func New(delay time.Duration, fire FireFunc) *Debouncer {
	return &Debouncer{
		delay:  delay,
		fire:   fire,
		timers: make(map[string]*time.Timer),
		gens:   make(map[string]uint64),
	}
}

// Trigger (re)starts the timer for key and returns its new generation.
func (d *Debouncer) Trigger(key string) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return 0
	}
	if t := d.timers[key]; t != nil {
		t.Stop()
	}
	d.gens[key]++
	gen := d.gens[key]
	d.timers[key] = time.AfterFunc(d.delay, func() {
		d.fire(key, gen)
	})
	return gen
}

// Claim reports whether gen is the live generation of a pending key and, if
// so, marks the key as no longer pending.
func (d *Debouncer) Claim(key string, gen uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, pending := d.timers[key]; !pending || d.gens[key] != gen {
		return false
	}
	delete(d.timers, key)
	return true
}

// Cancel drops the pending timer of key, if any.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelLocked(key)
}

// CancelAll drops every pending timer.
func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.timers {
		d.cancelLocked(key)
	}
}

// Flush cancels every pending timer and returns the keys that were pending,
// sorted. The caller commits them itself.
func (d *Debouncer) Flush() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys := make([]string, 0, len(d.timers))
	for key := range d.timers {
		keys = append(keys, key)
	}
	for _, key := range keys {
		d.cancelLocked(key)
	}
	sort.Strings(keys)
	return keys
}

// Pending returns the number of keys with a running timer.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.timers)
}

// IsPending reports whether key has a running timer.
func (d *Debouncer) IsPending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.timers[key]
	return ok
}

// Stop cancels all timers; later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key := range d.timers {
		d.cancelLocked(key)
	}
	d.stopped = true
}

func (d *Debouncer) cancelLocked(key string) {
	if t := d.timers[key]; t != nil {
		t.Stop()
	}
	delete(d.timers, key)
	d.gens[key]++
}
