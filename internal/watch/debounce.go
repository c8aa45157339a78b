package watch

import (
	"sync"
	"time"
)

// settleDebouncer fires once per path after writes to it stop for delay.
type settleDebouncer struct {
	mu      sync.Mutex
	timers  map[string]*time.Timer
	delay   time.Duration
	onFlush func(path string)
	stopped bool
}

func newSettleDebouncer(delay time.Duration, onFlush func(string)) *settleDebouncer {
	return &settleDebouncer{
		timers:  make(map[string]*time.Timer),
		delay:   delay,
		onFlush: onFlush,
	}
}

// Add (re)starts the timer for path.
func (d *settleDebouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if t, ok := d.timers[path]; ok {
		t.Stop()
	}
	d.timers[path] = time.AfterFunc(d.delay, func() { d.flush(path) })
}

func (d *settleDebouncer) flush(path string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.timers, path)
	d.mu.Unlock()

	d.onFlush(path)
}

// Stop cancels every pending timer.
func (d *settleDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	for path, t := range d.timers {
		t.Stop()
		delete(d.timers, path)
	}
}
