package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of change notifications into a single signal.
// A signal fires once no Add has been seen for delay, or once maxDelay has
// passed since the first Add of the burst, whichever comes first.
type Debouncer struct {
	delay    time.Duration
	maxDelay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	first   time.Time
	pending int
	closed  bool
	fired   chan int
}

// NewDebouncer creates a debouncer. A maxDelay of zero disables the cap.
func NewDebouncer(delay, maxDelay time.Duration) *Debouncer {
	return &Debouncer{
		delay:    delay,
		maxDelay: maxDelay,
		fired:    make(chan int, 1),
	}
}

// Add records one notification and pushes the deadline back
func (d *Debouncer) Add() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	now := time.Now()
	if d.pending == 0 {
		d.first = now
	}
	d.pending++

	wait := d.delay
	if d.maxDelay > 0 {
		if remaining := d.maxDelay - now.Sub(d.first); remaining < wait {
			wait = max(remaining, 0)
		}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = time.AfterFunc(wait, func() { d.fire(gen) })
}

// C delivers the number of notifications folded into each signal. Signals
// that arrive while one is still unread are merged into it.
func (d *Debouncer) C() <-chan int {
	return d.fired
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// a later Add replaced this timer
	if d.closed || gen != d.gen || d.pending == 0 {
		return
	}

	n := d.pending
	d.pending = 0
	d.timer = nil

	select {
	case d.fired <- n:
	default:
		// unread signal: fold the count into it
		select {
		case prev := <-d.fired:
			d.fired <- prev + n
		default:
			d.fired <- n
		}
	}
}

// Close stops pending timers and closes C
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.fired)
}
