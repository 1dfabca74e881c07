package session

import (
	"strings"
	"sync"
	"time"
)

type indicatorState int

const (
	indicatorIdle indicatorState = iota
	indicatorTyping
)

// Indicator turns keystrokes into typing start/stop transitions.
//
//	Idle --input--> Typing   (emits true)
//	Typing --input--> Typing (re-arms the debounce timer)
//	Typing --timeout|empty input|sent|close--> Idle (emits false)
//
// Each transition emits exactly once. While Typing, true is rewritten every
// half debounce window so observers never see the signal go stale mid-burst.
// Emissions happen under the indicator lock so a late stop can never
// overtake a newer start.
type Indicator struct {
	mu       sync.Mutex
	debounce time.Duration
	every    time.Duration
	emit     func(isTyping bool)
	state    indicatorState
	timer    *time.Timer
	gen      uint64
	refresh  *time.Timer
	epoch    uint64
	closed   bool
}

func NewIndicator(debounce time.Duration, emit func(isTyping bool)) *Indicator {
	every := debounce / 2
	if every <= 0 {
		every = debounce
	}
	return &Indicator{debounce: debounce, every: every, emit: emit}
}

// Input reacts to the current contents of the text field.
func (i *Indicator) Input(text string) {
	if strings.TrimSpace(text) == "" {
		i.Stop()
		return
	}
	i.Start()
}

// Start enters Typing, or re-arms the timer if already there.
func (i *Indicator) Start() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return
	}
	i.arm()
	if i.state == indicatorIdle {
		i.state = indicatorTyping
		i.emit(true)
		i.scheduleRefresh()
	}
}

// Stop returns to Idle immediately.
func (i *Indicator) Stop() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stopLocked()
}

// Sent is Stop for the send path.
func (i *Indicator) Sent() {
	i.Stop()
}

// Close stops the indicator for good. Later calls are no-ops.
func (i *Indicator) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return
	}
	i.stopLocked()
	i.closed = true
}

func (i *Indicator) Typing() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state == indicatorTyping
}

func (i *Indicator) arm() {
	if i.timer != nil {
		i.timer.Stop()
	}
	i.gen++
	gen := i.gen
	i.timer = time.AfterFunc(i.debounce, func() { i.expire(gen) })
}

func (i *Indicator) expire(gen uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()

	// A timer that fired while being re-armed carries an old generation.
	if gen != i.gen {
		return
	}
	i.stopLocked()
}

func (i *Indicator) scheduleRefresh() {
	epoch := i.epoch
	i.refresh = time.AfterFunc(i.every, func() { i.keepAlive(epoch) })
}

// keepAlive rewrites true for the typing burst identified by epoch.
func (i *Indicator) keepAlive(epoch uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed || epoch != i.epoch || i.state != indicatorTyping {
		return
	}
	i.emit(true)
	i.scheduleRefresh()
}

func (i *Indicator) stopLocked() {
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
	if i.refresh != nil {
		i.refresh.Stop()
		i.refresh = nil
	}
	i.gen++
	i.epoch++
	if i.state == indicatorTyping && !i.closed {
		i.state = indicatorIdle
		i.emit(false)
	}
}
