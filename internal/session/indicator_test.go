package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type emissions struct {
	mu  sync.Mutex
	got []bool
}

func (e *emissions) record(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.got = append(e.got, v)
}

func (e *emissions) values() []bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]bool(nil), e.got...)
}

func (e *emissions) stops() int {
	n := 0
	for _, v := range e.values() {
		if !v {
			n++
		}
	}
	return n
}

func TestIndicator_StopFiresOnceAfterDebounce(t *testing.T) {
	var e emissions
	ind := NewIndicator(60*time.Millisecond, e.record)

	ind.Input("h")
	ind.Input("he")
	ind.Input("hel")
	assert.Equal(t, []bool{true}, e.values())

	assert.Eventually(t, func() bool { return e.stops() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(120 * time.Millisecond)

	got := e.values()
	assert.Equal(t, 1, e.stops())
	assert.False(t, got[len(got)-1])
	assert.False(t, ind.Typing())
}

func TestIndicator_InputRearmsTimer(t *testing.T) {
	var e emissions
	ind := NewIndicator(80*time.Millisecond, e.record)

	ind.Input("a")
	for i := 0; i < 4; i++ {
		time.Sleep(40 * time.Millisecond)
		ind.Input("ab")
	}
	assert.Zero(t, e.stops(), "continuous typing must not stop")

	assert.Eventually(t, func() bool { return !ind.Typing() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, e.stops())
}

func TestIndicator_RewritesTrueWhileTyping(t *testing.T) {
	var e emissions
	ind := NewIndicator(100*time.Millisecond, e.record)
	defer ind.Close()

	deadline := time.Now().Add(400 * time.Millisecond)
	for time.Now().Before(deadline) {
		ind.Input("typing")
		time.Sleep(20 * time.Millisecond)
	}

	got := e.values()
	assert.Zero(t, e.stops())
	assert.GreaterOrEqual(t, len(got), 4, "true must be refreshed about every half debounce")
}

func TestIndicator_NoRefreshAfterStop(t *testing.T) {
	var e emissions
	ind := NewIndicator(40*time.Millisecond, e.record)

	ind.Input("x")
	ind.Stop()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []bool{true, false}, e.values())
}

func TestIndicator_SentStopsImmediatelyAndCancelsTimer(t *testing.T) {
	var e emissions
	ind := NewIndicator(50*time.Millisecond, e.record)

	ind.Input("hello")
	ind.Sent()
	assert.Equal(t, []bool{true, false}, e.values())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []bool{true, false}, e.values(), "debounce must not fire after send")

	ind.Input("next")
	assert.Equal(t, []bool{true, false, true}, e.values())
	ind.Close()
}

func TestIndicator_EmptyInputStops(t *testing.T) {
	var e emissions
	ind := NewIndicator(time.Second, e.record)

	ind.Input("x")
	ind.Input("   ")
	ind.Input("")
	assert.Equal(t, []bool{true, false}, e.values())
}

func TestIndicator_CloseIsIdempotent(t *testing.T) {
	var e emissions
	ind := NewIndicator(30*time.Millisecond, e.record)

	ind.Input("x")
	ind.Close()
	ind.Close()
	ind.Input("y")
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, []bool{true, false}, e.values())
}
