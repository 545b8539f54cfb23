package chatclient

import (
	"sync"
	"time"
)

// TypingQuiet is how long after the last keystroke a typist is reported idle.
const TypingQuiet = 2 * time.Second

// Typist turns keystrokes into typing on/off transitions. The first keystroke
// reports typing; quiet for Quiet or a Submit reports idle. emit runs with the
// Typist locked and must not call back into it.
type Typist struct {
	Quiet time.Duration

	mu     sync.Mutex
	emit   func(typing bool)
	active bool
	timer  *time.Timer
	gen    uint64
}

func NewTypist(emit func(typing bool)) *Typist {
	return &Typist{Quiet: TypingQuiet, emit: emit}
}

func (t *Typist) Keystroke() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.active {
		t.active = true
		t.emit(true)
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.Quiet, func() { t.expire(gen) })
}

// Submit reports idle immediately, e.g. when the message is sent.
func (t *Typist) Submit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stop()
}

func (t *Typist) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

func (t *Typist) expire(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	t.stop()
}

func (t *Typist) stop() {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if t.active {
		t.active = false
		t.emit(false)
	}
}
