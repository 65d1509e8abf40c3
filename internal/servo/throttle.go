package servo

import (
	"sync"
	"time"
)

// throttle coalesces rapid updates, sending immediately when possible
// and scheduling a trailing edge send for updates during cooldown.
// flush runs with mu held.
type throttle struct {
	mu           sync.Mutex
	minInterval  time.Duration
	lastSendTime time.Time
	timerRunning bool
	stopCh       <-chan struct{}
	flush        func()
}

// trigger runs update and then the send decision under the same lock
func (t *throttle) trigger(update func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	update()

	now := time.Now()
	if t.minInterval <= 0 || now.Sub(t.lastSendTime) >= t.minInterval {
		t.flush()
		t.lastSendTime = now
		return
	}
	if t.timerRunning {
		return
	}

	t.timerRunning = true
	remaining := t.minInterval - now.Sub(t.lastSendTime)
	go func() {
		select {
		case <-time.After(remaining):
			t.mu.Lock()
			t.flush()
			t.lastSendTime = time.Now()
			t.timerRunning = false
			t.mu.Unlock()
		case <-t.stopCh:
		}
	}()
}
