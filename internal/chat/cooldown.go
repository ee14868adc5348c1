package chat

import (
	"sync"
	"time"
)

// sendCooldown is a token bucket throttling send_message per connection.
// Burst up to capacity, then refill at capacity/interval.
type sendCooldown struct {
	mu        sync.Mutex
	tokens    float64
	capacity  float64
	rate      float64
	lastCheck time.Time
}

func newSendCooldown(capacity int, interval time.Duration) *sendCooldown {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	rate := float64(capacity) / interval.Seconds()

	return &sendCooldown{
		tokens:    float64(capacity),
		capacity:  float64(capacity),
		rate:      rate,
		lastCheck: time.Now(),
	}
}

func (sc *sendCooldown) allow() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(sc.lastCheck).Seconds()
	sc.lastCheck = now

	if elapsed > 0 {
		sc.tokens += elapsed * sc.rate
		if sc.tokens > sc.capacity {
			sc.tokens = sc.capacity
		}
	}

	if sc.tokens < 1 {
		return false
	}

	sc.tokens--
	return true
}
