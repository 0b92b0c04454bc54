package fetcher

import (
	"context"
	"sync"
	"time"
)

// RateLimiter ограничивает число одновременных запросов и запросов в минуту
// на один хост.
type RateLimiter struct {
	maxConcurrent  int
	rpm            int
	hostSemaphores map[string]*hostLimiter
	mu             sync.Mutex
	now            func() time.Time
}

type hostLimiter struct {
	sem         chan struct{} // Semaphore for concurrency
	windowStart time.Time
	requests    int
	mu          sync.Mutex
}

func NewRateLimiter(maxConcurrent, rpm int) *RateLimiter {
	return &RateLimiter{
		maxConcurrent:  maxConcurrent,
		rpm:            rpm,
		hostSemaphores: make(map[string]*hostLimiter),
		now:            time.Now,
	}
}

// Wait блокирует, пока запрос к host не станет допустимым. Возвращённый
// release нужно вызвать после завершения запроса.
func (rl *RateLimiter) Wait(ctx context.Context, host string) (func(), error) {
	rl.mu.Lock()
	limiter, exists := rl.hostSemaphores[host]
	if !exists {
		limiter = &hostLimiter{
			sem: make(chan struct{}, rl.maxConcurrent),
		}
		rl.hostSemaphores[host] = limiter
	}
	rl.mu.Unlock()

	// Acquire semaphore (concurrency control)
	select {
	case limiter.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	release := func() { <-limiter.sem }

	// Apply RPM throttle
	for {
		limiter.mu.Lock()
		now := rl.now()

		// Reset counters if minute has passed
		if now.Sub(limiter.windowStart) >= time.Minute {
			limiter.requests = 0
			limiter.windowStart = now
		}

		if limiter.requests < rl.rpm {
			limiter.requests++
			limiter.mu.Unlock()
			return release, nil
		}

		waitTime := time.Minute - now.Sub(limiter.windowStart)
		limiter.mu.Unlock()

		timer := time.NewTimer(waitTime)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			release()
			return nil, ctx.Err()
		}
	}
}
