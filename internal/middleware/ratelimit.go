// Package middleware provides the HTTP middleware wrapped around the router.
package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/metrics"
)

// RateLimitMessage is the body returned once a client exhausts its window.
const RateLimitMessage = "Too many requests from this IP, please try again after 15 minutes"

// LimiterStore maintains per-key fixed-window counters and performs
// periodic cleanup of expired windows.
type LimiterStore struct {
	mu              sync.Mutex
	max             int
	window          time.Duration
	clients         map[string]*clientEntry
	cleanupInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
	now             func() time.Time
}

type clientEntry struct {
	count int
	start time.Time
}

// NewLimiterStore creates a store allowing max events per key per window.
func NewLimiterStore(max int, window, cleanupInterval time.Duration) *LimiterStore {
	if max <= 0 {
		max = 100
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	s := &LimiterStore{
		max:             max,
		window:          window,
		clients:         map[string]*clientEntry{},
		cleanupInterval: cleanupInterval,
		stopCh:          make(chan struct{}),
		now:             time.Now,
	}
	if cleanupInterval > 0 {
		go s.cleanupLoop()
	}
	return s
}

func (s *LimiterStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			now := s.now()
			for k, v := range s.clients {
				if now.Sub(v.start) >= s.window {
					delete(s.clients, k)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

// Stop stops internal goroutines (useful for tests).
func (s *LimiterStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Allow records an event for key and reports whether it is within the
// quota, how many events remain and when the current window resets.
func (s *LimiterStore) Allow(key string) (ok bool, remaining int, reset time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, found := s.clients[key]
	if !found || now.Sub(e.start) >= s.window {
		e = &clientEntry{start: now}
		s.clients[key] = e
	}
	e.count++

	reset = e.start.Add(s.window)
	if e.count > s.max {
		return false, 0, reset
	}
	return true, s.max - e.count, reset
}

// Handler rejects requests from a client IP that exceeded its quota.
func (s *LimiterStore) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, remaining, reset := s.Allow(ClientIP(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(s.max))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !ok {
			metrics.RateLimited()
			retry := int(time.Until(reset).Seconds()) + 1
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(RateLimitMessage))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the socket peer address without port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
