package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

const checkTimeout = 2 * time.Second

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

// Service runs named readiness checks.
type Service struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{checks: make(map[string]Check)}
}

// Add registers a check under name. Nil checks are ignored.
func (s *Service) Add(name string, check Check) {
	if check == nil {
		return
	}
	s.mu.Lock()
	s.checks[name] = check
	s.mu.Unlock()
}

// Status runs every check and reports overall health plus a per-check map.
func (s *Service) Status(ctx context.Context) (map[string]any, bool) {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	ok := true
	results := make(map[string]string, len(names))
	for _, name := range names {
		s.mu.RLock()
		check := s.checks[name]
		s.mu.RUnlock()

		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := check(checkCtx)
		cancel()
		if err != nil {
			ok = false
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	return map[string]any{"ok": ok, "checks": results}, ok
}
