package chat

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StartEvictionLoop sweeps idle sessions until ctx is done. It returns
// immediately when eviction is disabled or a loop is already running.
func (s *Service) StartEvictionLoop(ctx context.Context) {
	s.mu.Lock()
	if s.evictRunning {
		s.mu.Unlock()
		return
	}
	idle := s.evictIdle
	interval := s.evictInterval
	if idle <= 0 || interval <= 0 {
		s.mu.Unlock()
		return
	}
	s.evictRunning = true
	s.mu.Unlock()

	log.Info().Str("component", "chat").Dur("idle", idle).Dur("interval", interval).Msg("session eviction enabled")
	s.runEvictionLoop(ctx, interval)
}

func (s *Service) runEvictionLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.evictRunning = false
			s.mu.Unlock()
			return
		case now := <-ticker.C:
			if n := s.evictIdleOnce(now.UTC()); n > 0 {
				log.Info().Str("component", "chat").Int("evicted", n).Msg("idle sessions evicted")
			}
		}
	}
}

// evictIdleOnce drops sessions whose last update is older than the idle TTL
// and prunes them from the per-user index.
func (s *Service) evictIdleOnce(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.evictIdle <= 0 {
		return 0
	}

	evicted := 0
	for id, session := range s.sessions {
		if now.Sub(session.UpdatedAt) < s.evictIdle {
			continue
		}
		delete(s.sessions, id)
		evicted++
	}
	if evicted == 0 {
		return 0
	}

	for user, ids := range s.byUser {
		kept := ids[:0]
		for _, id := range ids {
			if _, ok := s.sessions[id]; ok {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(s.byUser, user)
			continue
		}
		s.byUser[user] = kept
	}
	return evicted
}
