// Package history provides per-tenant analysis statistics.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-media/magpie/internal/domain"
)

// counterWindow bounds how long live counters persist in the cache.
const counterWindow = time.Hour

// Service tracks how many analyses a tenant has run and how many
// came back FAKE within a time window.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new history service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// Record bumps the live counters after an analysis completes.
// Counter failures are returned so callers can log them, but the
// authoritative counts always live in the repository.
func (s *Service) Record(ctx context.Context, tenantID string, verdict *domain.Verdict) error {
	if s.cache == nil {
		return nil
	}

	if _, err := s.cache.IncrementCounter(ctx, tenantID, "analyses", counterWindow); err != nil {
		return fmt.Errorf("failed to increment analyses counter: %w", err)
	}

	if verdict.Label == domain.LabelFake {
		if _, err := s.cache.IncrementCounter(ctx, tenantID, "fake", counterWindow); err != nil {
			return fmt.Errorf("failed to increment fake counter: %w", err)
		}
	}

	return nil
}

// Stats returns analysis counts and fake rate for a tenant within a window.
// The default window is served from the live cache counters; arbitrary
// windows and post-restart reads fall back to the repository.
func (s *Service) Stats(ctx context.Context, tenantID string, windowSecs int) (*domain.TenantStats, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}
	if windowSecs <= 0 {
		windowSecs = int(counterWindow.Seconds())
	}

	if s.cache != nil && windowSecs == int(counterWindow.Seconds()) {
		if stats, ok := s.liveStats(ctx, tenantID, windowSecs); ok {
			return stats, nil
		}
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)

	total, fake, err := s.repo.CountAnalyses(ctx, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count analyses: %w", err)
	}

	stats := &domain.TenantStats{
		TenantID:   tenantID,
		WindowSecs: windowSecs,
		Analyses:   total,
		FakeCount:  fake,
	}
	if total > 0 {
		stats.FakeRate = float64(fake) / float64(total)
	}

	return stats, nil
}

// liveStats reads the counters Record maintains. A zero total means the
// counters expired or were never written, so the repository stays
// authoritative for that case.
func (s *Service) liveStats(ctx context.Context, tenantID string, windowSecs int) (*domain.TenantStats, bool) {
	total, err := s.cache.GetCounter(ctx, tenantID, "analyses")
	if err != nil || total == 0 {
		return nil, false
	}

	fake, err := s.cache.GetCounter(ctx, tenantID, "fake")
	if err != nil {
		return nil, false
	}

	return &domain.TenantStats{
		TenantID:   tenantID,
		WindowSecs: windowSecs,
		Analyses:   total,
		FakeCount:  fake,
		FakeRate:   float64(fake) / float64(total),
	}, true
}

// Recent returns the most recent analyses for a tenant within a window.
func (s *Service) Recent(ctx context.Context, tenantID string, windowSecs int, limit int) ([]*domain.Analysis, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenantID is required")
	}
	if windowSecs <= 0 {
		windowSecs = int(counterWindow.Seconds())
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)
	return s.repo.ListAnalyses(ctx, tenantID, since, limit)
}
