// Package history provides access to past eligibility check records.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/openwelfare/sahayak/internal/domain"
)

// Service exposes per-user check history and rolling activity counts.
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

// RecordCheck persists a completed check and bumps the user's rolling
// activity counter. Counter failures are non-fatal: the check record is
// the source of truth, the counter is advisory.
func (s *Service) RecordCheck(ctx context.Context, tenantID string, rec *domain.CheckRecord) error {
	if tenantID == "" || rec == nil {
		return fmt.Errorf("tenantID and check record are required")
	}

	if err := s.repo.SaveCheck(ctx, tenantID, rec); err != nil {
		return fmt.Errorf("failed to save check record: %w", err)
	}

	if s.cache != nil && rec.UserID != "" {
		key := fmt.Sprintf("checks:%s", rec.UserID)
		_, _ = s.cache.IncrementCounter(ctx, tenantID, key, 24*time.Hour)
	}

	return nil
}

// GetUserHistory returns the user's check records within the given window,
// newest first.
func (s *Service) GetUserHistory(ctx context.Context, tenantID, userID string, windowSecs int) ([]*domain.CheckRecord, error) {
	if tenantID == "" || userID == "" {
		return nil, fmt.Errorf("tenantID and userID are required")
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)

	recs, err := s.repo.GetChecksByUser(ctx, tenantID, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get check history: %w", err)
	}
	return recs, nil
}

// GetCheck returns a single check record by id.
func (s *Service) GetCheck(ctx context.Context, tenantID, checkID string) (*domain.CheckRecord, error) {
	if tenantID == "" || checkID == "" {
		return nil, fmt.Errorf("tenantID and checkID are required")
	}
	return s.repo.GetCheck(ctx, tenantID, checkID)
}

// CountChecks returns the number of checks the user ran within the window.
func (s *Service) CountChecks(ctx context.Context, tenantID, userID string, windowSecs int) (int64, error) {
	recs, err := s.GetUserHistory(ctx, tenantID, userID, windowSecs)
	if err != nil {
		return 0, err
	}
	return int64(len(recs)), nil
}
