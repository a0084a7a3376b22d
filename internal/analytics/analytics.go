// Package analytics counts page views per client IP.
package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DayFormat is the UTC calendar-day key views are bucketed under.
const DayFormat = "2006-01-02"

// Totals is the aggregate view count across all clients.
type Totals struct {
	Today int64 `json:"todaysViewCount"`
	Total int64 `json:"totalViews"`
}

// Repository stores view counters.
type Repository interface {
	// RecordView adds one view for ip on day. userName is kept when non-empty.
	RecordView(ctx context.Context, ip, userName, day string, at time.Time) error
	Totals(ctx context.Context, day string) (Totals, error)
}

// Service records and reports views.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// RecordView counts one view from ip.
func (s *Service) RecordView(ctx context.Context, ip, userName string) error {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return fmt.Errorf("record view: empty ip address")
	}
	now := s.now().UTC()
	return s.repo.RecordView(ctx, ip, userName, now.Format(DayFormat), now)
}

// Counts returns today's and all-time totals.
func (s *Service) Counts(ctx context.Context) (Totals, error) {
	totals, err := s.repo.Totals(ctx, s.now().UTC().Format(DayFormat))
	if err != nil {
		return Totals{}, fmt.Errorf("view totals: %w", err)
	}
	return totals, nil
}
