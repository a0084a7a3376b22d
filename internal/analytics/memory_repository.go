package analytics

import (
	"context"
	"sync"
	"time"
)

type ipRecord struct {
	userName  string
	daily     map[string]int64
	total     int64
	firstSeen time.Time
	lastSeen  time.Time
}

// InMemoryRepository keeps counters in process memory.
type InMemoryRepository struct {
	mu   sync.Mutex
	byIP map[string]*ipRecord
}

// NewInMemoryRepository constructs an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{byIP: make(map[string]*ipRecord)}
}

func (r *InMemoryRepository) RecordView(_ context.Context, ip, userName, day string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byIP[ip]
	if !ok {
		rec = &ipRecord{daily: make(map[string]int64), firstSeen: at}
		r.byIP[ip] = rec
	}
	rec.total++
	rec.daily[day]++
	rec.lastSeen = at
	if userName != "" {
		rec.userName = userName
	}
	return nil
}

func (r *InMemoryRepository) Totals(_ context.Context, day string) (Totals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var totals Totals
	for _, rec := range r.byIP {
		totals.Today += rec.daily[day]
		totals.Total += rec.total
	}
	return totals, nil
}
