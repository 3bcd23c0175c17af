package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/vantive/internal/appointment"
)

var ErrSummaryNotFound = errors.New("overdue summary not found")

// SummaryStore keeps the latest overdue summary per clinic. Snapshots expire
// after ttl so a stopped worker does not leave stale numbers behind forever.
type SummaryStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSummaryStore(client *redis.Client, ttl time.Duration) *SummaryStore {
	return &SummaryStore{client: client, ttl: ttl}
}

func summaryKey(scopeID uuid.UUID) string {
	return fmt.Sprintf("overdue:summary:%s", scopeID.String())
}

func (s *SummaryStore) PublishOverdueSummary(ctx context.Context, summary *appointment.OverdueSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode overdue summary: %w", err)
	}
	if err := s.client.Set(ctx, summaryKey(summary.ScopeID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store overdue summary: %w", err)
	}
	return nil
}

func (s *SummaryStore) LoadOverdueSummary(ctx context.Context, scopeID uuid.UUID) (*appointment.OverdueSummary, error) {
	payload, err := s.client.Get(ctx, summaryKey(scopeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSummaryNotFound
		}
		return nil, fmt.Errorf("load overdue summary: %w", err)
	}

	var summary appointment.OverdueSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("decode overdue summary: %w", err)
	}
	return &summary, nil
}
