package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/vantive/internal/intake"
)

// ScopeResolver decides which clinic owns an event. ev is nil for read-side
// lookups.
type ScopeResolver interface {
	Resolve(ctx context.Context, ev intake.Event) (*Scope, error)
}

// SingleScopeResolver returns the one active clinic.
type SingleScopeResolver struct {
	repo Repository
}

func NewSingleScopeResolver(repo Repository) *SingleScopeResolver {
	return &SingleScopeResolver{repo: repo}
}

func (r *SingleScopeResolver) Resolve(ctx context.Context, _ intake.Event) (*Scope, error) {
	scope, err := r.repo.FindSingleScope(ctx)
	if err != nil {
		if errors.Is(err, ErrScopeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find clinic: %w", err)
	}
	return scope, nil
}

// FixedScopeResolver pins every event to a configured clinic id.
type FixedScopeResolver struct {
	repo Repository
	id   uuid.UUID
}

func NewFixedScopeResolver(repo Repository, id uuid.UUID) *FixedScopeResolver {
	return &FixedScopeResolver{repo: repo, id: id}
}

func (r *FixedScopeResolver) Resolve(ctx context.Context, _ intake.Event) (*Scope, error) {
	scope, err := r.repo.FindScopeByID(ctx, r.id)
	if err != nil {
		if errors.Is(err, ErrScopeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find clinic %s: %w", r.id, err)
	}
	return scope, nil
}
