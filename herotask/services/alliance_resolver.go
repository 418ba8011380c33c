package services

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/herotask/task-engine/herotask/database/repositories"
)

const allianceCacheSize = 4096

// AllianceResolver answers "which alliance is this user in" on every task
// completion and chat message, so the membership lookup sits behind an LRU
// cache instead of hitting the database each time. A cached zero means the
// user is known to be allianceless.
type AllianceResolver struct {
	repo  repositories.AllianceRepository
	cache *lru.Cache
}

func NewAllianceResolver(repo repositories.AllianceRepository) (*AllianceResolver, error) {
	cache, err := lru.New(allianceCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create alliance cache: %w", err)
	}
	return &AllianceResolver{repo: repo, cache: cache}, nil
}

// Resolve returns the user's alliance id, or ok=false when they have none.
func (r *AllianceResolver) Resolve(ctx context.Context, userID string) (int64, bool, error) {
	if cached, ok := r.cache.Get(userID); ok {
		id := cached.(int64)
		return id, id != 0, nil
	}

	alliance, err := r.repo.GetByMember(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			r.cache.Add(userID, int64(0))
			return 0, false, nil
		}
		return 0, false, err
	}

	r.cache.Add(userID, alliance.ID)
	return alliance.ID, true, nil
}

// Invalidate drops the cached membership after a join or leave.
func (r *AllianceResolver) Invalidate(userID string) {
	r.cache.Remove(userID)
}
