package services

import (
	"context"

	"github.com/herotask/task-engine/herotask/battle"
	"github.com/herotask/task-engine/herotask/mission"
)

// BattleResolver is the attack entry point BattleService wraps.
type BattleResolver interface {
	Attack(ctx context.Context, ownerID string) (*battle.AttackResult, error)
}

// BattleService runs personal boss attacks and forwards each landed hit to
// the owner's alliance mission as an attack event.
type BattleService struct {
	resolver  BattleResolver
	forwarder *TaskService
}

func NewBattleService(resolver BattleResolver, forwarder *TaskService) *BattleService {
	return &BattleService{resolver: resolver, forwarder: forwarder}
}

// Attack resolves one attack. The mission forward happens only after the
// boss damage is durable, and only for hits; a miss contributes nothing.
func (s *BattleService) Attack(ctx context.Context, ownerID string) (*battle.AttackResult, error) {
	result, err := s.resolver.Attack(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if result.Hit {
		var res CompletionResult
		s.forwarder.forwardMissionEvent(ctx, ownerID, mission.EventAttack, s.forwarder.now(), &res)
	}
	return result, nil
}
