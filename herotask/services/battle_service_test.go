package services

import (
	"context"
	"testing"

	"github.com/herotask/task-engine/herotask/battle"
	"github.com/herotask/task-engine/herotask/mission"
)

type fakeResolver struct {
	result *battle.AttackResult
}

func (f *fakeResolver) Attack(context.Context, string) (*battle.AttackResult, error) {
	return f.result, nil
}

func TestBattleService_HitForwardsAttackEvent(t *testing.T) {
	f := newFixture(t)
	f.joinAlliance("u1")
	svc := NewBattleService(&fakeResolver{result: &battle.AttackResult{Hit: true, Damage: 40}}, f.svc)

	res, err := svc.Attack(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Attack() error = %v", err)
	}
	if !res.Hit {
		t.Fatal("expected hit result passed through")
	}
	if len(f.missions.events) != 1 || f.missions.events[0].event != mission.EventAttack {
		t.Errorf("mission events = %+v, want one attack", f.missions.events)
	}
}

func TestBattleService_MissForwardsNothing(t *testing.T) {
	f := newFixture(t)
	f.joinAlliance("u1")
	svc := NewBattleService(&fakeResolver{result: &battle.AttackResult{Hit: false}}, f.svc)

	if _, err := svc.Attack(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	if len(f.missions.events) != 0 {
		t.Errorf("mission events = %+v, want none on a miss", f.missions.events)
	}
}
