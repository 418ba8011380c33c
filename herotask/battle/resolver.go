package battle

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/herotask/task-engine/herotask/database/models"
	"github.com/herotask/task-engine/herotask/progression"
)

// TaskStats supplies the completion ratio feeding the attack success rate.
type TaskStats interface {
	CountValidAndCompleted(ctx context.Context, ownerID string) (valid int, completed int, err error)
}

// ProgressStore is the slice of the progress repository the resolver needs.
type ProgressStore interface {
	GetOrCreate(ctx context.Context, ownerID string) (*models.UserProgress, error)
	AddCoins(ctx context.Context, ownerID string, amount int64) error
	AddItem(ctx context.Context, ownerID string, item string) error
}

// BossStore manages the per-user personal boss.
type BossStore interface {
	GetOrSpawn(ctx context.Context, ownerID string, level int, maxHP int64) (*models.PersonalBoss, error)
	ApplyDamage(ctx context.Context, ownerID string, damage int64) (*models.PersonalBoss, error)
}

// Reward is what an attack pays out, if anything.
type Reward struct {
	Coins int64  `json:"coins"`
	Item  string `json:"item,omitempty"`
}

// AttackResult reports one attack against the personal boss.
type AttackResult struct {
	Hit          bool    `json:"hit"`
	Damage       int64   `json:"damage"`
	BossHP       int64   `json:"boss_hp"`
	BossMaxHP    int64   `json:"boss_max_hp"`
	BossDefeated bool    `json:"boss_defeated"`
	Reward       *Reward `json:"reward,omitempty"`
}

const (
	defaultSuccessRate = 0.5

	defeatDropChance  = 0.20
	weakenedDropRate  = 0.10
	clothingDropShare = 0.95
)

var clothingDrops = []string{
	"clothing:battle_cloak",
	"clothing:drake_scale_vest",
	"clothing:wolfhide_gloves",
	"clothing:dusk_hood",
}

var weaponDrops = []string{
	"weapon:short_sword",
	"weapon:oak_staff",
	"weapon:hunting_bow",
}

// Resolver computes attack success, damage and battle-end rewards for a
// single user against their personal boss.
type Resolver struct {
	stats    TaskStats
	progress ProgressStore
	bosses   BossStore
	calc     *progression.Calculator

	// Injected for deterministic tests; defaults draw from math/rand.
	float func() float64
	intn  func(n int) int
}

func NewResolver(stats TaskStats, progress ProgressStore, bosses BossStore, calc *progression.Calculator) *Resolver {
	return &Resolver{
		stats:    stats,
		progress: progress,
		bosses:   bosses,
		calc:     calc,
		float:    rand.Float64,
		intn:     rand.Intn,
	}
}

// Attack rolls one attack for the owner. A hit deals the user's total power
// points; defeat pays the full coin reward with a 20% equipment drop, while
// merely pushing the boss to half HP or below pays half with a 10% drop.
func (r *Resolver) Attack(ctx context.Context, ownerID string) (*AttackResult, error) {
	progress, err := r.progress.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}

	bossLevel := progress.Level
	if bossLevel < 1 {
		bossLevel = 1
	}
	boss, err := r.bosses.GetOrSpawn(ctx, ownerID, bossLevel, r.calc.BossHP(bossLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to load boss: %w", err)
	}

	rate, err := r.successRate(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if r.float() >= rate {
		slog.Debug("Boss attack missed",
			slog.String("type", "battle"),
			slog.String("owner_id", ownerID))
		return &AttackResult{BossHP: boss.CurrentHP, BossMaxHP: boss.MaxHP}, nil
	}

	damage := progress.PowerPoints
	boss, err = r.bosses.ApplyDamage(ctx, ownerID, damage)
	if err != nil {
		return nil, fmt.Errorf("failed to apply damage: %w", err)
	}

	result := &AttackResult{
		Hit:          true,
		Damage:       damage,
		BossHP:       boss.CurrentHP,
		BossMaxHP:    boss.MaxHP,
		BossDefeated: boss.Defeated,
	}

	switch {
	case boss.Defeated:
		result.Reward = r.rollReward(boss.Level, r.calc.CoinsReward(boss.Level), defeatDropChance)
	case boss.CurrentHP*2 <= boss.MaxHP:
		result.Reward = r.rollReward(boss.Level, r.calc.CoinsReward(boss.Level)/2, weakenedDropRate)
	}

	if result.Reward != nil {
		if err := r.progress.AddCoins(ctx, ownerID, result.Reward.Coins); err != nil {
			return nil, fmt.Errorf("failed to grant coins: %w", err)
		}
		if result.Reward.Item != "" {
			if err := r.progress.AddItem(ctx, ownerID, result.Reward.Item); err != nil {
				return nil, fmt.Errorf("failed to grant item: %w", err)
			}
		}
	}

	slog.Info("Boss attack landed",
		slog.String("type", "battle"),
		slog.String("owner_id", ownerID),
		slog.Int64("damage", damage),
		slog.Int64("boss_hp", boss.CurrentHP),
		slog.Bool("defeated", boss.Defeated))
	return result, nil
}

// successRate is the owner's completion ratio over tasks that are neither
// paused nor canceled, defaulting to 0.5 when no such tasks exist.
func (r *Resolver) successRate(ctx context.Context, ownerID string) (float64, error) {
	valid, completed, err := r.stats.CountValidAndCompleted(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	if valid == 0 {
		return defaultSuccessRate, nil
	}
	return float64(completed) / float64(valid), nil
}

func (r *Resolver) rollReward(level int, coins int64, dropChance float64) *Reward {
	reward := &Reward{Coins: coins}
	if r.float() < dropChance {
		if r.float() < clothingDropShare {
			reward.Item = clothingDrops[r.intn(len(clothingDrops))]
		} else {
			reward.Item = weaponDrops[r.intn(len(weaponDrops))]
		}
	}
	return reward
}
