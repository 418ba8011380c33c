package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/herotask/task-engine/herotask/database"
	"github.com/herotask/task-engine/herotask/database/models"
	"github.com/uptrace/bun"
)

type BossRepository interface {
	// GetOrSpawn returns the owner's current boss, creating one at the given
	// level and HP when none exists or the previous one was defeated.
	GetOrSpawn(ctx context.Context, ownerID string, level int, maxHP int64) (*models.PersonalBoss, error)

	// ApplyDamage subtracts damage from the boss HP, clamped at zero, and
	// marks the boss defeated when HP reaches zero. Returns the updated boss.
	ApplyDamage(ctx context.Context, ownerID string, damage int64) (*models.PersonalBoss, error)
}

type bossRepository struct {
	db *bun.DB
	tm *database.TransactionManager
}

func NewBossRepository(db *bun.DB) BossRepository {
	return &bossRepository{db: db, tm: database.NewTransactionManager(db)}
}

func (r *bossRepository) GetOrSpawn(ctx context.Context, ownerID string, level int, maxHP int64) (*models.PersonalBoss, error) {
	boss := new(models.PersonalBoss)
	err := r.db.NewSelect().
		Model(boss).
		Where("owner_id = ?", ownerID).
		Scan(ctx)

	switch {
	case err == nil && !boss.Defeated:
		return boss, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	fresh := &models.PersonalBoss{
		OwnerID:   ownerID,
		Level:     level,
		MaxHP:     maxHP,
		CurrentHP: maxHP,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	_, err = r.db.NewInsert().
		Model(fresh).
		On("CONFLICT (owner_id) DO UPDATE").
		Set("level = EXCLUDED.level").
		Set("max_hp = EXCLUDED.max_hp").
		Set("current_hp = EXCLUDED.current_hp").
		Set("defeated = false").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to spawn boss: %w", err)
	}

	err = r.db.NewSelect().
		Model(fresh).
		Where("owner_id = ?", ownerID).
		Scan(ctx)
	return fresh, err
}

func (r *bossRepository) ApplyDamage(ctx context.Context, ownerID string, damage int64) (*models.PersonalBoss, error) {
	boss := new(models.PersonalBoss)
	err := r.tm.WithTransaction(ctx, database.StandardTransactionOptions(), func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().
			Model(boss).
			Where("owner_id = ?", ownerID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("boss of %s: %w", ownerID, ErrNotFound)
			}
			return err
		}
		if boss.Defeated {
			return fmt.Errorf("boss of %s already defeated: %w", ownerID, ErrConflict)
		}

		boss.CurrentHP -= damage
		if boss.CurrentHP <= 0 {
			boss.CurrentHP = 0
			boss.Defeated = true
		}
		boss.UpdatedAt = time.Now()

		_, err = tx.NewUpdate().
			Model(boss).
			Column("current_hp", "defeated", "updated_at").
			WherePK().
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return boss, nil
}
