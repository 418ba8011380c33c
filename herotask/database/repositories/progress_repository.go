package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/herotask/task-engine/herotask/database/models"
	"github.com/uptrace/bun"
)

type ProgressRepository interface {
	GetOrCreate(ctx context.Context, ownerID string) (*models.UserProgress, error)
	Get(ctx context.Context, ownerID string) (*models.UserProgress, error)
	Update(ctx context.Context, progress *models.UserProgress) error
	AddCoins(ctx context.Context, ownerID string, amount int64) error
	AddItem(ctx context.Context, ownerID string, item string) error

	// GrantMissionRewards applies a finished mission's payout in one atomic
	// update: coins, reward items and the badge. Runs concurrently with the
	// member's own progress writes, so everything is expressed as in-place
	// increments and appends.
	GrantMissionRewards(ctx context.Context, ownerID string, coins int64, items []string, badge models.MissionBadge) error
}

type progressRepository struct {
	db *bun.DB
}

func NewProgressRepository(db *bun.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) GetOrCreate(ctx context.Context, ownerID string) (*models.UserProgress, error) {
	progress, err := r.Get(ctx, ownerID)
	if err == nil {
		return progress, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	progress = &models.UserProgress{
		OwnerID:   ownerID,
		Inventory: []string{},
		Badges:    []models.MissionBadge{},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	_, err = r.db.NewInsert().
		Model(progress).
		On("CONFLICT (owner_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	// A concurrent insert may have won the conflict; read back the row.
	return r.Get(ctx, ownerID)
}

func (r *progressRepository) Get(ctx context.Context, ownerID string) (*models.UserProgress, error) {
	progress := new(models.UserProgress)
	err := r.db.NewSelect().
		Model(progress).
		Where("owner_id = ?", ownerID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("progress for %s: %w", ownerID, ErrNotFound)
		}
		return nil, err
	}

	return progress, nil
}

func (r *progressRepository) Update(ctx context.Context, progress *models.UserProgress) error {
	progress.UpdatedAt = time.Now()
	_, err := r.db.NewUpdate().
		Model(progress).
		WherePK().
		Exec(ctx)
	return err
}

func (r *progressRepository) AddCoins(ctx context.Context, ownerID string, amount int64) error {
	res, err := r.db.NewUpdate().
		Model((*models.UserProgress)(nil)).
		Set("coins = coins + ?", amount).
		Set("updated_at = ?", time.Now()).
		Where("owner_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("progress for %s: %w", ownerID, ErrNotFound)
	}
	return nil
}

func (r *progressRepository) AddItem(ctx context.Context, ownerID string, item string) error {
	itemJSON, err := json.Marshal([]string{item})
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}

	res, err := r.db.NewUpdate().
		Model((*models.UserProgress)(nil)).
		Set("inventory = coalesce(inventory, '[]'::jsonb) || ?::jsonb", string(itemJSON)).
		Set("updated_at = ?", time.Now()).
		Where("owner_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("progress for %s: %w", ownerID, ErrNotFound)
	}
	return nil
}

func (r *progressRepository) GrantMissionRewards(ctx context.Context, ownerID string, coins int64, items []string, badge models.MissionBadge) error {
	if _, err := r.GetOrCreate(ctx, ownerID); err != nil {
		return err
	}

	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode reward items: %w", err)
	}
	badgeJSON, err := json.Marshal([]models.MissionBadge{badge})
	if err != nil {
		return fmt.Errorf("failed to encode badge: %w", err)
	}

	_, err = r.db.NewUpdate().
		Model((*models.UserProgress)(nil)).
		Set("coins = coins + ?", coins).
		Set("inventory = coalesce(inventory, '[]'::jsonb) || ?::jsonb", string(itemsJSON)).
		Set("badges = coalesce(badges, '[]'::jsonb) || ?::jsonb", string(badgeJSON)).
		Set("updated_at = ?", time.Now()).
		Where("owner_id = ?", ownerID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to grant mission rewards: %w", err)
	}
	return nil
}
