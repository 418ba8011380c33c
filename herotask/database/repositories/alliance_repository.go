package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/herotask/task-engine/herotask/database/models"
	"github.com/uptrace/bun"
)

type AllianceRepository interface {
	Create(ctx context.Context, alliance *models.Alliance) error
	GetByID(ctx context.Context, id int64) (*models.Alliance, error)
	GetByMember(ctx context.Context, userID string) (*models.Alliance, error)
	AddMember(ctx context.Context, allianceID int64, userID string) error
}

type allianceRepository struct {
	db *bun.DB
}

func NewAllianceRepository(db *bun.DB) AllianceRepository {
	return &allianceRepository{db: db}
}

func (r *allianceRepository) Create(ctx context.Context, alliance *models.Alliance) error {
	// The leader is always a member
	if !alliance.HasMember(alliance.LeaderID) {
		alliance.Members = append(alliance.Members, alliance.LeaderID)
	}
	alliance.CreatedAt = time.Now()
	alliance.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(alliance).Exec(ctx)
	return err
}

func (r *allianceRepository) GetByID(ctx context.Context, id int64) (*models.Alliance, error) {
	alliance := new(models.Alliance)
	err := r.db.NewSelect().
		Model(alliance).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("alliance %d: %w", id, ErrNotFound)
		}
		return nil, err
	}

	return alliance, nil
}

func (r *allianceRepository) GetByMember(ctx context.Context, userID string) (*models.Alliance, error) {
	alliance := new(models.Alliance)
	err := r.db.NewSelect().
		Model(alliance).
		Where("members @> ?", fmt.Sprintf(`["%s"]`, userID)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("alliance of %s: %w", userID, ErrNotFound)
		}
		return nil, err
	}

	return alliance, nil
}

func (r *allianceRepository) AddMember(ctx context.Context, allianceID int64, userID string) error {
	// Idempotent jsonb append guarded against duplicates
	res, err := r.db.NewUpdate().
		Model((*models.Alliance)(nil)).
		Set("members = members || ?::jsonb", fmt.Sprintf(`["%s"]`, userID)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", allianceID).
		Where("NOT members @> ?", fmt.Sprintf(`["%s"]`, userID)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		// Either the alliance is missing or the user already joined
		if _, err := r.GetByID(ctx, allianceID); err != nil {
			return err
		}
	}
	return nil
}
