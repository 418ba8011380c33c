package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/herotask/task-engine/herotask/database/models"
	"github.com/herotask/task-engine/herotask/database/repositories"
	"github.com/herotask/task-engine/herotask/mission"
)

var ErrAlreadyInAlliance = errors.New("user already belongs to an alliance")

// MissionStarter opens missions; the ledger implements it.
type MissionStarter interface {
	StartMission(ctx context.Context, allianceID int64, members []string) (*mission.Mission, error)
}

// AllianceService manages alliance membership and the mission lifecycle
// entry points members see.
type AllianceService struct {
	repo         repositories.AllianceRepository
	resolver     *AllianceResolver
	missions     MissionStarter
	missionStore mission.Store

	now func() time.Time
}

func NewAllianceService(repo repositories.AllianceRepository, resolver *AllianceResolver, missions MissionStarter, store mission.Store) *AllianceService {
	return &AllianceService{
		repo:         repo,
		resolver:     resolver,
		missions:     missions,
		missionStore: store,
		now:          time.Now,
	}
}

// CreateAlliance founds an alliance with the caller as leader and sole
// member. Users belong to at most one alliance.
func (s *AllianceService) CreateAlliance(ctx context.Context, leaderID, name string) (*models.Alliance, error) {
	if name == "" {
		return nil, fmt.Errorf("alliance name is required: %w", ErrInvalidInput)
	}
	if _, ok, err := s.resolver.Resolve(ctx, leaderID); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInAlliance
	}

	alliance := &models.Alliance{
		ID:       int64(snowflake.New(s.now())),
		Name:     name,
		LeaderID: leaderID,
		Members:  []string{leaderID},
	}
	if err := s.repo.Create(ctx, alliance); err != nil {
		return nil, fmt.Errorf("failed to create alliance: %w", err)
	}
	s.resolver.Invalidate(leaderID)

	slog.Info("Alliance created",
		slog.String("type", "mission"),
		slog.Int64("alliance_id", alliance.ID),
		slog.String("leader_id", leaderID))
	return alliance, nil
}

// ErrNotLeader rejects membership changes by anyone but the alliance leader.
var ErrNotLeader = errors.New("only the alliance leader can add members")

// AddMember adds a user to the leader's alliance. Joining mid-mission does
// not enroll them in the running mission; that roster is fixed at start.
func (s *AllianceService) AddMember(ctx context.Context, allianceID int64, actorID, userID string) error {
	alliance, err := s.repo.GetByID(ctx, allianceID)
	if err != nil {
		return err
	}
	if alliance.LeaderID != actorID {
		return ErrNotLeader
	}
	if _, ok, err := s.resolver.Resolve(ctx, userID); err != nil {
		return err
	} else if ok {
		return ErrAlreadyInAlliance
	}

	if err := s.repo.AddMember(ctx, allianceID, userID); err != nil {
		return err
	}
	s.resolver.Invalidate(userID)
	return nil
}

// StartMission opens a special mission for the caller's alliance. Any member
// may start one; the member roster and boss HP are frozen at this moment.
func (s *AllianceService) StartMission(ctx context.Context, starterID string) (*mission.Mission, error) {
	allianceID, ok, err := s.resolver.Resolve(ctx, starterID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("user %s: %w", starterID, repositories.ErrNotFound)
	}

	alliance, err := s.repo.GetByID(ctx, allianceID)
	if err != nil {
		return nil, err
	}
	return s.missions.StartMission(ctx, alliance.ID, alliance.Members)
}

// MissionStatus returns the latest mission of the caller's alliance, terminal
// or not, so clients can show both the live boss bar and the last outcome.
func (s *AllianceService) MissionStatus(ctx context.Context, userID string) (*mission.Mission, error) {
	allianceID, ok, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, repositories.ErrNotFound)
	}
	return s.missionStore.ActiveByAlliance(ctx, allianceID)
}
