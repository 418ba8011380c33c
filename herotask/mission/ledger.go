package mission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/herotask/task-engine/herotask/database/models"
	"github.com/herotask/task-engine/herotask/database/repositories"
	"github.com/herotask/task-engine/herotask/progression"
)

// ProgressStore is the slice of the user-progress repository the ledger
// needs for reward payout.
type ProgressStore interface {
	Get(ctx context.Context, ownerID string) (*models.UserProgress, error)
	GrantMissionRewards(ctx context.Context, ownerID string, coins int64, items []string, badge models.MissionBadge) error
}

// EventResult reports how a mission event landed.
type EventResult struct {
	Accepted         bool
	DamageApplied    int64
	MissionCompleted bool
}

// errQuotaReached aborts a Transact without writing: the member's counter
// for the event type is already at cap, so the event is a no-op.
var errQuotaReached = errors.New("member event quota reached")

var clothingRewards = []string{
	"clothing:ranger_cloak",
	"clothing:scholar_robe",
	"clothing:iron_breastplate",
	"clothing:traveler_boots",
	"clothing:feathered_hat",
}

var potionRewards = []string{
	"potion:minor_vitality",
	"potion:focus_draught",
	"potion:lucky_brew",
}

// Ledger aggregates damage contributed concurrently by alliance members into
// one shared, quota-limited boss counter. All mutation goes through
// Store.Transact, so caps and the shared HP move together or not at all.
type Ledger struct {
	store    Store
	progress ProgressStore
	calc     *progression.Calculator

	now  func() time.Time
	intn func(n int) int
}

func NewLedger(store Store, progress ProgressStore, calc *progression.Calculator) *Ledger {
	return &Ledger{
		store:    store,
		progress: progress,
		calc:     calc,
		now:      time.Now,
		intn:     rand.Intn,
	}
}

// StartMission opens a 14-day mission for the alliance. Boss HP scales with
// the member count at creation time; a second live mission is rejected.
func (l *Ledger) StartMission(ctx context.Context, allianceID int64, members []string) (*Mission, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("cannot start a mission without members")
	}

	now := l.now()
	m := &Mission{
		ID:         int64(snowflake.New(now)),
		AllianceID: allianceID,
		MaxHP:      int64(HPPerMember * len(members)),
		HP:         int64(HPPerMember * len(members)),
		StartsAt:   now,
		EndsAt:     now.Add(Duration),
		State:      StateActive,
		Members:    make(map[string]*MemberProgress, len(members)),
	}
	for _, id := range members {
		m.Members[id] = &MemberProgress{NoFailedTasks: true, MessageDays: []string{}}
	}

	if err := l.store.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordEvent applies one member action to the alliance's active mission.
// The quota check and the damage application commit atomically: a capped
// event is a no-op, an accepted one increments the member counter and lowers
// the shared HP in the same transaction. When the commit drops HP to zero
// the mission completes and finalization runs.
func (l *Ledger) RecordEvent(ctx context.Context, allianceID int64, memberID string, event EventType, day time.Time) (EventResult, error) {
	active, err := l.store.ActiveByAlliance(ctx, allianceID)
	if err != nil {
		return EventResult{}, err
	}

	now := l.now()
	dayKey := MessageDayKey(day)
	var res EventResult

	updated, err := l.store.Transact(ctx, active.ID, func(m *Mission) error {
		if m.Completed {
			return ErrAlreadyCompleted
		}
		if m.State != StateActive || m.Expired(now) {
			return ErrExpired
		}
		p, ok := m.Members[memberID]
		if !ok {
			return fmt.Errorf("member %s in mission %d: %w", memberID, m.ID, ErrNotMember)
		}

		if event == EventMessageSent {
			if p.hasMessageDay(dayKey) {
				return errQuotaReached
			}
		} else if limit, ok := eventCaps[event]; ok && p.count(event) >= limit {
			return errQuotaReached
		}

		// The final blow only applies what remains, keeping total member
		// damage equal to maxHP - HP.
		applied := eventDamage[event]
		if applied > m.HP {
			applied = m.HP
		}

		p.increment(event, dayKey)
		p.Damage += applied
		m.HP -= applied
		if m.HP == 0 {
			m.Completed = true
		}

		res = EventResult{Accepted: true, DamageApplied: applied, MissionCompleted: m.Completed}
		return nil
	})
	if err != nil {
		if errors.Is(err, errQuotaReached) {
			return EventResult{}, nil
		}
		if errors.Is(err, ErrExpired) {
			// The window closed under us; finalize once and reject the event.
			if ferr := l.Finalize(ctx, active.ID); ferr != nil {
				slog.Error("Failed to finalize expired mission",
					slog.String("type", "mission"),
					slog.Int64("mission_id", active.ID),
					slog.Any("error", ferr))
			}
			return EventResult{}, err
		}
		return EventResult{}, err
	}

	slog.Debug("Mission event applied",
		slog.String("type", "mission"),
		slog.Int64("mission_id", updated.ID),
		slog.String("member_id", memberID),
		slog.String("event", string(event)),
		slog.Int64("damage", res.DamageApplied),
		slog.Int64("hp", updated.HP))

	if res.MissionCompleted {
		if err := l.Finalize(ctx, updated.ID); err != nil {
			return res, err
		}
	}
	return res, nil
}

// RecordTaskFailure permanently clears the member's no-failed-tasks flag on
// the alliance's active mission. Missing missions and already-terminal
// missions are silent no-ops: a failure outside a mission window carries no
// penalty.
func (l *Ledger) RecordTaskFailure(ctx context.Context, allianceID int64, memberID string) error {
	active, err := l.store.ActiveByAlliance(ctx, allianceID)
	if err != nil {
		if errors.Is(err, ErrNoActiveMission) {
			return nil
		}
		return err
	}

	now := l.now()
	_, err = l.store.Transact(ctx, active.ID, func(m *Mission) error {
		if m.State != StateActive || m.Completed || m.Expired(now) {
			return errQuotaReached
		}
		p, ok := m.Members[memberID]
		if !ok || !p.NoFailedTasks {
			return errQuotaReached
		}
		p.NoFailedTasks = false
		return nil
	})
	if err != nil && !errors.Is(err, errQuotaReached) {
		return err
	}
	return nil
}

// errAlreadyFinalizing aborts the finalization CAS when another caller won.
var errAlreadyFinalizing = errors.New("mission finalization already claimed")

// Finalize runs the one-time completion pass: the no-failures bonus, then
// per-member rewards. The active -> finalizing transition is a compare-and-
// set inside a transaction, so exactly one of any number of concurrent
// callers proceeds past it.
func (l *Ledger) Finalize(ctx context.Context, missionID int64) error {
	_, err := l.store.Transact(ctx, missionID, func(m *Mission) error {
		if m.State != StateActive {
			return errAlreadyFinalizing
		}
		m.State = StateFinalizing
		return nil
	})
	if err != nil {
		if errors.Is(err, errAlreadyFinalizing) {
			return nil
		}
		return err
	}

	// Bonus pass: +10 shared damage per member who failed nothing, HP
	// clamped at zero.
	final, err := l.store.Transact(ctx, missionID, func(m *Mission) error {
		for _, p := range m.Members {
			if !p.NoFailedTasks {
				continue
			}
			applied := int64(NoFailuresBonus)
			if applied > m.HP {
				applied = m.HP
			}
			p.Damage += applied
			m.HP -= applied
		}
		if m.HP == 0 {
			m.Completed = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	var rewardErr error
	for memberID, p := range final.Members {
		if err := l.grantRewards(ctx, final, memberID, p); err != nil {
			slog.Error("Failed to grant mission rewards",
				slog.String("type", "mission"),
				slog.Int64("mission_id", final.ID),
				slog.String("member_id", memberID),
				slog.Any("error", err))
			if rewardErr == nil {
				rewardErr = err
			}
		}
	}

	if _, err := l.store.Transact(ctx, missionID, func(m *Mission) error {
		m.State = StateFinalized
		return nil
	}); err != nil {
		return err
	}

	slog.Info("Special mission finalized",
		slog.String("type", "mission"),
		slog.Int64("mission_id", final.ID),
		slog.Bool("completed", final.Completed),
		slog.Int64("damage_dealt", final.DamageDealt()))
	return rewardErr
}

func (l *Ledger) grantRewards(ctx context.Context, m *Mission, memberID string, p *MemberProgress) error {
	level := 0
	if progress, err := l.progress.Get(ctx, memberID); err == nil {
		level = progress.Level
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return err
	}

	items := []string{
		clothingRewards[l.intn(len(clothingRewards))],
		potionRewards[l.intn(len(potionRewards))],
	}
	badge := models.MissionBadge{
		MissionID:     m.ID,
		AllianceID:    m.AllianceID,
		Contributions: p.Contributions(),
		AwardedAt:     l.now(),
	}
	return l.progress.GrantMissionRewards(ctx, memberID, l.calc.MissionCoinsReward(level), items, badge)
}
