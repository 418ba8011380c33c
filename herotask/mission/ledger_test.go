package mission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/herotask/task-engine/herotask/database/models"
	"github.com/herotask/task-engine/herotask/database/repositories"
	"github.com/herotask/task-engine/herotask/progression"
)

// memStore implements Store in memory with the same atomicity contract as
// the Mongo implementation: Transact commits fn's mutation as one unit.
type memStore struct {
	mu       sync.Mutex
	missions map[int64]*Mission
}

func newMemStore() *memStore {
	return &memStore{missions: make(map[int64]*Mission)}
}

func (s *memStore) Create(_ context.Context, m *Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.missions {
		if existing.AllianceID == m.AllianceID && existing.State != StateFinalized && time.Now().Before(existing.EndsAt) {
			return ErrActiveExists
		}
	}
	s.missions[m.ID] = m.clone()
	return nil
}

func (s *memStore) Get(_ context.Context, id int64) (*Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.missions[id]
	if !ok {
		return nil, ErrMissionNotFound
	}
	return m.clone(), nil
}

func (s *memStore) ActiveByAlliance(_ context.Context, allianceID int64) (*Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *Mission
	for _, m := range s.missions {
		if m.AllianceID != allianceID {
			continue
		}
		if latest == nil || m.StartsAt.After(latest.StartsAt) {
			latest = m
		}
	}
	if latest == nil {
		return nil, ErrNoActiveMission
	}
	return latest.clone(), nil
}

func (s *memStore) Transact(_ context.Context, id int64, fn func(*Mission) error) (*Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.missions[id]
	if !ok {
		return nil, ErrMissionNotFound
	}
	work := m.clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	work.Version = m.Version + 1
	s.missions[id] = work
	return work.clone(), nil
}

type grant struct {
	coins int64
	items []string
	badge models.MissionBadge
}

type fakeProgress struct {
	mu     sync.Mutex
	levels map[string]int
	grants map[string][]grant
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{levels: make(map[string]int), grants: make(map[string][]grant)}
}

func (f *fakeProgress) Get(_ context.Context, ownerID string) (*models.UserProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	level, ok := f.levels[ownerID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &models.UserProgress{OwnerID: ownerID, Level: level}, nil
}

func (f *fakeProgress) GrantMissionRewards(_ context.Context, ownerID string, coins int64, items []string, badge models.MissionBadge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grants[ownerID] = append(f.grants[ownerID], grant{coins: coins, items: items, badge: badge})
	return nil
}

func (f *fakeProgress) grantCount(ownerID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.grants[ownerID])
}

func newTestLedger(store Store, progress ProgressStore) *Ledger {
	return NewLedger(store, progress, progression.NewCalculator(progression.NewDefaultConfig()))
}

func TestStartMission(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := newTestLedger(store, newFakeProgress())

	m, err := ledger.StartMission(ctx, 1, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("StartMission() error = %v", err)
	}
	if m.MaxHP != 300 || m.HP != 300 {
		t.Errorf("mission HP = %d/%d, want 300/300", m.HP, m.MaxHP)
	}
	if got := m.EndsAt.Sub(m.StartsAt); got != Duration {
		t.Errorf("mission window = %v, want %v", got, Duration)
	}

	if _, err := ledger.StartMission(ctx, 1, []string{"a", "b", "c"}); !errors.Is(err, ErrActiveExists) {
		t.Errorf("second StartMission error = %v, want ErrActiveExists", err)
	}
}

func TestRecordEvent_StoreVisitQuota(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := newTestLedger(store, newFakeProgress())

	m, err := ledger.StartMission(ctx, 1, []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}

	accepted := 0
	for i := 0; i < 6; i++ {
		res, err := ledger.RecordEvent(ctx, 1, "a", EventStoreVisit, time.Now())
		if err != nil {
			t.Fatalf("RecordEvent(%d) error = %v", i, err)
		}
		if res.Accepted {
			accepted++
		}
	}
	if accepted != 5 {
		t.Errorf("accepted = %d, want 5", accepted)
	}

	got, err := store.Get(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.HP != 290 {
		t.Errorf("HP after 5 store visits = %d, want 290", got.HP)
	}
	if got.Members["a"].StoreVisits != 5 {
		t.Errorf("store visits = %d, want 5", got.Members["a"].StoreVisits)
	}
}

func TestRecordEvent_ConcurrentQuota(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := newTestLedger(store, newFakeProgress())

	m, err := ledger.StartMission(ctx, 1, []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}

	const n = 25
	var wg sync.WaitGroup
	results := make([]EventResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := ledger.RecordEvent(ctx, 1, "a", EventStoreVisit, time.Now())
			if err != nil {
				t.Errorf("RecordEvent error = %v", err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	accepted := 0
	for _, res := range results {
		if res.Accepted {
			accepted++
		}
	}
	if accepted != 5 {
		t.Errorf("accepted = %d of %d concurrent store visits, want exactly 5", accepted, n)
	}

	got, err := store.Get(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.HP != m.MaxHP-10 {
		t.Errorf("HP = %d, want %d", got.HP, m.MaxHP-10)
	}
}

func TestRecordEvent_DamageAccounting(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := newTestLedger(store, newFakeProgress())

	members := []string{"a", "b", "c"}
	m, err := ledger.StartMission(ctx, 1, members)
	if err != nil {
		t.Fatal(err)
	}

	events := []EventType{EventStoreVisit, EventAttack, EventEasyTask, EventHardTask, EventMessageSent}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var totalApplied int64
	for _, member := range members {
		for i, event := range []EventType{events[0], events[1], events[2], events[3], events[4], events[0], events[2]} {
			wg.Add(1)
			go func(member string, event EventType, i int) {
				defer wg.Done()
				day := time.Date(2025, 6, 1+i, 12, 0, 0, 0, time.UTC)
				res, err := ledger.RecordEvent(ctx, 1, member, event, day)
				if err != nil {
					t.Errorf("RecordEvent error = %v", err)
					return
				}
				mu.Lock()
				totalApplied += res.DamageApplied
				mu.Unlock()
			}(member, event, i)
		}
	}
	wg.Wait()

	got, err := store.Get(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.DamageDealt() != totalApplied {
		t.Errorf("maxHP - HP = %d, want sum of applied damages %d", got.DamageDealt(), totalApplied)
	}

	var memberSum int64
	for _, p := range got.Members {
		memberSum += p.Damage
	}
	if memberSum != got.DamageDealt() {
		t.Errorf("sum of member damage = %d, want %d", memberSum, got.DamageDealt())
	}
}

func TestRecordEvent_MessageDayDedup(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(newMemStore(), newFakeProgress())

	if _, err := ledger.StartMission(ctx, 1, []string{"a", "b", "c"}); err != nil {
		t.Fatal(err)
	}

	day := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	res, err := ledger.RecordEvent(ctx, 1, "a", EventMessageSent, day)
	if err != nil || !res.Accepted {
		t.Fatalf("first message = (%+v, %v), want accepted", res, err)
	}

	// Same calendar day, different hour
	res, err = ledger.RecordEvent(ctx, 1, "a", EventMessageSent, day.Add(5*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if res.Accepted {
		t.Error("second message on the same day was accepted")
	}

	res, err = ledger.RecordEvent(ctx, 1, "a", EventMessageSent, day.AddDate(0, 0, 1))
	if err != nil || !res.Accepted {
		t.Errorf("next-day message = (%+v, %v), want accepted", res, err)
	}
}

func TestRecordEvent_UnknownMember(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(newMemStore(), newFakeProgress())

	if _, err := ledger.StartMission(ctx, 1, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.RecordEvent(ctx, 1, "stranger", EventAttack, time.Now()); !errors.Is(err, ErrNotMember) {
		t.Errorf("RecordEvent error = %v, want ErrNotMember", err)
	}
}

func TestRecordEvent_NoActiveMission(t *testing.T) {
	ledger := newTestLedger(newMemStore(), newFakeProgress())
	if _, err := ledger.RecordEvent(context.Background(), 99, "a", EventAttack, time.Now()); !errors.Is(err, ErrNoActiveMission) {
		t.Errorf("RecordEvent error = %v, want ErrNoActiveMission", err)
	}
}

// driveToCompletion deals exactly the mission's max HP for a single-member
// mission: all caps exhausted plus message days for the rest.
func driveToCompletion(t *testing.T, ledger *Ledger, allianceID int64) EventResult {
	t.Helper()
	ctx := context.Background()

	var last EventResult
	fire := func(event EventType, n int) {
		for i := 0; i < n; i++ {
			res, err := ledger.RecordEvent(ctx, allianceID, "solo", event, time.Now())
			if err != nil {
				t.Fatalf("RecordEvent(%s) error = %v", event, err)
			}
			last = res
		}
	}

	fire(EventStoreVisit, 5) // 10
	fire(EventAttack, 10)    // 20
	fire(EventEasyTask, 10)  // 10
	fire(EventHardTask, 6)   // 24  -> 64 total

	// 9 distinct message days for the remaining 36
	for i := 0; i < 9; i++ {
		day := time.Date(2025, 6, 1+i, 12, 0, 0, 0, time.UTC)
		res, err := ledger.RecordEvent(ctx, allianceID, "solo", EventMessageSent, day)
		if err != nil {
			t.Fatalf("RecordEvent(message %d) error = %v", i, err)
		}
		last = res
	}
	return last
}

func TestMissionCompletionAndFinalization(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	progress := newFakeProgress()
	progress.levels["solo"] = 1
	ledger := newTestLedger(store, progress)

	m, err := ledger.StartMission(ctx, 1, []string{"solo"})
	if err != nil {
		t.Fatal(err)
	}
	if m.MaxHP != 100 {
		t.Fatalf("solo mission maxHP = %d, want 100", m.MaxHP)
	}

	last := driveToCompletion(t, ledger, 1)
	if !last.MissionCompleted {
		t.Error("final event did not report mission completion")
	}

	final, err := store.Get(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.HP != 0 || !final.Completed {
		t.Errorf("final mission HP = %d completed = %v, want 0/true", final.HP, final.Completed)
	}
	if final.State != StateFinalized {
		t.Errorf("final state = %s, want finalized", final.State)
	}

	if got := progress.grantCount("solo"); got != 1 {
		t.Fatalf("reward grants = %d, want 1", got)
	}
	g := progress.grants["solo"][0]
	// floor(200 * 1.2^1) / 2
	if g.coins != 120 {
		t.Errorf("reward coins = %d, want 120", g.coins)
	}
	if len(g.items) != 2 {
		t.Errorf("reward items = %v, want clothing + potion", g.items)
	}
	if g.badge.Contributions != 5+10+10+6+9 {
		t.Errorf("badge contributions = %d, want 40", g.badge.Contributions)
	}

	// Further events are rejected outright
	if _, err := ledger.RecordEvent(ctx, 1, "solo", EventAttack, time.Now()); !errors.Is(err, ErrAlreadyCompleted) {
		t.Errorf("post-completion event error = %v, want ErrAlreadyCompleted", err)
	}
}

func TestFinalize_ExactlyOnceUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	progress := newFakeProgress()
	ledger := newTestLedger(store, progress)

	m, err := ledger.StartMission(ctx, 1, []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}

	const callers = 10
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ledger.Finalize(ctx, m.ID); err != nil {
				t.Errorf("Finalize error = %v", err)
			}
		}()
	}
	wg.Wait()

	for _, member := range []string{"a", "b", "c"} {
		if got := progress.grantCount(member); got != 1 {
			t.Errorf("member %s reward grants = %d, want exactly 1", member, got)
		}
	}

	final, err := store.Get(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.State != StateFinalized {
		t.Errorf("state = %s, want finalized", final.State)
	}
	// All three members kept the no-failures flag: 3 * 10 bonus damage
	if final.DamageDealt() != 30 {
		t.Errorf("damage dealt = %d, want 30 from bonuses", final.DamageDealt())
	}
}

func TestFinalize_BonusSkipsMembersWithFailures(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := newTestLedger(store, newFakeProgress())

	m, err := ledger.StartMission(ctx, 1, []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}

	if err := ledger.RecordTaskFailure(ctx, 1, "a"); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Finalize(ctx, m.ID); err != nil {
		t.Fatal(err)
	}

	final, err := store.Get(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Members["a"].Damage != 0 {
		t.Errorf("failed member bonus damage = %d, want 0", final.Members["a"].Damage)
	}
	if final.Members["b"].Damage != NoFailuresBonus {
		t.Errorf("clean member bonus damage = %d, want %d", final.Members["b"].Damage, NoFailuresBonus)
	}
}

func TestRecordEvent_ExpiredMission(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	progress := newFakeProgress()
	ledger := newTestLedger(store, progress)

	m, err := ledger.StartMission(ctx, 1, []string{"a"})
	if err != nil {
		t.Fatal(err)
	}

	// Jump the clock past the mission window
	ledger.now = func() time.Time { return m.EndsAt.Add(time.Hour) }

	if _, err := ledger.RecordEvent(ctx, 1, "a", EventAttack, ledger.now()); !errors.Is(err, ErrExpired) {
		t.Fatalf("RecordEvent on expired mission error = %v, want ErrExpired", err)
	}

	// Expiry triggered the one-time finalization: rewards went out even
	// though the boss survived.
	if got := progress.grantCount("a"); got != 1 {
		t.Errorf("reward grants after expiry = %d, want 1", got)
	}
	final, err := store.Get(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.State != StateFinalized {
		t.Errorf("state = %s, want finalized", final.State)
	}
	if final.Completed {
		t.Error("expired mission with HP left reported completed")
	}
}

func TestRecordTaskFailure_NoActiveMissionIsNoop(t *testing.T) {
	ledger := newTestLedger(newMemStore(), newFakeProgress())
	if err := ledger.RecordTaskFailure(context.Background(), 42, "a"); err != nil {
		t.Errorf("RecordTaskFailure without mission = %v, want nil", err)
	}
}

func TestRecordEvent_OverkillTruncatesFinalBlow(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	ledger := newTestLedger(store, newFakeProgress())

	m, err := ledger.StartMission(ctx, 1, []string{"a"})
	if err != nil {
		t.Fatal(err)
	}

	// Burn HP down to 3, then land a hard task worth 4
	if _, err := store.Transact(ctx, m.ID, func(mm *Mission) error {
		mm.HP = 3
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	res, err := ledger.RecordEvent(ctx, 1, "a", EventHardTask, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if res.DamageApplied != 3 {
		t.Errorf("final blow applied = %d, want 3", res.DamageApplied)
	}
	if !res.MissionCompleted {
		t.Error("final blow did not complete the mission")
	}
}

func TestMemStoreContractParity(t *testing.T) {
	// The production store retries transient conflicts up to a bound; the
	// test store serializes through a mutex. Both satisfy the same contract:
	// an fn error aborts without a write.
	ctx := context.Background()
	store := newMemStore()
	ledger := newTestLedger(store, newFakeProgress())

	m, err := ledger.StartMission(ctx, 1, []string{"a"})
	if err != nil {
		t.Fatal(err)
	}

	sentinel := fmt.Errorf("boom")
	if _, err := store.Transact(ctx, m.ID, func(mm *Mission) error {
		mm.HP = 1
		return sentinel
	}); !errors.Is(err, sentinel) {
		t.Fatalf("Transact error = %v, want sentinel", err)
	}

	got, err := store.Get(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.HP != m.MaxHP {
		t.Errorf("aborted transaction wrote HP = %d, want untouched %d", got.HP, m.MaxHP)
	}
}
