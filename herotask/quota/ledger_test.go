package quota

import (
	"context"
	"testing"
	"time"

	"github.com/herotask/task-engine/herotask/database/models"
)

type fakeCounter struct {
	difficultyCount int
	importanceCount int

	gotDifficultyFrom time.Time
	gotDifficultyTo   time.Time
	gotExclude        int64
}

func (f *fakeCounter) CountCompletedByDifficulty(_ context.Context, _ string, _ models.Difficulty, from, to time.Time, exclude int64) (int, error) {
	f.gotDifficultyFrom, f.gotDifficultyTo, f.gotExclude = from, to, exclude
	return f.difficultyCount, nil
}

func (f *fakeCounter) CountCompletedByImportance(_ context.Context, _ string, _ models.Importance, _, _ time.Time, _ int64) (int, error) {
	return f.importanceCount, nil
}

func testTask(d models.Difficulty, i models.Importance) *models.Task {
	return &models.Task{ID: 42, OwnerID: "owner", Difficulty: d, Importance: i}
}

func TestLedger_Check(t *testing.T) {
	now := time.Date(2025, 6, 4, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name            string
		difficulty      models.Difficulty
		importance      models.Importance
		difficultyCount int
		importanceCount int
		wantEligible    bool
		wantDiffExceed  bool
		wantImpExceed   bool
	}{
		{
			name:         "under both caps",
			difficulty:   models.DifficultyVeryEasy,
			importance:   models.ImportanceNormal,
			wantEligible: true,
		},
		{
			name:            "sixth very easy of the day earns nothing",
			difficulty:      models.DifficultyVeryEasy,
			importance:      models.ImportanceNormal,
			difficultyCount: 5,
			wantDiffExceed:  true,
		},
		{
			name:            "fifth very easy of the day still earns",
			difficulty:      models.DifficultyVeryEasy,
			importance:      models.ImportanceNormal,
			difficultyCount: 4,
			wantEligible:    true,
		},
		{
			name:            "third hard of the day earns nothing",
			difficulty:      models.DifficultyHard,
			importance:      models.ImportanceNormal,
			difficultyCount: 2,
			wantDiffExceed:  true,
		},
		{
			name:            "second extreme of the week earns nothing",
			difficulty:      models.DifficultyExtreme,
			importance:      models.ImportanceNormal,
			difficultyCount: 1,
			wantDiffExceed:  true,
		},
		{
			name:            "second special of the month earns nothing",
			difficulty:      models.DifficultyEasy,
			importance:      models.ImportanceSpecial,
			importanceCount: 1,
			wantImpExceed:   true,
		},
		{
			name:            "both caps exceeded",
			difficulty:      models.DifficultyHard,
			importance:      models.ImportanceVeryImportant,
			difficultyCount: 2,
			importanceCount: 2,
			wantDiffExceed:  true,
			wantImpExceed:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := &fakeCounter{difficultyCount: tt.difficultyCount, importanceCount: tt.importanceCount}
			ledger := NewLedger(counter, time.UTC)

			res, err := ledger.Check(context.Background(), testTask(tt.difficulty, tt.importance), now)
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if res.XPEligible != tt.wantEligible {
				t.Errorf("XPEligible = %v, want %v", res.XPEligible, tt.wantEligible)
			}
			if res.DifficultyExceeded != tt.wantDiffExceed {
				t.Errorf("DifficultyExceeded = %v, want %v", res.DifficultyExceeded, tt.wantDiffExceed)
			}
			if res.ImportanceExceeded != tt.wantImpExceed {
				t.Errorf("ImportanceExceeded = %v, want %v", res.ImportanceExceeded, tt.wantImpExceed)
			}
		})
	}
}

func TestLedger_ExcludesTaskBeingCompleted(t *testing.T) {
	counter := &fakeCounter{}
	ledger := NewLedger(counter, time.UTC)

	task := testTask(models.DifficultyEasy, models.ImportanceNormal)
	if _, err := ledger.Check(context.Background(), task, time.Now()); err != nil {
		t.Fatal(err)
	}
	if counter.gotExclude != task.ID {
		t.Errorf("excluded task id = %d, want %d", counter.gotExclude, task.ID)
	}
}

func TestLedger_WindowBounds(t *testing.T) {
	ledger := NewLedger(&fakeCounter{}, time.UTC)

	// Wednesday June 4th 2025, 15:30 UTC
	now := time.Date(2025, 6, 4, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		window   Window
		wantFrom time.Time
		wantTo   time.Time
	}{
		{
			name:     "day is midnight to midnight",
			window:   WindowDay,
			wantFrom: time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "week starts Monday",
			window:   WindowWeek,
			wantFrom: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "month starts on the first",
			window:   WindowMonth,
			wantFrom: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := ledger.WindowBounds(tt.window, now)
			if !from.Equal(tt.wantFrom) || !to.Equal(tt.wantTo) {
				t.Errorf("WindowBounds() = (%v, %v), want (%v, %v)", from, to, tt.wantFrom, tt.wantTo)
			}
		})
	}
}

func TestLedger_WeekBoundsOnSunday(t *testing.T) {
	ledger := NewLedger(&fakeCounter{}, time.UTC)

	// Sunday June 8th 2025 still belongs to the week starting Monday June 2nd.
	sunday := time.Date(2025, 6, 8, 10, 0, 0, 0, time.UTC)
	from, to := ledger.WindowBounds(WindowWeek, sunday)
	if !from.Equal(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("week start = %v, want Monday June 2nd", from)
	}
	if !to.Equal(time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("week end = %v, want Monday June 9th", to)
	}
}
