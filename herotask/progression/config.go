package progression

import "github.com/herotask/task-engine/herotask/database/models"

// Config holds the bases and multipliers behind every progression formula.
// Defaults reproduce the live balancing values; tests construct custom
// configs to probe edge cases.
type Config struct {
	// Base values at level 1 (level 0 for the XP threshold)
	BaseBossHP      int64
	BaseCoinsReward int64
	BasePowerPoints int64
	BaseLevelXP     int64

	// Per-task XP bases
	DifficultyXP map[models.Difficulty]int64
	ImportanceXP map[models.Importance]int64

	// Growth multipliers
	CoinsGrowth       float64
	PowerPointsGrowth float64
	TaskXPGrowth      float64

	// Level XP thresholds round up to this granularity at every step
	LevelXPRounding int64
}

func NewDefaultConfig() *Config {
	return &Config{
		BaseBossHP:      200,
		BaseCoinsReward: 200,
		BasePowerPoints: 40,
		BaseLevelXP:     200,
		DifficultyXP: map[models.Difficulty]int64{
			models.DifficultyVeryEasy: 1,
			models.DifficultyEasy:     3,
			models.DifficultyHard:     7,
			models.DifficultyExtreme:  20,
		},
		ImportanceXP: map[models.Importance]int64{
			models.ImportanceNormal:        1,
			models.ImportanceImportant:     3,
			models.ImportanceVeryImportant: 10,
			models.ImportanceSpecial:       100,
		},
		CoinsGrowth:       1.2,
		PowerPointsGrowth: 1.75,
		TaskXPGrowth:      1.5,
		LevelXPRounding:   100,
	}
}
