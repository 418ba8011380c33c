package progression

import (
	"math"

	"github.com/herotask/task-engine/herotask/database/models"
)

// Calculator computes every progression value: XP thresholds, boss HP, coin
// rewards, power points and per-task XP. All methods are deterministic,
// integer-valued and side-effect-free.
//
// The recursive formulas are computed iteratively on purpose: integer
// truncation compounds at every step, so a closed form would drift from the
// live values.
type Calculator struct {
	config *Config
}

func NewCalculator(config *Config) *Calculator {
	return &Calculator{config: config}
}

// BossHP returns the personal boss HP for a level. Level 1 is the base;
// each further level is prev*2 + prev/2 with integer division.
func (c *Calculator) BossHP(level int) int64 {
	if level < 1 {
		return 0
	}
	hp := c.config.BaseBossHP
	for n := 2; n <= level; n++ {
		hp = hp*2 + hp/2
	}
	return hp
}

// CoinsReward returns the coin reward for defeating a boss of the given
// level: base at level 1, floor(prev*1.2) per further level.
func (c *Calculator) CoinsReward(level int) int64 {
	if level < 1 {
		return 0
	}
	coins := c.config.BaseCoinsReward
	for n := 2; n <= level; n++ {
		coins = int64(math.Floor(float64(coins) * c.config.CoinsGrowth))
	}
	return coins
}

// PPForLevel returns the power points granted when reaching a level:
// base at level 1, floor(prev*1.75) per further level, 0 for level <= 0.
func (c *Calculator) PPForLevel(level int) int64 {
	if level <= 0 {
		return 0
	}
	pp := c.config.BasePowerPoints
	for n := 2; n <= level; n++ {
		pp = int64(math.Floor(float64(pp) * c.config.PowerPointsGrowth))
	}
	return pp
}

// XPForNextLevel returns the XP required to advance past the given level.
// Level 0 is the base; every further step applies xp*2 + xp/2 and rounds
// the result up to the nearest rounding unit. The rounding happens at every
// step, not once at the end.
func (c *Calculator) XPForNextLevel(level int) int64 {
	xp := c.config.BaseLevelXP
	if level <= 0 {
		return xp
	}
	unit := c.config.LevelXPRounding
	for n := 0; n < level; n++ {
		raw := xp*2 + xp/2
		xp = (raw + unit - 1) / unit * unit
	}
	return xp
}

// TaskXP returns the XP earned for completing a task of the given difficulty
// and importance at the given user level. Each base compounds by the growth
// factor once per level and is floored after compounding, then the two parts
// are summed.
func (c *Calculator) TaskXP(difficulty models.Difficulty, importance models.Importance, level int) int64 {
	if level < 0 {
		level = 0
	}
	growth := math.Pow(c.config.TaskXPGrowth, float64(level))
	d := int64(math.Floor(float64(c.config.DifficultyXP[difficulty]) * growth))
	i := int64(math.Floor(float64(c.config.ImportanceXP[importance]) * growth))
	return d + i
}

// MissionCoinsReward returns the per-member coin reward paid out when a
// special mission finishes: floor(200 * 1.2^level) / 2.
func (c *Calculator) MissionCoinsReward(level int) int64 {
	if level < 0 {
		level = 0
	}
	full := int64(math.Floor(float64(c.config.BaseCoinsReward) * math.Pow(c.config.CoinsGrowth, float64(level))))
	return full / 2
}

// LevelUps applies pending XP to a level/XP pair and returns the resulting
// level, leftover XP and the power points gained across all level-ups.
func (c *Calculator) LevelUps(level int, xp int64) (newLevel int, rest int64, ppGained int64) {
	newLevel, rest = level, xp
	for {
		need := c.XPForNextLevel(newLevel)
		if rest < need {
			return newLevel, rest, ppGained
		}
		rest -= need
		newLevel++
		ppGained += c.PPForLevel(newLevel)
	}
}
