package engine

import "math"

const (
	// MaxLevel is the highest level whose cumulative XP still fits in an
	// int64. From level 44 on the cumulative table would saturate and
	// LevelForXP could no longer tell levels apart.
	MaxLevel = 43

	// BaseRequirement is the XP needed to leave level 1 and the HP of the
	// first boss.
	BaseRequirement = 200

	// FirstPowerGrant is the power-point reward for reaching level 2.
	FirstPowerGrant = 40

	// BaseBossReward is the coin reward for the first boss.
	BaseBossReward = 200.0

	// BossRewardGrowth multiplies the reward per boss already defeated.
	BossRewardGrowth = 1.2
)

var difficultyXP = map[Difficulty]int{
	DifficultyVeryEasy: 1,
	DifficultyEasy:     3,
	DifficultyHard:     7,
	DifficultyExtreme:  20,
}

var importanceXP = map[Importance]int{
	ImportanceNormal:        1,
	ImportanceImportant:     3,
	ImportanceVeryImportant: 10,
	ImportanceSpecial:       100,
}

// requirement[L] is the XP needed to advance from level L; cumulative[L] is
// the XP needed to reach level L; powerGrant[L] is the power-point reward for
// reaching level L. Index 0 is unused.
var requirement, cumulative, powerGrant = buildTables()

func buildTables() (req, cum, pp [MaxLevel + 1]int64) {
	req[1] = BaseRequirement
	for l := 2; l <= MaxLevel; l++ {
		req[l] = grow(req[l-1])
	}
	cum[1] = 0
	for l := 2; l <= MaxLevel; l++ {
		cum[l] = satAdd(cum[l-1], req[l-1])
	}
	pp[2] = FirstPowerGrant
	for l := 3; l <= MaxLevel; l++ {
		pp[l] = satAdd(pp[l-1], pp[l-1]/4*3+(pp[l-1]%4)*3/4)
	}
	return req, cum, pp
}

// grow applies v*2 + v/2 with saturation.
func grow(v int64) int64 {
	return satAdd(satAdd(v, v), v/2)
}

func satAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

// TaskXP is the XP a task is worth. It does not depend on the character's
// level.
func TaskXP(d Difficulty, i Importance) int {
	return difficultyXP[d] + importanceXP[i]
}

// RequiredXP returns the XP needed to advance from level to level+1.
func RequiredXP(level int) int64 {
	if level < 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return requirement[level]
}

// CumulativeXP returns the total XP needed to reach level.
func CumulativeXP(level int) int64 {
	if level <= 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return cumulative[level]
}

// LevelForXP returns the largest level whose cumulative requirement is met.
func LevelForXP(xp int64) int {
	if xp <= 0 {
		return 1
	}
	lo, hi := 1, MaxLevel
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if cumulative[mid] <= xp {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// ProgressPercent is how far xp is into its current level, in [0, 100].
func ProgressPercent(xp int64) float64 {
	level := LevelForXP(xp)
	req := RequiredXP(level)
	if req <= 0 {
		return 100
	}
	pct := float64(xp-CumulativeXP(level)) / float64(req) * 100
	return math.Max(0, math.Min(100, pct))
}

// PowerPointGrant is the power-point reward for reaching level.
func PowerPointGrant(level int) int64 {
	if level < 2 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return powerGrant[level]
}

// LevelUpReward sums the grants of every level in (from, to].
func LevelUpReward(from, to int) int64 {
	var total int64
	for l := from + 1; l <= to; l++ {
		total = satAdd(total, PowerPointGrant(l))
	}
	return total
}

// BossHP returns the max HP of the n-th boss. It follows the XP requirement
// recurrence: 200, 500, 1250, ...
func BossHP(n int) int64 {
	return RequiredXP(n)
}

// NextBossHP grows a boss's max HP by one step of the recurrence.
func NextBossHP(prev int64) int64 {
	return grow(prev)
}

// BossReward is the base coin reward after defeated bosses, before equipment
// bonuses.
func BossReward(defeated int) int64 {
	if defeated < 0 {
		defeated = 0
	}
	v := math.Floor(BaseBossReward * math.Pow(BossRewardGrowth, float64(defeated)))
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// WithBonus applies a percentage bonus to amount, rounding down.
func WithBonus(amount int64, bonusPercent float64) int64 {
	v := math.Floor(float64(amount) * (100 + bonusPercent) / 100)
	if v < 0 {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}

// Title names the rank of a level.
func Title(level int) string {
	switch {
	case level < 5:
		return "Beginner"
	case level < 10:
		return "Apprentice"
	case level < 15:
		return "Skilled"
	case level < 20:
		return "Advanced"
	case level < 25:
		return "Professional"
	case level < 30:
		return "Expert"
	case level < 40:
		return "Master"
	case level < 50:
		return "Champion"
	default:
		return "Grandmaster"
	}
}
