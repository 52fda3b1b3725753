package engine

import (
	"context"
	"time"

	"questguild/internal/storage"
)

type progress struct {
	LevelBefore int
	LevelAfter  int
	PowerGained int64
	Boss        *storage.Boss
}

// awardXP adds xp to c, applies every level-up it causes and makes sure a
// boss is waiting for the new level. c is updated in place.
func (s *Service) awardXP(ctx context.Context, r *storage.Repos, c *storage.Character, xp int64, now time.Time) (*progress, error) {
	p := &progress{LevelBefore: c.Level}
	c.XP = satAdd(c.XP, xp)
	level := LevelForXP(c.XP)
	if level < c.Level {
		level = c.Level
	}
	p.LevelAfter = level

	if level > c.Level {
		p.PowerGained = LevelUpReward(c.Level, level)
		c.PowerPoints = satAdd(c.PowerPoints, p.PowerGained)
		c.Level = level
		c.StageStartedAt = now
	}
	if err := r.Characters.UpdateProgress(ctx, c); err != nil {
		return nil, err
	}

	if p.LevelAfter > p.LevelBefore {
		boss, err := ensureBoss(ctx, r, c, now)
		if err != nil {
			return nil, err
		}
		p.Boss = boss
	}
	return p, nil
}

// ensureBoss returns the boss the character should face now. An undefeated
// boss from an earlier level is reused; otherwise a boss for the current
// level is created unless it was already beaten. Level 1 has no boss.
func ensureBoss(ctx context.Context, r *storage.Repos, c *storage.Character, now time.Time) (*storage.Boss, error) {
	if c.Level < 2 {
		return nil, nil
	}
	open, err := r.Bosses.LatestUndefeated(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return open, nil
	}
	current, err := r.Bosses.GetByLevel(ctx, c.ID, c.Level)
	if err != nil {
		return nil, err
	}
	if current != nil {
		// Already defeated at this level.
		return nil, nil
	}

	hp := BossHP(c.Level - 1)
	prev, err := r.Bosses.GetByLevel(ctx, c.ID, c.Level-1)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		hp = NextBossHP(prev.MaxHP)
	}
	id, err := r.Bosses.Insert(ctx, c.ID, c.Level, hp, now)
	if err != nil {
		return nil, err
	}
	return r.Bosses.Get(ctx, id)
}
