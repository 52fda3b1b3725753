package engine

import (
	"context"

	"questguild/internal/apperr"
	"questguild/internal/storage"
)

// StatusView is the caller's character sheet.
type StatusView struct {
	Character   *storage.Character
	Title       string
	Progress    float64 // percent into the current level
	NextLevelXP int64   // XP still needed for the next level
	Stats       *TaskStats
	Bonuses     Bonuses
	Guild       *storage.Guild
	Boss        *storage.Boss
}

func (s *Service) Status(ctx context.Context) (view *StatusView, err error) {
	ctx, span := startSpan(ctx, "Status")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	view = &StatusView{
		Character: c,
		Title:     Title(c.Level),
		Progress:  ProgressPercent(c.XP),
	}
	if c.Level < MaxLevel {
		view.NextLevelXP = CumulativeXP(c.Level+1) - c.XP
	}

	r := s.store.Repos
	if view.Stats, err = taskStats(ctx, r, c.ID); err != nil {
		return nil, err
	}
	if view.Bonuses, err = activeBonuses(ctx, r, c.ID); err != nil {
		return nil, apperr.Store("equipment bonuses", err)
	}
	if view.Boss, err = r.Bosses.LatestUndefeated(ctx, c.ID); err != nil {
		return nil, apperr.Store("boss get", err)
	}

	view.Guild, err = s.memberGuild(ctx, c.ID)
	if apperr.HasCode(err, apperr.CodeGuildNotMember) {
		view.Guild, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	return view, nil
}
