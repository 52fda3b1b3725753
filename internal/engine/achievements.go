package engine

import (
	"context"

	"questguild/internal/apperr"
)

// Achievement is a badge the character has or has not earned yet.
type Achievement struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Earned      bool
}

// achievementFacts are the counters badges are judged on.
type achievementFacts struct {
	level     int
	completed int
	defeated  int
	items     int
	inGuild   bool
}

func (f achievementFacts) badges() []Achievement {
	return []Achievement{
		// Levels
		milestone("getting_started", "Getting Started", "Reach level 2", "🌱", f.level >= 2),
		milestone("apprentice", "Apprentice", "Reach level 5", "🌿", f.level >= 5),
		milestone("skilled", "Skilled", "Reach level 10", "⭐", f.level >= 10),
		milestone("expert", "Expert", "Reach level 25", "🌟", f.level >= 25),

		// Tasks
		milestone("first_task", "First Quest", "Complete 1 task", "✓", f.completed >= 1),
		milestone("productive", "Productive", "Complete 10 tasks", "📋", f.completed >= 10),
		milestone("achiever", "Achiever", "Complete 50 tasks", "🏅", f.completed >= 50),
		milestone("powerhouse", "Powerhouse", "Complete 100 tasks", "🏆", f.completed >= 100),

		// Bosses
		milestone("first_blood", "First Blood", "Defeat a boss", "⚔", f.defeated >= 1),
		milestone("slayer", "Slayer", "Defeat 5 bosses", "🐉", f.defeated >= 5),

		// Economy and guilds
		milestone("outfitted", "Outfitted", "Own a piece of equipment", "🛡", f.items >= 1),
		milestone("fellowship", "Fellowship", "Join a guild", "🤝", f.inGuild),
	}
}

func milestone(id, name, desc, icon string, earned bool) Achievement {
	return Achievement{ID: id, Name: name, Description: desc, Icon: icon, Earned: earned}
}

// CountEarned returns how many of list are earned.
func CountEarned(list []Achievement) int {
	n := 0
	for _, a := range list {
		if a.Earned {
			n++
		}
	}
	return n
}

// Achievements returns every badge with the caller's earned status.
func (s *Service) Achievements(ctx context.Context) (list []Achievement, err error) {
	ctx, span := startSpan(ctx, "Achievements")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	f := achievementFacts{level: c.Level}
	if f.completed, _, err = s.store.Tasks.Stats(ctx, c.ID); err != nil {
		return nil, apperr.Store("task stats", err)
	}
	if f.defeated, err = s.store.Bosses.CountDefeated(ctx, c.ID); err != nil {
		return nil, apperr.Store("count defeated", err)
	}
	items, err := s.store.Equipment.ListByCharacter(ctx, c.ID, false)
	if err != nil {
		return nil, apperr.Store("list equipment", err)
	}
	f.items = len(items)
	m, err := s.store.Guilds.Membership(ctx, c.ID)
	if err != nil {
		return nil, apperr.Store("guild membership", err)
	}
	f.inGuild = m != nil
	return f.badges(), nil
}
