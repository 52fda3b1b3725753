package engine

import (
	"context"

	"questguild/internal/apperr"
	"questguild/internal/storage"
)

// SweepReport counts what one sweep changed.
type SweepReport struct {
	Overdue          int64
	MissionsExpired  int
	BonusesGranted   int
	MissionsComplete int
}

// Sweep runs the periodic housekeeping: overdue tasks become incomplete,
// expired missions close unsuccessfully, and members of running missions
// are checked for the no-unresolved bonus.
func (s *Service) Sweep(ctx context.Context) (rep *SweepReport, err error) {
	ctx, span := startSpan(ctx, "Sweep")
	defer func() { endSpan(span, err) }()

	now := s.clock()
	rep = &SweepReport{}
	rep.Overdue, err = s.store.Tasks.MarkOverdue(ctx, 0, now.Add(-CompletionWindow))
	if err != nil {
		return nil, apperr.Store("mark overdue", err)
	}

	missions, err := s.store.Missions.ListActive(ctx)
	if err != nil {
		return nil, apperr.Store("list missions", err)
	}
	for _, m := range missions {
		closed, err := s.expireMission(ctx, m)
		if err != nil {
			return nil, err
		}
		if closed {
			rep.MissionsExpired++
			continue
		}

		members, err := s.store.Guilds.Members(ctx, m.GuildID)
		if err != nil {
			return nil, apperr.Store("guild members", err)
		}
		for _, mem := range members {
			res, err := s.checkNoUnresolved(ctx, mem.CharacterID)
			if err != nil {
				s.logger.Printf("engine sweep bonus for character %d: %v", mem.CharacterID, err)
				continue
			}
			if res.Applied {
				rep.BonusesGranted++
			}
			if res.Completed {
				rep.MissionsComplete++
				break
			}
		}
	}
	return rep, nil
}

func (s *Service) expireMission(ctx context.Context, m storage.SpecialMission) (bool, error) {
	unlock := s.lockGuild(m.GuildID)
	defer unlock()

	now := s.clock()
	var closed bool
	err := s.store.InTx(ctx, func(r *storage.Repos) error {
		cur, err := r.Missions.Get(ctx, m.ID)
		if err != nil || cur == nil {
			return err
		}
		closed, err = finalizeExpired(ctx, r, cur, now)
		return err
	})
	if err != nil {
		return false, apperr.Store("expire mission", err)
	}
	return closed, nil
}
