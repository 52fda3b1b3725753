package engine

import (
	"context"
	"time"

	"questguild/internal/apperr"
	"questguild/internal/notify"
	"questguild/internal/remote"
	"questguild/internal/storage"
)

type CompleteResult struct {
	TaskID      int64
	XPAwarded   int
	XPTotal     int64
	LevelBefore int
	LevelAfter  int
	LevelUp     bool
	Title       string
	PowerGained int64
	QuotaClass  QuotaClass
	QuotaUsed   int
	QuotaLimit  int
	Boss        *storage.Boss // set when a boss is waiting after a level-up
}

// CompleteTask commits a completion. Preconditions are checked in order:
// ownership, status, not in the future, within the completion window, quota.
func (s *Service) CompleteTask(ctx context.Context, id int64) (res *CompleteResult, err error) {
	ctx, span := startSpan(ctx, "CompleteTask")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.lockCharacter(c.ID)
	defer unlock()

	now := s.clock()
	var (
		task    *storage.Task
		expired bool
	)
	err = s.store.InTx(ctx, func(r *storage.Repos) error {
		t, err := ownedTask(ctx, r, id, c.ID)
		if err != nil {
			return err
		}
		task = t
		if st := TaskStatus(t.Status); st != StatusActive {
			return invalidTransition(t.ID, st, StatusCompleted)
		}
		if t.ScheduledAt.After(now) {
			return apperr.WithMetadata(apperr.CodeTaskFutureCompletion, "task is scheduled in the future",
				map[string]string{"scheduled_at": t.ScheduledAt.Format(time.RFC3339)})
		}
		if now.Sub(t.ScheduledAt) > CompletionWindow {
			expired = true
			return apperr.WithMetadata(apperr.CodeTaskOutsideWindow, "task is past its completion window",
				map[string]string{"scheduled_at": t.ScheduledAt.Format(time.RFC3339), "window": CompletionWindow.String()})
		}

		d, i := Difficulty(t.Difficulty), Importance(t.Importance)
		class := QuotaClassFor(d, i)
		from, to := class.Window(now, s.loc)
		used, err := r.Completions.CountInWindow(ctx, c.ID, string(d), string(i), from, to)
		if err != nil {
			return err
		}
		if used >= class.Limit() {
			return quotaExhausted(class, used)
		}

		completedAt := now
		if err := r.Tasks.UpdateStatus(ctx, t.ID, string(StatusCompleted), &completedAt); err != nil {
			return err
		}
		if _, err := r.Completions.Insert(ctx, storage.TaskCompletion{
			TaskID:      t.ID,
			CharacterID: c.ID,
			CompletedAt: now,
			Difficulty:  t.Difficulty,
			Importance:  t.Importance,
			QuotaClass:  string(class),
			XPAwarded:   t.XPValue,
		}); err != nil {
			return err
		}

		char, err := loadCharacter(ctx, r, c.ID)
		if err != nil {
			return err
		}
		prog, err := s.awardXP(ctx, r, char, int64(t.XPValue), now)
		if err != nil {
			return err
		}
		res = &CompleteResult{
			TaskID:      t.ID,
			XPAwarded:   t.XPValue,
			XPTotal:     char.XP,
			LevelBefore: prog.LevelBefore,
			LevelAfter:  prog.LevelAfter,
			LevelUp:     prog.LevelAfter > prog.LevelBefore,
			Title:       Title(prog.LevelAfter),
			PowerGained: prog.PowerGained,
			QuotaClass:  class,
			QuotaUsed:   used + 1,
			QuotaLimit:  class.Limit(),
			Boss:        prog.Boss,
		}
		return nil
	})
	if expired {
		// The transaction rolled back; record the overdue transition on its own.
		if markErr := s.store.Tasks.UpdateStatus(ctx, task.ID, string(StatusIncomplete), nil); markErr != nil {
			s.logger.Printf("engine mark incomplete %d: %v", task.ID, markErr)
		}
	}
	if err != nil {
		return nil, apperr.Store("complete task", err)
	}

	s.publish(ctx, remote.NewRecord(remote.KindTaskCompleted, task.ID, c.ID, res, now))
	s.taskEvent(ctx, notify.TypeTaskCompleted, c, res)
	if res.LevelUp {
		s.taskEvent(ctx, notify.TypeLevelUp, c, map[string]any{"level": res.LevelAfter, "title": res.Title})
		if res.Boss != nil {
			s.taskEvent(ctx, notify.TypeBossAvailable, c, res.Boss)
		}
	}

	kind := ContributionOtherTask
	if IsEasyTask(Difficulty(task.Difficulty), Importance(task.Importance)) {
		kind = ContributionEasyTask
	}
	s.contributeAfterCommit(ctx, c.ID, kind)
	return res, nil
}
