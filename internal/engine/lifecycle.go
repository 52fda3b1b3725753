package engine

import (
	"context"
	"strings"
	"time"

	"questguild/internal/apperr"
	"questguild/internal/remote"
	"questguild/internal/storage"
)

// EditTaskInput changes the non-nil fields of a task.
type EditTaskInput struct {
	ID          int64
	Name        *string
	Description *string
	Category    *string
	Difficulty  *Difficulty
	Importance  *Importance
	ScheduledAt *time.Time
}

// EditTask updates an active or paused task. The XP value is recomputed from
// the new rating.
func (s *Service) EditTask(ctx context.Context, in EditTaskInput) (task *storage.Task, err error) {
	ctx, span := startSpan(ctx, "EditTask")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.lockCharacter(c.ID)
	defer unlock()

	err = s.store.InTx(ctx, func(r *storage.Repos) error {
		t, err := ownedTask(ctx, r, in.ID, c.ID)
		if err != nil {
			return err
		}
		if st := TaskStatus(t.Status); st.IsTerminal() {
			return taskTerminal(t.ID, st)
		}

		edit := storage.TaskEdit{
			Name:        t.Name,
			Description: t.Description,
			Category:    t.Category,
			Difficulty:  t.Difficulty,
			Importance:  t.Importance,
			ScheduledAt: t.ScheduledAt,
		}
		if in.Name != nil {
			name, err := normalizeName(*in.Name)
			if err != nil {
				return err
			}
			edit.Name = name
		}
		if in.Description != nil {
			edit.Description = strings.TrimSpace(*in.Description)
		}
		if in.Category != nil {
			edit.Category = strings.TrimSpace(*in.Category)
		}
		if in.Difficulty != nil {
			edit.Difficulty = string(*in.Difficulty)
		}
		if in.Importance != nil {
			edit.Importance = string(*in.Importance)
		}
		if in.ScheduledAt != nil {
			if in.ScheduledAt.IsZero() {
				return apperr.New(apperr.CodeTaskInvalidInput, "scheduled time is required")
			}
			edit.ScheduledAt = *in.ScheduledAt
		}
		d, i := Difficulty(edit.Difficulty), Importance(edit.Importance)
		if err := validateRating(d, i); err != nil {
			return err
		}
		edit.XPValue = TaskXP(d, i)

		if err := r.Tasks.UpdateDetails(ctx, t.ID, edit); err != nil {
			return err
		}
		task, err = r.Tasks.Get(ctx, t.ID)
		return err
	})
	if err != nil {
		return nil, apperr.Store("edit task", err)
	}
	s.publish(ctx, remote.NewRecord(remote.KindTaskUpdated, task.ID, c.ID, task, s.clock()))
	return task, nil
}

// CancelTask moves an active task to cancelled.
func (s *Service) CancelTask(ctx context.Context, id int64) (*storage.Task, error) {
	return s.transition(ctx, "CancelTask", id, StatusActive, StatusCancelled, false)
}

// PauseTask suspends an active recurring task.
func (s *Service) PauseTask(ctx context.Context, id int64) (*storage.Task, error) {
	return s.transition(ctx, "PauseTask", id, StatusActive, StatusPaused, true)
}

// ResumeTask reactivates a paused recurring task.
func (s *Service) ResumeTask(ctx context.Context, id int64) (*storage.Task, error) {
	return s.transition(ctx, "ResumeTask", id, StatusPaused, StatusActive, true)
}

func (s *Service) transition(ctx context.Context, op string, id int64, from, to TaskStatus, recurringOnly bool) (task *storage.Task, err error) {
	ctx, span := startSpan(ctx, op)
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.lockCharacter(c.ID)
	defer unlock()

	err = s.store.InTx(ctx, func(r *storage.Repos) error {
		t, err := ownedTask(ctx, r, id, c.ID)
		if err != nil {
			return err
		}
		current := TaskStatus(t.Status)
		if current.IsTerminal() {
			return taskTerminal(t.ID, current)
		}
		if recurringOnly && !t.Recurring {
			return apperr.WithMetadata(apperr.CodeTaskNotRecurring, "only recurring tasks can be paused or resumed", idMeta("task_id", t.ID))
		}
		if current != from {
			return invalidTransition(t.ID, current, to)
		}
		if err := r.Tasks.UpdateStatus(ctx, t.ID, string(to), nil); err != nil {
			return err
		}
		t.Status = string(to)
		task = t
		return nil
	})
	if err != nil {
		return nil, apperr.Store(strings.ToLower(op), err)
	}
	s.publish(ctx, remote.NewRecord(remote.KindTaskUpdated, task.ID, c.ID, task, s.clock()))
	return task, nil
}

type DeleteResult struct {
	Deleted int64
}

// DeleteTask removes a task that was never completed. Deleting a recurring
// instance also removes its uncompleted future siblings.
func (s *Service) DeleteTask(ctx context.Context, id int64) (res *DeleteResult, err error) {
	ctx, span := startSpan(ctx, "DeleteTask")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.lockCharacter(c.ID)
	defer unlock()

	now := s.clock()
	res = &DeleteResult{}
	err = s.store.InTx(ctx, func(r *storage.Repos) error {
		t, err := ownedTask(ctx, r, id, c.ID)
		if err != nil {
			return err
		}
		if TaskStatus(t.Status) == StatusCompleted {
			return apperr.WithMetadata(apperr.CodeTaskTerminal, "completed tasks cannot be deleted", idMeta("task_id", t.ID))
		}
		if err := r.Tasks.Delete(ctx, t.ID); err != nil {
			return err
		}
		res.Deleted = 1
		if t.Recurring {
			n, err := r.Tasks.DeleteSeriesFrom(ctx, c.ID, t.SeriesRoot, now)
			if err != nil {
				return err
			}
			res.Deleted += n
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Store("delete task", err)
	}
	s.publish(ctx, remote.NewRecord(remote.KindTaskDeleted, id, c.ID, res, now))
	return res, nil
}
