package engine

import (
	"context"
	"strings"
	"time"

	"questguild/internal/apperr"
	"questguild/internal/notify"
	"questguild/internal/remote"
	"questguild/internal/storage"
)

// CompletionWindow is how long after its scheduled instant a task may still
// be completed. Older active tasks become incomplete.
const CompletionWindow = 72 * time.Hour

type CreateTaskInput struct {
	Name        string
	Description string
	Category    string
	Difficulty  Difficulty
	Importance  Importance
	ScheduledAt time.Time // zero means now
	Recurrence  *Recurrence
}

type CreateResult struct {
	TaskIDs []int64
	XPValue int
}

func normalizeName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return "", apperr.New(apperr.CodeTaskInvalidInput, "task name is required")
	}
	return n, nil
}

func validateRating(d Difficulty, i Importance) error {
	if !d.IsValid() {
		return apperr.Newf(apperr.CodeTaskInvalidInput, "invalid difficulty %q", d)
	}
	if !i.IsValid() {
		return apperr.Newf(apperr.CodeTaskInvalidInput, "invalid importance %q", i)
	}
	return nil
}

// CreateTask adds a task, or every instance of a recurring task.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (res *CreateResult, err error) {
	ctx, span := startSpan(ctx, "CreateTask")
	defer func() { endSpan(span, err) }()

	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, err
	}
	if err := validateRating(in.Difficulty, in.Importance); err != nil {
		return nil, err
	}
	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	start := in.ScheduledAt
	if start.IsZero() {
		start = now
	}
	schedule := []time.Time{start}
	var until *time.Time
	if in.Recurrence != nil {
		schedule, err = in.Recurrence.Occurrences(start.In(s.loc))
		if err != nil {
			return nil, err
		}
		u := in.Recurrence.Until
		until = &u
	}

	xp := TaskXP(in.Difficulty, in.Importance)
	base := storage.TaskInsert{
		CharacterID: c.ID,
		Name:        name,
		SeriesRoot:  name,
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Difficulty:  string(in.Difficulty),
		Importance:  string(in.Importance),
		Status:      string(StatusActive),
		XPValue:     xp,
		CreatedAt:   now,
	}
	if in.Recurrence != nil {
		base.Recurring = true
		base.RepeatInterval = in.Recurrence.Interval
		base.RepeatUnit = string(in.Recurrence.Unit)
		base.RepeatUntil = until
	}

	ids := make([]int64, 0, len(schedule))
	err = s.store.InTx(ctx, func(r *storage.Repos) error {
		for _, at := range schedule {
			row := base
			row.ScheduledAt = at
			id, err := r.Tasks.Insert(ctx, row)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Store("create task", err)
	}

	for _, id := range ids {
		s.publish(ctx, remote.NewRecord(remote.KindTaskCreated, id, c.ID, base, now))
	}
	return &CreateResult{TaskIDs: ids, XPValue: xp}, nil
}

// ListTasks returns the caller's tasks, optionally filtered by status.
// Overdue tasks are flipped to incomplete first.
func (s *Service) ListTasks(ctx context.Context, statuses ...TaskStatus) (tasks []storage.Task, err error) {
	ctx, span := startSpan(ctx, "ListTasks")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Tasks.MarkOverdue(ctx, c.ID, s.clock().Add(-CompletionWindow)); err != nil {
		return nil, apperr.Store("mark overdue", err)
	}

	filter := make([]string, 0, len(statuses))
	for _, st := range statuses {
		if !st.IsValid() {
			return nil, apperr.Newf(apperr.CodeTaskInvalidInput, "invalid status %q", st)
		}
		filter = append(filter, string(st))
	}
	tasks, err = s.store.Tasks.ListByCharacter(ctx, c.ID, filter...)
	if err != nil {
		return nil, apperr.Store("list tasks", err)
	}
	return tasks, nil
}

// TaskStats summarizes the success rate used as the boss hit chance.
type TaskStats struct {
	Completed   int
	Counted     int
	SuccessRate int // percent, rounded down
}

func (s *Service) Stats(ctx context.Context) (st *TaskStats, err error) {
	ctx, span := startSpan(ctx, "Stats")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	return taskStats(ctx, s.store.Repos, c.ID)
}

func taskStats(ctx context.Context, r *storage.Repos, characterID int64) (*TaskStats, error) {
	completed, counted, err := r.Tasks.Stats(ctx, characterID)
	if err != nil {
		return nil, apperr.Store("task stats", err)
	}
	st := &TaskStats{Completed: completed, Counted: counted}
	if counted > 0 {
		st.SuccessRate = completed * 100 / counted
	}
	return st, nil
}

// ownedTask loads a task and checks it belongs to characterID.
func ownedTask(ctx context.Context, r *storage.Repos, id, characterID int64) (*storage.Task, error) {
	t, err := r.Tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, taskNotFound(id)
	}
	if t.CharacterID != characterID {
		return nil, taskNotOwned(id)
	}
	return t, nil
}

func (s *Service) taskEvent(ctx context.Context, typ string, c *storage.Character, data any) {
	s.notify(ctx, notify.NewEvent(typ, 0, c.ID, data, s.clock()))
}
