package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type TaskRepo struct {
	db DBTX
}

func NewTaskRepo(db DBTX) *TaskRepo {
	return &TaskRepo{db: db}
}

type TaskInsert struct {
	CharacterID    int64
	Name           string
	SeriesRoot     string
	Description    string
	Category       string
	Difficulty     string
	Importance     string
	ScheduledAt    time.Time
	Recurring      bool
	RepeatInterval int
	RepeatUnit     string
	RepeatUntil    *time.Time
	Status         string
	XPValue        int
	CreatedAt      time.Time
}

// TaskEdit carries the mutable fields of a task.
type TaskEdit struct {
	Name        string
	Description string
	Category    string
	Difficulty  string
	Importance  string
	ScheduledAt time.Time
	XPValue     int
}

const taskColumns = `id, character_id, name, series_root, description, category, difficulty, importance,
	scheduled_at, recurring, repeat_interval, repeat_unit, repeat_until, status, xp_value,
	created_at, completed_at`

func (r *TaskRepo) Insert(ctx context.Context, in TaskInsert) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (
			character_id, name, series_root, description, category,
			difficulty, importance, scheduled_at,
			recurring, repeat_interval, repeat_unit, repeat_until,
			status, xp_value, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, in.CharacterID, in.Name, in.SeriesRoot, in.Description, in.Category,
		in.Difficulty, in.Importance, utc(in.ScheduledAt),
		boolToInt(in.Recurring), in.RepeatInterval, in.RepeatUnit, utcPtr(in.RepeatUntil),
		in.Status, in.XPValue, utc(in.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("task insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("task last insert id: %w", err)
	}
	return id, nil
}

func (r *TaskRepo) Get(ctx context.Context, id int64) (*Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	return scanTask(row)
}

// ListByCharacter returns the character's tasks ordered by schedule. An empty
// status list returns every task.
func (r *TaskRepo) ListByCharacter(ctx context.Context, characterID int64, statuses ...string) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE character_id = ?`
	args := []any{characterID}
	if len(statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(", ?", len(statuses)-1) + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	query += ` ORDER BY scheduled_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("task list: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("task list rows: %w", err)
	}
	return out, nil
}

func (r *TaskRepo) UpdateStatus(ctx context.Context, id int64, status string, completedAt *time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE tasks SET status = ?, completed_at = ? WHERE id = ?`, status, utcPtr(completedAt), id)
	if err != nil {
		return fmt.Errorf("task update status: %w", err)
	}
	return nil
}

func (r *TaskRepo) UpdateDetails(ctx context.Context, id int64, in TaskEdit) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET name = ?, description = ?, category = ?, difficulty = ?, importance = ?,
			scheduled_at = ?, xp_value = ?
		WHERE id = ?
	`, in.Name, in.Description, in.Category, in.Difficulty, in.Importance, utc(in.ScheduledAt), in.XPValue, id)
	if err != nil {
		return fmt.Errorf("task update details: %w", err)
	}
	return nil
}

func (r *TaskRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND status <> 'completed'`, id)
	if err != nil {
		return fmt.Errorf("task delete: %w", err)
	}
	return nil
}

// DeleteSeriesFrom removes every non-completed instance of a recurring series
// scheduled at or after from.
func (r *TaskRepo) DeleteSeriesFrom(ctx context.Context, characterID int64, seriesRoot string, from time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM tasks
		WHERE character_id = ? AND series_root = ? AND recurring = 1
			AND status <> 'completed' AND scheduled_at >= ?
	`, characterID, seriesRoot, utc(from))
	if err != nil {
		return 0, fmt.Errorf("task delete series: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("task delete series rows: %w", err)
	}
	return n, nil
}

// MarkOverdue flips active tasks scheduled before cutoff to incomplete. A
// zero characterID applies to every character.
func (r *TaskRepo) MarkOverdue(ctx context.Context, characterID int64, cutoff time.Time) (int64, error) {
	query := `UPDATE tasks SET status = 'incomplete' WHERE status = 'active' AND scheduled_at < ?`
	args := []any{utc(cutoff)}
	if characterID != 0 {
		query += ` AND character_id = ?`
		args = append(args, characterID)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("task mark overdue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("task mark overdue rows: %w", err)
	}
	return n, nil
}

// Stats counts completed tasks and tasks that count toward the success rate
// (everything except paused and cancelled).
func (r *TaskRepo) Stats(ctx context.Context, characterID int64) (completed, counted int, err error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status NOT IN ('paused', 'cancelled') THEN 1 ELSE 0 END), 0)
		FROM tasks
		WHERE character_id = ?
	`, characterID)
	if err := row.Scan(&completed, &counted); err != nil {
		return 0, 0, fmt.Errorf("task stats: %w", err)
	}
	return completed, counted, nil
}

// CountUnresolved counts tasks that are due but not done: active tasks
// scheduled at or before now, and tasks that went incomplete after since.
func (r *TaskRepo) CountUnresolved(ctx context.Context, characterID int64, since, now time.Time) (int, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM tasks
		WHERE character_id = ?
			AND (
				(status = 'active' AND scheduled_at <= ?)
				OR (status = 'incomplete' AND scheduled_at >= ?)
			)
	`, characterID, utc(now), utc(since))
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("task count unresolved: %w", err)
	}
	return n, nil
}

func scanTask(row scanner) (*Task, error) {
	var (
		t           Task
		repeatUntil sql.NullTime
		completedAt sql.NullTime
	)
	if err := row.Scan(
		&t.ID, &t.CharacterID, &t.Name, &t.SeriesRoot, &t.Description, &t.Category,
		&t.Difficulty, &t.Importance, &t.ScheduledAt, &t.Recurring, &t.RepeatInterval,
		&t.RepeatUnit, &repeatUntil, &t.Status, &t.XPValue, &t.CreatedAt, &completedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("task scan: %w", err)
	}
	t.RepeatUntil = nullTimePtr(repeatUntil)
	t.CompletedAt = nullTimePtr(completedAt)
	return &t, nil
}
