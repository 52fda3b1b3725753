package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type CompletionRepo struct {
	db DBTX
}

func NewCompletionRepo(db DBTX) *CompletionRepo {
	return &CompletionRepo{db: db}
}

func (r *CompletionRepo) Insert(ctx context.Context, tc TaskCompletion) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO task_completions (task_id, character_id, completed_at, difficulty, importance, quota_class, xp_awarded)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, tc.TaskID, tc.CharacterID, utc(tc.CompletedAt), tc.Difficulty, tc.Importance, tc.QuotaClass, tc.XPAwarded)
	if err != nil {
		return 0, fmt.Errorf("completion insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("completion last insert id: %w", err)
	}
	return id, nil
}

// CountInWindow counts the character's completions of one (difficulty,
// importance) pair in [from, to).
func (r *CompletionRepo) CountInWindow(ctx context.Context, characterID int64, difficulty, importance string, from, to time.Time) (int, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM task_completions
		WHERE character_id = ? AND difficulty = ? AND importance = ? AND completed_at >= ? AND completed_at < ?
	`, characterID, difficulty, importance, utc(from), utc(to))
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("completion count: %w", err)
	}
	return n, nil
}

// CountSince counts every completion the character made at or after since.
func (r *CompletionRepo) CountSince(ctx context.Context, characterID int64, since time.Time) (int, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM task_completions WHERE character_id = ? AND completed_at >= ?
	`, characterID, utc(since))
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("completion count since: %w", err)
	}
	return n, nil
}

func (r *CompletionRepo) GetByTask(ctx context.Context, taskID int64) (*TaskCompletion, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, task_id, character_id, completed_at, difficulty, importance, quota_class, xp_awarded
		FROM task_completions
		WHERE task_id = ?
	`, taskID)
	var tc TaskCompletion
	if err := row.Scan(&tc.ID, &tc.TaskID, &tc.CharacterID, &tc.CompletedAt, &tc.Difficulty, &tc.Importance, &tc.QuotaClass, &tc.XPAwarded); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("completion get: %w", err)
	}
	return &tc, nil
}
