package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type CharacterRepo struct {
	db DBTX
}

func NewCharacterRepo(db DBTX) *CharacterRepo {
	return &CharacterRepo{db: db}
}

const characterColumns = `id, user_id, name, xp, level, power_points, coins, stage_started_at, created_at`

func (r *CharacterRepo) Insert(ctx context.Context, userID, name string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO characters (user_id, name, xp, level, power_points, coins, stage_started_at, created_at)
		VALUES (?, ?, 0, 1, 0, 0, ?, ?)
	`, userID, name, utc(now), utc(now))
	if err != nil {
		return 0, fmt.Errorf("character insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("character last insert id: %w", err)
	}
	return id, nil
}

func (r *CharacterRepo) Get(ctx context.Context, id int64) (*Character, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+characterColumns+` FROM characters WHERE id = ?`, id)
	return scanCharacter(row)
}

func (r *CharacterRepo) GetByUserID(ctx context.Context, userID string) (*Character, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+characterColumns+` FROM characters WHERE user_id = ?`, userID)
	return scanCharacter(row)
}

func (r *CharacterRepo) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM characters ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("character list ids: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("character list ids scan: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("character list ids rows: %w", err)
	}
	return out, nil
}

// UpdateProgress writes the XP-derived fields. Coins are left alone; they only
// move through AddCoins and DebitCoins.
func (r *CharacterRepo) UpdateProgress(ctx context.Context, c *Character) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE characters
		SET xp = ?, level = ?, power_points = ?, stage_started_at = ?
		WHERE id = ?
	`, c.XP, c.Level, c.PowerPoints, utc(c.StageStartedAt), c.ID)
	if err != nil {
		return fmt.Errorf("character update progress: %w", err)
	}
	return nil
}

// AddCoins credits amount coins in a single statement.
func (r *CharacterRepo) AddCoins(ctx context.Context, id int64, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("character add coins: negative amount %d", amount)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE characters SET coins = coins + ? WHERE id = ?`, amount, id)
	if err != nil {
		return fmt.Errorf("character add coins: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("character add coins rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("character add coins: character %d not found", id)
	}
	return nil
}

// DebitCoins removes amount coins only if the balance covers it. It reports
// false when the balance was insufficient.
func (r *CharacterRepo) DebitCoins(ctx context.Context, id int64, amount int64) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("character debit coins: negative amount %d", amount)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE characters SET coins = coins - ?
		WHERE id = ? AND coins >= ?
	`, amount, id, amount)
	if err != nil {
		return false, fmt.Errorf("character debit coins: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("character debit coins rows: %w", err)
	}
	return n == 1, nil
}

func scanCharacter(row scanner) (*Character, error) {
	var c Character
	if err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.XP, &c.Level, &c.PowerPoints, &c.Coins,
		&c.StageStartedAt, &c.CreatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("character scan: %w", err)
	}
	return &c, nil
}
