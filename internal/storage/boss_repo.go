package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type BossRepo struct {
	db DBTX
}

func NewBossRepo(db DBTX) *BossRepo {
	return &BossRepo{db: db}
}

const bossColumns = `id, character_id, level, max_hp, current_hp, defeated, last_encounter_at, created_at`

func (r *BossRepo) Insert(ctx context.Context, characterID int64, level int, maxHP int64, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO bosses (character_id, level, max_hp, current_hp, defeated, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`, characterID, level, maxHP, maxHP, utc(now))
	if err != nil {
		return 0, fmt.Errorf("boss insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("boss last insert id: %w", err)
	}
	return id, nil
}

func (r *BossRepo) Get(ctx context.Context, id int64) (*Boss, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bossColumns+` FROM bosses WHERE id = ?`, id)
	return scanBoss(row)
}

func (r *BossRepo) GetByLevel(ctx context.Context, characterID int64, level int) (*Boss, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bossColumns+` FROM bosses WHERE character_id = ? AND level = ?`, characterID, level)
	return scanBoss(row)
}

// LatestUndefeated returns the highest-level boss still standing.
func (r *BossRepo) LatestUndefeated(ctx context.Context, characterID int64) (*Boss, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+bossColumns+`
		FROM bosses
		WHERE character_id = ? AND defeated = 0
		ORDER BY level DESC
		LIMIT 1
	`, characterID)
	return scanBoss(row)
}

func (r *BossRepo) CountDefeated(ctx context.Context, characterID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bosses WHERE character_id = ? AND defeated = 1`, characterID).Scan(&n); err != nil {
		return 0, fmt.Errorf("boss count defeated: %w", err)
	}
	return n, nil
}

// ApplyDamage lowers current HP, flooring at zero, and sets the defeated flag
// when it reaches zero. Defeated bosses are left untouched.
func (r *BossRepo) ApplyDamage(ctx context.Context, id int64, damage int64) error {
	if damage < 0 {
		return fmt.Errorf("boss apply damage: negative damage %d", damage)
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE bosses
		SET current_hp = MAX(current_hp - ?, 0),
			defeated = CASE WHEN current_hp - ? <= 0 THEN 1 ELSE 0 END
		WHERE id = ? AND defeated = 0
	`, damage, damage, id)
	if err != nil {
		return fmt.Errorf("boss apply damage: %w", err)
	}
	return nil
}

func (r *BossRepo) TouchEncounter(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE bosses SET last_encounter_at = ? WHERE id = ?`, utc(at), id)
	if err != nil {
		return fmt.Errorf("boss touch encounter: %w", err)
	}
	return nil
}

func scanBoss(row scanner) (*Boss, error) {
	var (
		b    Boss
		last sql.NullTime
	)
	if err := row.Scan(&b.ID, &b.CharacterID, &b.Level, &b.MaxHP, &b.CurrentHP, &b.Defeated, &last, &b.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("boss scan: %w", err)
	}
	b.LastEncounterAt = nullTimePtr(last)
	return &b, nil
}
