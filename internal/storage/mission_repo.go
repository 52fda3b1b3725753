package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ProgressCounter names one of the per-member contribution counters.
type ProgressCounter string

const (
	CounterShopPurchases     ProgressCounter = "shop_purchases"
	CounterBossHits          ProgressCounter = "boss_hits"
	CounterEasyTasks         ProgressCounter = "easy_tasks"
	CounterOtherTasks        ProgressCounter = "other_tasks"
	CounterChatDays          ProgressCounter = "chat_days"
	CounterNoUnresolvedBonus ProgressCounter = "no_unresolved_bonus"
)

func (c ProgressCounter) valid() bool {
	switch c {
	case CounterShopPurchases, CounterBossHits, CounterEasyTasks, CounterOtherTasks, CounterChatDays, CounterNoUnresolvedBonus:
		return true
	default:
		return false
	}
}

type MissionRepo struct {
	db DBTX
}

func NewMissionRepo(db DBTX) *MissionRepo {
	return &MissionRepo{db: db}
}

const missionColumns = `id, guild_id, started_at, ends_at, max_hp, current_hp, status, successful, completed_at`

func (r *MissionRepo) Insert(ctx context.Context, guildID int64, startedAt, endsAt time.Time, hp int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO special_missions (guild_id, started_at, ends_at, max_hp, current_hp, status, successful)
		VALUES (?, ?, ?, ?, ?, 'active', 0)
	`, guildID, utc(startedAt), utc(endsAt), hp, hp)
	if err != nil {
		return 0, fmt.Errorf("mission insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("mission last insert id: %w", err)
	}
	return id, nil
}

func (r *MissionRepo) Get(ctx context.Context, id int64) (*SpecialMission, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+missionColumns+` FROM special_missions WHERE id = ?`, id)
	return scanMission(row)
}

func (r *MissionRepo) Active(ctx context.Context, guildID int64) (*SpecialMission, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+missionColumns+` FROM special_missions
		WHERE guild_id = ? AND status = 'active'
	`, guildID)
	return scanMission(row)
}

// Latest returns the most recently started mission of the guild.
func (r *MissionRepo) Latest(ctx context.Context, guildID int64) (*SpecialMission, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+missionColumns+` FROM special_missions
		WHERE guild_id = ?
		ORDER BY started_at DESC, id DESC
		LIMIT 1
	`, guildID)
	return scanMission(row)
}

func (r *MissionRepo) ListActive(ctx context.Context) ([]SpecialMission, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+missionColumns+` FROM special_missions WHERE status = 'active' ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("mission list active: %w", err)
	}
	defer rows.Close()

	var out []SpecialMission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mission list active rows: %w", err)
	}
	return out, nil
}

// ApplyDamage lowers the shared pool of an active mission, flooring at zero.
// It reports false when the mission is no longer active or already at zero.
func (r *MissionRepo) ApplyDamage(ctx context.Context, id int64, damage int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE special_missions
		SET current_hp = MAX(current_hp - ?, 0)
		WHERE id = ? AND status = 'active' AND current_hp > 0
	`, damage, id)
	if err != nil {
		return false, fmt.Errorf("mission apply damage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mission apply damage rows: %w", err)
	}
	return n == 1, nil
}

// Finish closes an active mission. It reports false if the mission was
// already closed.
func (r *MissionRepo) Finish(ctx context.Context, id int64, successful bool, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE special_missions
		SET status = 'completed', successful = ?, completed_at = ?
		WHERE id = ? AND status = 'active'
	`, boolToInt(successful), utc(at), id)
	if err != nil {
		return false, fmt.Errorf("mission finish: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mission finish rows: %w", err)
	}
	return n == 1, nil
}

func (r *MissionRepo) SeedProgress(ctx context.Context, missionID, characterID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO mission_progress (mission_id, character_id) VALUES (?, ?)
	`, missionID, characterID)
	if err != nil {
		return fmt.Errorf("mission seed progress: %w", err)
	}
	return nil
}

const progressColumns = `mission_id, character_id, shop_purchases, boss_hits, easy_tasks, other_tasks,
	chat_days, last_chat_day, no_unresolved_bonus, damage_dealt`

func (r *MissionRepo) Progress(ctx context.Context, missionID, characterID int64) (*MissionProgress, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+progressColumns+` FROM mission_progress
		WHERE mission_id = ? AND character_id = ?
	`, missionID, characterID)
	return scanProgress(row)
}

func (r *MissionRepo) ListProgress(ctx context.Context, missionID int64) ([]MissionProgress, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+progressColumns+` FROM mission_progress
		WHERE mission_id = ?
		ORDER BY damage_dealt DESC, character_id ASC
	`, missionID)
	if err != nil {
		return nil, fmt.Errorf("mission list progress: %w", err)
	}
	defer rows.Close()

	var out []MissionProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mission list progress rows: %w", err)
	}
	return out, nil
}

// IncrementCounter bumps one counter of a member's progress row if it is
// below limit, and adds damage to the member's total. A non-empty day also
// requires the row's last chat day to differ and records it. It reports false
// when the cap (or the one-per-day rule) blocked the increment.
func (r *MissionRepo) IncrementCounter(ctx context.Context, missionID, characterID int64, counter ProgressCounter, limit int, damage int64, day string) (bool, error) {
	if !counter.valid() {
		return false, fmt.Errorf("mission increment: unknown counter %q", counter)
	}
	col := string(counter)
	query := `UPDATE mission_progress SET ` + col + ` = ` + col + ` + 1, damage_dealt = damage_dealt + ?`
	args := []any{damage}
	if day != "" {
		query += `, last_chat_day = ?`
		args = append(args, day)
	}
	query += ` WHERE mission_id = ? AND character_id = ? AND ` + col + ` < ?`
	args = append(args, missionID, characterID, limit)
	if day != "" {
		query += ` AND last_chat_day <> ?`
		args = append(args, day)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("mission increment %s: %w", col, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mission increment %s rows: %w", col, err)
	}
	return n == 1, nil
}

func scanMission(row scanner) (*SpecialMission, error) {
	var (
		m         SpecialMission
		completed sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.GuildID, &m.StartedAt, &m.EndsAt, &m.MaxHP, &m.CurrentHP, &m.Status, &m.Successful, &completed); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("mission scan: %w", err)
	}
	m.CompletedAt = nullTimePtr(completed)
	return &m, nil
}

func scanProgress(row scanner) (*MissionProgress, error) {
	var p MissionProgress
	if err := row.Scan(
		&p.MissionID, &p.CharacterID, &p.ShopPurchases, &p.BossHits, &p.EasyTasks, &p.OtherTasks,
		&p.ChatDays, &p.LastChatDay, &p.NoUnresolvedBonus, &p.DamageDealt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("mission progress scan: %w", err)
	}
	return &p, nil
}
