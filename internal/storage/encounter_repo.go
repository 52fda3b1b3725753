package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type EncounterRepo struct {
	db DBTX
}

func NewEncounterRepo(db DBTX) *EncounterRepo {
	return &EncounterRepo{db: db}
}

const encounterColumns = `id, boss_id, character_id, attacks_used, hits, damage_dealt, started_at, ended_at,
	outcome, coins_awarded, dropped_equipment_id`

func (r *EncounterRepo) Insert(ctx context.Context, bossID, characterID int64, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO boss_encounters (boss_id, character_id, started_at)
		VALUES (?, ?, ?)
	`, bossID, characterID, utc(now))
	if err != nil {
		return 0, fmt.Errorf("encounter insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("encounter last insert id: %w", err)
	}
	return id, nil
}

func (r *EncounterRepo) Get(ctx context.Context, id int64) (*BossEncounter, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+encounterColumns+` FROM boss_encounters WHERE id = ?`, id)
	return scanEncounter(row)
}

// Open returns the character's unfinished encounter, if any.
func (r *EncounterRepo) Open(ctx context.Context, characterID int64) (*BossEncounter, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+encounterColumns+`
		FROM boss_encounters
		WHERE character_id = ? AND ended_at IS NULL
		ORDER BY id DESC
		LIMIT 1
	`, characterID)
	return scanEncounter(row)
}

func (r *EncounterRepo) RecordAttack(ctx context.Context, id int64, hit bool, damage int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE boss_encounters
		SET attacks_used = attacks_used + 1, hits = hits + ?, damage_dealt = damage_dealt + ?
		WHERE id = ? AND ended_at IS NULL
	`, boolToInt(hit), damage, id)
	if err != nil {
		return fmt.Errorf("encounter record attack: %w", err)
	}
	return nil
}

func (r *EncounterRepo) Finish(ctx context.Context, e *BossEncounter) error {
	if e.EndedAt == nil {
		return fmt.Errorf("encounter finish: ended_at is required")
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE boss_encounters
		SET ended_at = ?, outcome = ?, coins_awarded = ?, dropped_equipment_id = ?
		WHERE id = ?
	`, utcPtr(e.EndedAt), e.Outcome, e.CoinsAwarded, e.DroppedEquipmentID, e.ID)
	if err != nil {
		return fmt.Errorf("encounter finish: %w", err)
	}
	return nil
}

func scanEncounter(row scanner) (*BossEncounter, error) {
	var (
		e       BossEncounter
		ended   sql.NullTime
		dropped sql.NullInt64
	)
	if err := row.Scan(
		&e.ID, &e.BossID, &e.CharacterID, &e.AttacksUsed, &e.Hits, &e.DamageDealt,
		&e.StartedAt, &ended, &e.Outcome, &e.CoinsAwarded, &dropped,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("encounter scan: %w", err)
	}
	e.EndedAt = nullTimePtr(ended)
	if dropped.Valid {
		v := dropped.Int64
		e.DroppedEquipmentID = &v
	}
	return &e, nil
}
