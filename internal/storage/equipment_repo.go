package storage

import (
	"context"
	"database/sql"
	"fmt"
)

type EquipmentRepo struct {
	db DBTX
}

func NewEquipmentRepo(db DBTX) *EquipmentRepo {
	return &EquipmentRepo{db: db}
}

const equipmentColumns = `id, character_id, item_code, category, bonus_type, bonus_value, durability, active, acquired_at`

func (r *EquipmentRepo) Insert(ctx context.Context, e Equipment) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO equipment (character_id, item_code, category, bonus_type, bonus_value, durability, active, acquired_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.CharacterID, e.ItemCode, e.Category, e.BonusType, e.BonusValue, e.Durability, boolToInt(e.Active), utc(e.AcquiredAt))
	if err != nil {
		return 0, fmt.Errorf("equipment insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("equipment last insert id: %w", err)
	}
	return id, nil
}

func (r *EquipmentRepo) Get(ctx context.Context, id int64) (*Equipment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE id = ?`, id)
	return scanEquipment(row)
}

func (r *EquipmentRepo) ListByCharacter(ctx context.Context, characterID int64, activeOnly bool) ([]Equipment, error) {
	query := `SELECT ` + equipmentColumns + ` FROM equipment WHERE character_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, characterID)
	if err != nil {
		return nil, fmt.Errorf("equipment list: %w", err)
	}
	defer rows.Close()

	var out []Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("equipment list rows: %w", err)
	}
	return out, nil
}

func (r *EquipmentRepo) SetActive(ctx context.Context, id int64, active bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE equipment SET active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("equipment set active: %w", err)
	}
	return nil
}

func (r *EquipmentRepo) AddBonus(ctx context.Context, id int64, delta float64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE equipment SET bonus_value = bonus_value + ? WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("equipment add bonus: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("equipment add bonus rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("equipment add bonus: item %d not found", id)
	}
	return nil
}

func (r *EquipmentRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM equipment WHERE id = ?`, id); err != nil {
		return fmt.Errorf("equipment delete: %w", err)
	}
	return nil
}

// WearActive spends one use of every active item with limited durability and
// deletes the items that ran out. Unlimited items (-1) are never touched.
func (r *EquipmentRepo) WearActive(ctx context.Context, characterID int64) (destroyed int64, err error) {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE equipment SET durability = durability - 1
		WHERE character_id = ? AND active = 1 AND durability > 0
	`, characterID); err != nil {
		return 0, fmt.Errorf("equipment wear: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM equipment WHERE character_id = ? AND durability = 0`, characterID)
	if err != nil {
		return 0, fmt.Errorf("equipment delete worn: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("equipment delete worn rows: %w", err)
	}
	return n, nil
}

func scanEquipment(row scanner) (*Equipment, error) {
	var e Equipment
	if err := row.Scan(&e.ID, &e.CharacterID, &e.ItemCode, &e.Category, &e.BonusType, &e.BonusValue, &e.Durability, &e.Active, &e.AcquiredAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("equipment scan: %w", err)
	}
	return &e, nil
}
