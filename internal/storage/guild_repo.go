package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type GuildRepo struct {
	db DBTX
}

func NewGuildRepo(db DBTX) *GuildRepo {
	return &GuildRepo{db: db}
}

func (r *GuildRepo) Insert(ctx context.Context, name string, leaderID int64, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO guilds (name, leader_character_id, active, mission_active, created_at)
		VALUES (?, ?, 1, 0, ?)
	`, name, leaderID, utc(now))
	if err != nil {
		return 0, fmt.Errorf("guild insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("guild last insert id: %w", err)
	}
	return id, nil
}

func (r *GuildRepo) Get(ctx context.Context, id int64) (*Guild, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, leader_character_id, active, mission_active, created_at
		FROM guilds WHERE id = ?
	`, id)
	var g Guild
	if err := row.Scan(&g.ID, &g.Name, &g.LeaderCharacterID, &g.Active, &g.MissionActive, &g.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("guild get: %w", err)
	}
	return &g, nil
}

func (r *GuildRepo) SetActive(ctx context.Context, id int64, active bool) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE guilds SET active = ? WHERE id = ?`, boolToInt(active), id); err != nil {
		return fmt.Errorf("guild set active: %w", err)
	}
	return nil
}

func (r *GuildRepo) SetMissionActive(ctx context.Context, id int64, active bool) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE guilds SET mission_active = ? WHERE id = ?`, boolToInt(active), id); err != nil {
		return fmt.Errorf("guild set mission active: %w", err)
	}
	return nil
}

func (r *GuildRepo) SetLeader(ctx context.Context, id, characterID int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE guilds SET leader_character_id = ? WHERE id = ?`, characterID, id); err != nil {
		return fmt.Errorf("guild set leader: %w", err)
	}
	return nil
}

func (r *GuildRepo) AddMember(ctx context.Context, guildID, characterID int64, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO guild_members (guild_id, character_id, joined_at) VALUES (?, ?, ?)
	`, guildID, characterID, utc(now))
	if err != nil {
		return fmt.Errorf("guild add member: %w", err)
	}
	return nil
}

func (r *GuildRepo) RemoveMember(ctx context.Context, guildID, characterID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM guild_members WHERE guild_id = ? AND character_id = ?`, guildID, characterID)
	if err != nil {
		return fmt.Errorf("guild remove member: %w", err)
	}
	return nil
}

// Membership returns the guild membership of a character. A character belongs
// to at most one guild.
func (r *GuildRepo) Membership(ctx context.Context, characterID int64) (*GuildMember, error) {
	row := r.db.QueryRowContext(ctx, `SELECT guild_id, character_id, joined_at FROM guild_members WHERE character_id = ?`, characterID)
	var m GuildMember
	if err := row.Scan(&m.GuildID, &m.CharacterID, &m.JoinedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("guild membership: %w", err)
	}
	return &m, nil
}

func (r *GuildRepo) Members(ctx context.Context, guildID int64) ([]GuildMember, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT guild_id, character_id, joined_at
		FROM guild_members
		WHERE guild_id = ?
		ORDER BY joined_at ASC, character_id ASC
	`, guildID)
	if err != nil {
		return nil, fmt.Errorf("guild members: %w", err)
	}
	defer rows.Close()

	var out []GuildMember
	for rows.Next() {
		var m GuildMember
		if err := rows.Scan(&m.GuildID, &m.CharacterID, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("guild members scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("guild members rows: %w", err)
	}
	return out, nil
}
