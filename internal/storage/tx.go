package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repos can run inside or
// outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repos groups every repository bound to the same handle.
type Repos struct {
	Characters  *CharacterRepo
	Tasks       *TaskRepo
	Completions *CompletionRepo
	Bosses      *BossRepo
	Encounters  *EncounterRepo
	Equipment   *EquipmentRepo
	Guilds      *GuildRepo
	Missions    *MissionRepo
}

func NewRepos(db DBTX) *Repos {
	return &Repos{
		Characters:  NewCharacterRepo(db),
		Tasks:       NewTaskRepo(db),
		Completions: NewCompletionRepo(db),
		Bosses:      NewBossRepo(db),
		Encounters:  NewEncounterRepo(db),
		Equipment:   NewEquipmentRepo(db),
		Guilds:      NewGuildRepo(db),
		Missions:    NewMissionRepo(db),
	}
}

// Store owns the database handle and the non-transactional repos.
type Store struct {
	*Repos
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{Repos: NewRepos(db), db: db}
}

// Open opens the database at path and returns a ready Store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// InTx runs fn with repos bound to one transaction. fn must not touch the
// Store's own repos: the pool holds a single connection.
func (s *Store) InTx(ctx context.Context, fn func(r *Repos) error) error {
	return WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(NewRepos(tx))
	})
}

// WithTx runs fn inside a SQL transaction.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func utc(t time.Time) time.Time {
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time
	return &v
}

type scanner interface {
	Scan(dest ...any) error
}
