// Package engine implements the progression and encounter rules: task
// lifecycle with quotas, XP and levels, boss encounters, the equipment
// economy and guild special missions.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"questguild/internal/apperr"
	"questguild/internal/identity"
	"questguild/internal/notify"
	"questguild/internal/random"
	"questguild/internal/remote"
	"questguild/internal/storage"
	"questguild/internal/worker"
)

// Options wires a Service. Store and Identity are required; the rest have
// working defaults.
type Options struct {
	Store     *storage.Store
	Identity  identity.Provider
	Publisher remote.Publisher
	Notifier  notify.Notifier
	Dice      random.Dice
	Locks     *worker.KeyedMutex
	Location  *time.Location
	Now       func() time.Time
	Logger    *log.Logger
}

type Service struct {
	store     *storage.Store
	identity  identity.Provider
	publisher remote.Publisher
	notifier  notify.Notifier
	dice      random.Dice
	locks     *worker.KeyedMutex
	loc       *time.Location
	now       func() time.Time
	logger    *log.Logger
}

func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if opts.Identity == nil {
		return nil, fmt.Errorf("engine: identity provider is required")
	}
	s := &Service{
		store:     opts.Store,
		identity:  opts.Identity,
		publisher: opts.Publisher,
		notifier:  opts.Notifier,
		dice:      opts.Dice,
		locks:     opts.Locks,
		loc:       opts.Location,
		now:       opts.Now,
		logger:    opts.Logger,
	}
	if s.publisher == nil {
		s.publisher = remote.Nop{}
	}
	if s.notifier == nil {
		s.notifier = notify.Discard{}
	}
	if s.dice == nil {
		src, err := random.NewSeeded()
		if err != nil {
			return nil, err
		}
		s.dice = src
	}
	if s.locks == nil {
		s.locks = worker.NewKeyedMutex()
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	return s, nil
}

func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func characterKey(id int64) string { return fmt.Sprintf("character:%d", id) }
func guildKey(id int64) string     { return fmt.Sprintf("guild:%d", id) }

func (s *Service) lockCharacter(id int64) func() { return s.locks.Lock(characterKey(id)) }
func (s *Service) lockGuild(id int64) func()     { return s.locks.Lock(guildKey(id)) }

// Register creates the caller's character, or returns it if it already
// exists.
func (s *Service) Register(ctx context.Context, name string) (c *storage.Character, err error) {
	ctx, span := startSpan(ctx, "Register")
	defer func() { endSpan(span, err) }()

	userID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.Characters.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.Store("character get", err)
	}
	if existing != nil {
		return existing, nil
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = userID
	}
	now := s.clock()
	id, err := s.store.Characters.Insert(ctx, userID, name, now)
	if err != nil {
		// A concurrent registration may have won the unique user id.
		if again, getErr := s.store.Characters.GetByUserID(ctx, userID); getErr == nil && again != nil {
			return again, nil
		}
		return nil, apperr.Store("character insert", err)
	}
	c, err = s.store.Characters.Get(ctx, id)
	if err != nil {
		return nil, apperr.Store("character get", err)
	}
	s.publish(ctx, remote.NewRecord(remote.KindCharacterUpdated, c.ID, c.ID, c, now))
	return c, nil
}

// currentCharacter resolves the principal's character.
func (s *Service) currentCharacter(ctx context.Context) (*storage.Character, error) {
	userID, err := s.identity.CurrentUserID(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.store.Characters.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperr.Store("character get", err)
	}
	if c == nil {
		return nil, apperr.WithMetadata(apperr.CodeCharacterNotFound, "no character for the current user",
			map[string]string{"user_id": userID})
	}
	return c, nil
}

// loadCharacter re-reads a character inside a transaction.
func loadCharacter(ctx context.Context, r *storage.Repos, id int64) (*storage.Character, error) {
	c, err := r.Characters.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.Newf(apperr.CodeCharacterNotFound, "character %d not found", id)
	}
	return c, nil
}

func (s *Service) publish(ctx context.Context, rec remote.Record) {
	if err := s.publisher.Publish(ctx, rec); err != nil {
		s.logger.Printf("engine sync %s %d: %v", rec.Kind, rec.EntityID, err)
	}
}

func (s *Service) notify(ctx context.Context, ev notify.Event) {
	s.notifier.Notify(ctx, ev)
}

func (s *Service) dayKey(t time.Time) string {
	return t.In(s.loc).Format("2006-01-02")
}
