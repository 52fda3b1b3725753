package engine

import (
	"context"
	"strings"
	"time"

	"questguild/internal/apperr"
	"questguild/internal/notify"
	"questguild/internal/remote"
	"questguild/internal/storage"
)

type MemberView struct {
	CharacterID int64
	Name        string
	Level       int
	Title       string
	Leader      bool
	JoinedAt    time.Time
}

func guildNotFound(id int64) error {
	return apperr.WithMetadata(apperr.CodeGuildNotFound, "guild not found", idMeta("guild_id", id))
}

// memberGuild returns the guild characterID belongs to.
func (s *Service) memberGuild(ctx context.Context, characterID int64) (*storage.Guild, error) {
	m, err := s.store.Guilds.Membership(ctx, characterID)
	if err != nil {
		return nil, apperr.Store("guild membership", err)
	}
	if m == nil {
		return nil, apperr.WithMetadata(apperr.CodeGuildNotMember, "not a member of any guild", idMeta("character_id", characterID))
	}
	g, err := s.store.Guilds.Get(ctx, m.GuildID)
	if err != nil {
		return nil, apperr.Store("guild get", err)
	}
	if g == nil {
		return nil, guildNotFound(m.GuildID)
	}
	return g, nil
}

// CreateGuild founds a guild led by the caller.
func (s *Service) CreateGuild(ctx context.Context, name string) (g *storage.Guild, err error) {
	ctx, span := startSpan(ctx, "CreateGuild")
	defer func() { endSpan(span, err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.CodeGuildInvalidInput, "guild name is required")
	}
	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.lockCharacter(c.ID)
	defer unlock()

	now := s.clock()
	err = s.store.InTx(ctx, func(r *storage.Repos) error {
		if err := notInGuild(ctx, r, c.ID); err != nil {
			return err
		}
		id, err := r.Guilds.Insert(ctx, name, c.ID, now)
		if err != nil {
			return err
		}
		if err := r.Guilds.AddMember(ctx, id, c.ID, now); err != nil {
			return err
		}
		g, err = r.Guilds.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, apperr.Store("create guild", err)
	}
	s.publish(ctx, remote.NewRecord(remote.KindGuildUpdated, g.ID, c.ID, g, now))
	return g, nil
}

func notInGuild(ctx context.Context, r *storage.Repos, characterID int64) error {
	m, err := r.Guilds.Membership(ctx, characterID)
	if err != nil {
		return err
	}
	if m != nil {
		return apperr.WithMetadata(apperr.CodeGuildAlreadyMember, "already a member of a guild", idMeta("guild_id", m.GuildID))
	}
	return nil
}

// JoinGuild adds the caller to an active guild. Joining while a mission runs
// gives the newcomer a progress row.
func (s *Service) JoinGuild(ctx context.Context, guildID int64) (g *storage.Guild, err error) {
	ctx, span := startSpan(ctx, "JoinGuild")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	unlockChar := s.lockCharacter(c.ID)
	defer unlockChar()
	unlockGuild := s.lockGuild(guildID)
	defer unlockGuild()

	now := s.clock()
	err = s.store.InTx(ctx, func(r *storage.Repos) error {
		if err := notInGuild(ctx, r, c.ID); err != nil {
			return err
		}
		g, err = r.Guilds.Get(ctx, guildID)
		if err != nil {
			return err
		}
		if g == nil {
			return guildNotFound(guildID)
		}
		if !g.Active {
			return apperr.WithMetadata(apperr.CodeGuildInactive, "guild is inactive", idMeta("guild_id", guildID))
		}
		if err := r.Guilds.AddMember(ctx, g.ID, c.ID, now); err != nil {
			return err
		}
		m, err := r.Missions.Active(ctx, g.ID)
		if err != nil || m == nil {
			return err
		}
		return r.Missions.SeedProgress(ctx, m.ID, c.ID)
	})
	if err != nil {
		return nil, apperr.Store("join guild", err)
	}
	s.publish(ctx, remote.NewRecord(remote.KindGuildUpdated, g.ID, c.ID, g, now))
	s.notify(ctx, notify.NewEvent(notify.TypeGuildJoined, g.ID, c.ID, map[string]string{"name": c.Name}, now))
	return g, nil
}

// InviteToGuild sends a guild invite to another character. Membership still
// goes through JoinGuild.
func (s *Service) InviteToGuild(ctx context.Context, characterID int64) (err error) {
	ctx, span := startSpan(ctx, "InviteToGuild")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return err
	}
	g, err := s.memberGuild(ctx, c.ID)
	if err != nil {
		return err
	}
	if !g.Active {
		return apperr.WithMetadata(apperr.CodeGuildInactive, "guild is inactive", idMeta("guild_id", g.ID))
	}
	target, err := s.store.Characters.Get(ctx, characterID)
	if err != nil {
		return apperr.Store("character get", err)
	}
	if target == nil {
		return apperr.Newf(apperr.CodeCharacterNotFound, "character %d not found", characterID)
	}
	s.notify(ctx, notify.NewEvent(notify.TypeGuildInvite, g.ID, target.ID, map[string]any{
		"guild_id":   g.ID,
		"guild_name": g.Name,
		"from":       c.Name,
	}, s.clock()))
	return nil
}

// LeaveGuild removes the caller from their guild. Leadership passes to the
// longest-standing member; the last member out deactivates the guild and
// closes its mission unsuccessfully.
func (s *Service) LeaveGuild(ctx context.Context) (err error) {
	ctx, span := startSpan(ctx, "LeaveGuild")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return err
	}
	unlockChar := s.lockCharacter(c.ID)
	defer unlockChar()
	g, err := s.memberGuild(ctx, c.ID)
	if err != nil {
		return err
	}
	unlockGuild := s.lockGuild(g.ID)
	defer unlockGuild()

	now := s.clock()
	err = s.store.InTx(ctx, func(r *storage.Repos) error {
		if err := r.Guilds.RemoveMember(ctx, g.ID, c.ID); err != nil {
			return err
		}
		rest, err := r.Guilds.Members(ctx, g.ID)
		if err != nil {
			return err
		}
		if len(rest) > 0 {
			if g.LeaderCharacterID == c.ID {
				return r.Guilds.SetLeader(ctx, g.ID, rest[0].CharacterID)
			}
			return nil
		}
		if err := r.Guilds.SetActive(ctx, g.ID, false); err != nil {
			return err
		}
		m, err := r.Missions.Active(ctx, g.ID)
		if err != nil || m == nil {
			return err
		}
		if _, err := r.Missions.Finish(ctx, m.ID, false, now); err != nil {
			return err
		}
		return r.Guilds.SetMissionActive(ctx, g.ID, false)
	})
	if err != nil {
		return apperr.Store("leave guild", err)
	}
	s.publish(ctx, remote.NewRecord(remote.KindGuildUpdated, g.ID, c.ID, g, now))
	s.notify(ctx, notify.NewEvent(notify.TypeGuildLeft, g.ID, c.ID, map[string]string{"name": c.Name}, now))
	return nil
}

// DisbandGuild deactivates the caller's guild and releases every member. Only
// the leader may disband, and not while a mission is running.
func (s *Service) DisbandGuild(ctx context.Context) (err error) {
	ctx, span := startSpan(ctx, "DisbandGuild")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return err
	}
	g, err := s.memberGuild(ctx, c.ID)
	if err != nil {
		return err
	}
	unlock := s.lockGuild(g.ID)
	defer unlock()

	now := s.clock()
	err = s.store.InTx(ctx, func(r *storage.Repos) error {
		cur, err := r.Guilds.Get(ctx, g.ID)
		if err != nil {
			return err
		}
		if cur == nil {
			return guildNotFound(g.ID)
		}
		if !cur.Active {
			return apperr.WithMetadata(apperr.CodeGuildInactive, "guild is inactive", idMeta("guild_id", g.ID))
		}
		if cur.LeaderCharacterID != c.ID {
			return apperr.WithMetadata(apperr.CodeGuildNotLeader, "only the guild leader can disband it", idMeta("guild_id", g.ID))
		}
		g = cur
		m, err := r.Missions.Active(ctx, g.ID)
		if err != nil {
			return err
		}
		if m != nil {
			closed, err := finalizeExpired(ctx, r, m, now)
			if err != nil {
				return err
			}
			if !closed {
				return apperr.WithMetadata(apperr.CodeGuildMissionBlocking, "a mission is in progress", idMeta("mission_id", m.ID))
			}
		}
		members, err := r.Guilds.Members(ctx, g.ID)
		if err != nil {
			return err
		}
		for _, mem := range members {
			if err := r.Guilds.RemoveMember(ctx, g.ID, mem.CharacterID); err != nil {
				return err
			}
		}
		return r.Guilds.SetActive(ctx, g.ID, false)
	})
	if err != nil {
		return apperr.Store("disband guild", err)
	}
	g.Active = false
	s.publish(ctx, remote.NewRecord(remote.KindGuildUpdated, g.ID, c.ID, g, now))
	return nil
}

// CurrentGuild returns the caller's guild.
func (s *Service) CurrentGuild(ctx context.Context) (g *storage.Guild, err error) {
	ctx, span := startSpan(ctx, "CurrentGuild")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	return s.memberGuild(ctx, c.ID)
}

// GuildMembers lists the caller's guild, oldest member first.
func (s *Service) GuildMembers(ctx context.Context) (out []MemberView, err error) {
	ctx, span := startSpan(ctx, "GuildMembers")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	g, err := s.memberGuild(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	members, err := s.store.Guilds.Members(ctx, g.ID)
	if err != nil {
		return nil, apperr.Store("guild members", err)
	}
	for _, m := range members {
		ch, err := s.store.Characters.Get(ctx, m.CharacterID)
		if err != nil {
			return nil, apperr.Store("character get", err)
		}
		if ch == nil {
			continue
		}
		out = append(out, MemberView{
			CharacterID: ch.ID,
			Name:        ch.Name,
			Level:       ch.Level,
			Title:       Title(ch.Level),
			Leader:      ch.ID == g.LeaderCharacterID,
			JoinedAt:    m.JoinedAt,
		})
	}
	return out, nil
}
