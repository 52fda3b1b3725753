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

const (
	// MissionDuration is how long a guild has to deplete the pool.
	MissionDuration = 14 * 24 * time.Hour

	// MissionHPPerMember sizes the shared pool at start.
	MissionHPPerMember = 100
)

type MissionStatus string

const (
	MissionActive    MissionStatus = "active"
	MissionCompleted MissionStatus = "completed"
)

type ContributionKind string

const (
	ContributionShopPurchase ContributionKind = "shop_purchase"
	ContributionBossHit      ContributionKind = "boss_hit"
	ContributionEasyTask     ContributionKind = "easy_task"
	ContributionOtherTask    ContributionKind = "other_task"
	ContributionChatDay      ContributionKind = "chat_day"
	ContributionNoUnresolved ContributionKind = "no_unresolved"
)

type contributionRule struct {
	counter storage.ProgressCounter
	damage  int64
	cap     int
}

var contributionRules = map[ContributionKind]contributionRule{
	ContributionShopPurchase: {counter: storage.CounterShopPurchases, damage: 2, cap: 5},
	ContributionBossHit:      {counter: storage.CounterBossHits, damage: 2, cap: 10},
	ContributionEasyTask:     {counter: storage.CounterEasyTasks, damage: 1, cap: 10},
	ContributionOtherTask:    {counter: storage.CounterOtherTasks, damage: 4, cap: 6},
	ContributionChatDay:      {counter: storage.CounterChatDays, damage: 4, cap: 14},
	ContributionNoUnresolved: {counter: storage.CounterNoUnresolvedBonus, damage: 10, cap: 1},
}

func ParseContributionKind(input string) (ContributionKind, bool) {
	k := ContributionKind(normalizeToken(input))
	_, ok := contributionRules[k]
	return k, ok
}

// Damage is the pool damage of one contribution of kind k.
func (k ContributionKind) Damage() int64 { return contributionRules[k].damage }

// Cap is how many contributions of kind k count per member and mission.
func (k ContributionKind) Cap() int { return contributionRules[k].cap }

type ContributionResult struct {
	MissionID int64
	Kind      ContributionKind
	Applied   bool // false when the member's cap for this kind was reached
	Damage    int64
	MissionHP int64
	Completed bool // this contribution depleted the pool
	Rewards   map[int64]int64
}

// MissionView is a mission with every member's progress.
type MissionView struct {
	Mission   *storage.SpecialMission
	Progress  []storage.MissionProgress
	Remaining time.Duration
}

// StartMission opens a special mission for the caller's guild. Only the
// leader of an active guild may start one, and only one may run at a time.
func (s *Service) StartMission(ctx context.Context) (m *storage.SpecialMission, err error) {
	ctx, span := startSpan(ctx, "StartMission")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	g, err := s.memberGuild(ctx, c.ID)
	if err != nil {
		return nil, err
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
			return apperr.WithMetadata(apperr.CodeGuildNotLeader, "only the guild leader can start a mission", idMeta("guild_id", g.ID))
		}
		active, err := r.Missions.Active(ctx, g.ID)
		if err != nil {
			return err
		}
		if active != nil {
			closed, err := finalizeExpired(ctx, r, active, now)
			if err != nil {
				return err
			}
			if !closed {
				return apperr.WithMetadata(apperr.CodeMissionAlreadyActive, "a mission is already in progress", idMeta("mission_id", active.ID))
			}
		}

		members, err := r.Guilds.Members(ctx, g.ID)
		if err != nil {
			return err
		}
		hp := int64(len(members)) * MissionHPPerMember
		id, err := r.Missions.Insert(ctx, g.ID, now, now.Add(MissionDuration), hp)
		if err != nil {
			return err
		}
		for _, mem := range members {
			if err := r.Missions.SeedProgress(ctx, id, mem.CharacterID); err != nil {
				return err
			}
		}
		if err := r.Guilds.SetMissionActive(ctx, g.ID, true); err != nil {
			return err
		}
		m, err = r.Missions.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, apperr.Store("start mission", err)
	}

	s.publish(ctx, remote.NewRecord(remote.KindMissionUpdated, m.ID, c.ID, m, now))
	s.notify(ctx, notify.NewEvent(notify.TypeMissionStarted, g.ID, c.ID, m, now))
	return m, nil
}

// RecordContribution applies one contribution of the caller to their guild's
// active mission.
func (s *Service) RecordContribution(ctx context.Context, kind ContributionKind) (res *ContributionResult, err error) {
	ctx, span := startSpan(ctx, "RecordContribution")
	defer func() { endSpan(span, err) }()

	if _, ok := contributionRules[kind]; !ok {
		return nil, apperr.Newf(apperr.CodeGuildInvalidInput, "unknown contribution %q", kind)
	}
	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	if kind == ContributionNoUnresolved {
		return s.checkNoUnresolved(ctx, c.ID)
	}
	return s.contribute(ctx, c.ID, kind)
}

// RecordChatMessage relays a guild chat message and counts the day toward
// the chat contribution. A guild without a running mission still gets the
// message.
func (s *Service) RecordChatMessage(ctx context.Context, text string) (res *ContributionResult, err error) {
	ctx, span := startSpan(ctx, "RecordChatMessage")
	defer func() { endSpan(span, err) }()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.New(apperr.CodeGuildInvalidInput, "message is empty")
	}
	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	g, err := s.memberGuild(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, notify.NewEvent(notify.TypeChatMessage, g.ID, c.ID, map[string]string{
		"from": c.Name,
		"text": text,
	}, s.clock()))

	res, err = s.contribute(ctx, c.ID, ContributionChatDay)
	if apperr.HasCode(err, apperr.CodeMissionNotFound) {
		return nil, nil
	}
	return res, err
}

// CheckNoUnresolved grants the caller's bonus if they have nothing left
// unresolved since the mission started.
func (s *Service) CheckNoUnresolved(ctx context.Context) (res *ContributionResult, err error) {
	ctx, span := startSpan(ctx, "CheckNoUnresolved")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	return s.checkNoUnresolved(ctx, c.ID)
}

// checkNoUnresolved contributes the bonus when the character completed at
// least one task since the mission started and has no active task due and
// no task gone incomplete in that time. It returns a result with Applied
// false when the condition does not hold.
func (s *Service) checkNoUnresolved(ctx context.Context, characterID int64) (*ContributionResult, error) {
	g, err := s.memberGuild(ctx, characterID)
	if err != nil {
		return nil, err
	}
	m, err := s.store.Missions.Active(ctx, g.ID)
	if err != nil {
		return nil, apperr.Store("mission active", err)
	}
	if m == nil {
		return nil, missionNotFound(g.ID)
	}
	now := s.clock()
	unresolved, err := s.store.Tasks.CountUnresolved(ctx, characterID, m.StartedAt, now)
	if err != nil {
		return nil, apperr.Store("count unresolved", err)
	}
	done, err := s.store.Completions.CountSince(ctx, characterID, m.StartedAt)
	if err != nil {
		return nil, apperr.Store("count completions", err)
	}
	if unresolved > 0 || done == 0 {
		return &ContributionResult{MissionID: m.ID, Kind: ContributionNoUnresolved, MissionHP: m.CurrentHP}, nil
	}
	return s.contribute(ctx, characterID, ContributionNoUnresolved)
}

// contributeAfterCommit records a contribution that follows an already
// committed operation. Failures are logged; a character outside any guild or
// mission is not an error.
func (s *Service) contributeAfterCommit(ctx context.Context, characterID int64, kind ContributionKind) {
	_, err := s.contribute(ctx, characterID, kind)
	switch {
	case err == nil,
		apperr.HasCode(err, apperr.CodeGuildNotMember),
		apperr.HasCode(err, apperr.CodeMissionNotFound),
		apperr.HasCode(err, apperr.CodeMissionClosed):
		return
	default:
		s.logger.Printf("engine mission contribution %s for character %d: %v", kind, characterID, err)
	}
}

// contribute applies one contribution under the guild's lock.
func (s *Service) contribute(ctx context.Context, characterID int64, kind ContributionKind) (*ContributionResult, error) {
	rule := contributionRules[kind]
	g, err := s.memberGuild(ctx, characterID)
	if err != nil {
		return nil, err
	}
	unlock := s.lockGuild(g.ID)
	defer unlock()

	now := s.clock()
	var day string
	if kind == ContributionChatDay {
		day = s.dayKey(now)
	}

	var (
		res    *ContributionResult
		closed bool
	)
	err = s.store.InTx(ctx, func(r *storage.Repos) error {
		m, err := r.Missions.Active(ctx, g.ID)
		if err != nil {
			return err
		}
		if m == nil {
			return missionNotFound(g.ID)
		}
		if closed, err = finalizeExpired(ctx, r, m, now); err != nil || closed {
			return err
		}

		// Members who joined after the start get a row on first contact.
		if err := r.Missions.SeedProgress(ctx, m.ID, characterID); err != nil {
			return err
		}
		res = &ContributionResult{MissionID: m.ID, Kind: kind, MissionHP: m.CurrentHP}
		applied, err := r.Missions.IncrementCounter(ctx, m.ID, characterID, rule.counter, rule.cap, rule.damage, day)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		if _, err := r.Missions.ApplyDamage(ctx, m.ID, rule.damage); err != nil {
			return err
		}
		res.Applied = true
		res.Damage = rule.damage

		if m, err = r.Missions.Get(ctx, m.ID); err != nil {
			return err
		}
		res.MissionHP = m.CurrentHP
		if m.CurrentHP > 0 {
			return nil
		}
		rewards, err := completeMission(ctx, r, m, now)
		if err != nil {
			return err
		}
		res.Completed = true
		res.Rewards = rewards
		return nil
	})
	if err != nil {
		return nil, apperr.Store("mission contribution", err)
	}
	if closed {
		return nil, apperr.WithMetadata(apperr.CodeMissionClosed, "mission deadline has passed", idMeta("guild_id", g.ID))
	}

	if res.Applied {
		s.publish(ctx, remote.NewRecord(remote.KindMissionUpdated, res.MissionID, characterID, res, now))
	}
	if res.Completed {
		s.notify(ctx, notify.NewEvent(notify.TypeMissionCompleted, g.ID, characterID, res, now))
	}
	return res, nil
}

// completeMission closes a depleted mission and pays every member half of
// their own base boss reward.
func completeMission(ctx context.Context, r *storage.Repos, m *storage.SpecialMission, now time.Time) (map[int64]int64, error) {
	ok, err := r.Missions.Finish(ctx, m.ID, true, now)
	if err != nil || !ok {
		return nil, err
	}
	if err := r.Guilds.SetMissionActive(ctx, m.GuildID, false); err != nil {
		return nil, err
	}
	members, err := r.Guilds.Members(ctx, m.GuildID)
	if err != nil {
		return nil, err
	}
	rewards := make(map[int64]int64, len(members))
	for _, mem := range members {
		defeated, err := r.Bosses.CountDefeated(ctx, mem.CharacterID)
		if err != nil {
			return nil, err
		}
		coins := BossReward(defeated) / 2
		if err := r.Characters.AddCoins(ctx, mem.CharacterID, coins); err != nil {
			return nil, err
		}
		rewards[mem.CharacterID] = coins
	}
	return rewards, nil
}

// finalizeExpired closes m as unsuccessful if its deadline has passed. It
// reports whether m is now closed.
func finalizeExpired(ctx context.Context, r *storage.Repos, m *storage.SpecialMission, now time.Time) (bool, error) {
	if MissionStatus(m.Status) != MissionActive {
		return true, nil
	}
	if now.Before(m.EndsAt) {
		return false, nil
	}
	if _, err := r.Missions.Finish(ctx, m.ID, false, now); err != nil {
		return false, err
	}
	if err := r.Guilds.SetMissionActive(ctx, m.GuildID, false); err != nil {
		return false, err
	}
	m.Status = string(MissionCompleted)
	m.Successful = false
	m.CompletedAt = &now
	return true, nil
}

// MissionProgress returns the caller's guild mission, finalizing it first if
// its deadline has passed.
func (s *Service) MissionProgress(ctx context.Context) (view *MissionView, err error) {
	ctx, span := startSpan(ctx, "MissionProgress")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	g, err := s.memberGuild(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return s.missionView(ctx, g.ID)
}

// GuildMission returns the latest mission of guildID. Only its members may
// read it.
func (s *Service) GuildMission(ctx context.Context, guildID int64) (view *MissionView, err error) {
	ctx, span := startSpan(ctx, "GuildMission")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	g, err := s.store.Guilds.Get(ctx, guildID)
	if err != nil {
		return nil, apperr.Store("guild get", err)
	}
	if g == nil {
		return nil, guildNotFound(guildID)
	}
	m, err := s.store.Guilds.Membership(ctx, c.ID)
	if err != nil {
		return nil, apperr.Store("guild membership", err)
	}
	if m == nil || m.GuildID != guildID {
		return nil, apperr.WithMetadata(apperr.CodeGuildNotMember, "not a member of this guild", idMeta("guild_id", guildID))
	}
	return s.missionView(ctx, guildID)
}

func (s *Service) missionView(ctx context.Context, guildID int64) (*MissionView, error) {
	unlock := s.lockGuild(guildID)
	defer unlock()

	now := s.clock()
	view := &MissionView{}
	err := s.store.InTx(ctx, func(r *storage.Repos) error {
		m, err := r.Missions.Latest(ctx, guildID)
		if err != nil {
			return err
		}
		if m == nil {
			return missionNotFound(guildID)
		}
		if _, err := finalizeExpired(ctx, r, m, now); err != nil {
			return err
		}
		view.Mission = m
		if MissionStatus(m.Status) == MissionActive {
			view.Remaining = m.EndsAt.Sub(now)
		}
		view.Progress, err = r.Missions.ListProgress(ctx, m.ID)
		return err
	})
	if err != nil {
		return nil, apperr.Store("mission progress", err)
	}
	return view, nil
}

func missionNotFound(guildID int64) error {
	return apperr.WithMetadata(apperr.CodeMissionNotFound, "guild has no mission in progress", idMeta("guild_id", guildID))
}
