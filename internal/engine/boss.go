package engine

import (
	"context"
	"math"
	"time"

	"questguild/internal/apperr"
	"questguild/internal/notify"
	"questguild/internal/remote"
	"questguild/internal/storage"
)

const (
	// MaxAttacks bounds one encounter.
	MaxAttacks = 5

	// DropChance is the percent chance of an equipment drop after a win.
	DropChance = 20

	// ClothingDropShare is the percent of drops that are clothing; the rest
	// are weapons.
	ClothingDropShare = 95
)

type Outcome string

const (
	OutcomeVictory        Outcome = "victory"
	OutcomePartialVictory Outcome = "partial_victory"
	OutcomeDefeat         Outcome = "defeat"
)

// BossView describes the character's current boss and whether it can be
// fought now.
type BossView struct {
	Boss      *storage.Boss
	Available bool
	Reason    string
	Open      *storage.BossEncounter
	HitChance int
}

type EncounterState struct {
	Encounter   *storage.BossEncounter
	Boss        *storage.Boss
	HitChance   int
	AttacksLeft int
}

type AttackResult struct {
	EncounterID int64
	Roll        int
	HitChance   int
	Hit         bool
	Damage      int64
	BossHP      int64
	AttacksLeft int
	Finished    bool
	Result      *EncounterResult
}

type EncounterResult struct {
	EncounterID   int64
	BossID        int64
	Outcome       Outcome
	DamageDealt   int64
	DamagePercent float64
	Coins         int64
	Drop          *storage.Equipment
	Destroyed     int64 // items worn out by this encounter
}

// CurrentBoss returns the character's boss, creating it lazily if the
// character has leveled past level 1 and none exists yet.
func (s *Service) CurrentBoss(ctx context.Context) (view *BossView, err error) {
	ctx, span := startSpan(ctx, "CurrentBoss")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.lockCharacter(c.ID)
	defer unlock()

	now := s.clock()
	view = &BossView{}
	err = s.store.InTx(ctx, func(r *storage.Repos) error {
		boss, err := ensureBoss(ctx, r, c, now)
		if err != nil {
			return err
		}
		view.Boss = boss
		open, err := r.Encounters.Open(ctx, c.ID)
		if err != nil {
			return err
		}
		view.Open = open
		view.Available, view.Reason = encounterAllowed(c, boss, open)

		bonuses, err := activeBonuses(ctx, r, c.ID)
		if err != nil {
			return err
		}
		stats, err := taskStats(ctx, r, c.ID)
		if err != nil {
			return err
		}
		view.HitChance = hitChance(stats, bonuses)
		return nil
	})
	if err != nil {
		return nil, apperr.Store("current boss", err)
	}
	return view, nil
}

func encounterAllowed(c *storage.Character, boss *storage.Boss, open *storage.BossEncounter) (bool, string) {
	switch {
	case open != nil:
		return false, "an encounter is already in progress"
	case boss == nil:
		return false, "no boss to fight; level up first"
	case boss.Defeated:
		return false, "boss already defeated"
	case boss.LastEncounterAt != nil && !boss.LastEncounterAt.Before(c.StageStartedAt):
		return false, "already fought since the last level-up"
	default:
		return true, ""
	}
}

// hitChance is the success rate plus success bonuses, capped at 100.
func hitChance(st *TaskStats, b Bonuses) int {
	p := st.SuccessRate + int(math.Floor(b.Success))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// StartEncounter opens an encounter against the current boss.
func (s *Service) StartEncounter(ctx context.Context) (state *EncounterState, err error) {
	ctx, span := startSpan(ctx, "StartEncounter")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.lockCharacter(c.ID)
	defer unlock()

	now := s.clock()
	err = s.store.InTx(ctx, func(r *storage.Repos) error {
		char, err := loadCharacter(ctx, r, c.ID)
		if err != nil {
			return err
		}
		boss, err := ensureBoss(ctx, r, char, now)
		if err != nil {
			return err
		}
		open, err := r.Encounters.Open(ctx, char.ID)
		if err != nil {
			return err
		}
		if open != nil {
			return apperr.WithMetadata(apperr.CodeEncounterActive, "an encounter is already in progress", idMeta("encounter_id", open.ID))
		}
		if ok, reason := encounterAllowed(char, boss, nil); !ok {
			return apperr.New(apperr.CodeBossNotAvailable, reason)
		}

		if err := r.Bosses.TouchEncounter(ctx, boss.ID, now); err != nil {
			return err
		}
		encID, err := r.Encounters.Insert(ctx, boss.ID, char.ID, now)
		if err != nil {
			return err
		}
		enc, err := r.Encounters.Get(ctx, encID)
		if err != nil {
			return err
		}
		bonuses, err := activeBonuses(ctx, r, char.ID)
		if err != nil {
			return err
		}
		stats, err := taskStats(ctx, r, char.ID)
		if err != nil {
			return err
		}
		state = &EncounterState{
			Encounter:   enc,
			Boss:        boss,
			HitChance:   hitChance(stats, bonuses),
			AttacksLeft: MaxAttacks,
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Store("start encounter", err)
	}
	return state, nil
}

// Attack rolls one attack. The encounter ends on its own when the boss falls
// or the attacks run out.
func (s *Service) Attack(ctx context.Context, encounterID int64) (res *AttackResult, err error) {
	ctx, span := startSpan(ctx, "Attack")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.lockCharacter(c.ID)
	defer unlock()

	now := s.clock()
	err = s.store.InTx(ctx, func(r *storage.Repos) error {
		char, enc, boss, err := loadEncounter(ctx, r, c.ID, encounterID)
		if err != nil {
			return err
		}
		bonuses, err := activeBonuses(ctx, r, char.ID)
		if err != nil {
			return err
		}
		stats, err := taskStats(ctx, r, char.ID)
		if err != nil {
			return err
		}

		res = &AttackResult{EncounterID: enc.ID, HitChance: hitChance(stats, bonuses)}
		res.Roll = s.dice.Intn(100)
		res.Hit = res.Roll < res.HitChance
		if res.Hit {
			res.Damage = WithBonus(char.PowerPoints, bonuses.Power)
			if res.Damage > boss.CurrentHP {
				res.Damage = boss.CurrentHP
			}
			if err := r.Bosses.ApplyDamage(ctx, boss.ID, res.Damage); err != nil {
				return err
			}
		}
		if err := r.Encounters.RecordAttack(ctx, enc.ID, res.Hit, res.Damage); err != nil {
			return err
		}

		if boss, err = r.Bosses.Get(ctx, boss.ID); err != nil {
			return err
		}
		if enc, err = r.Encounters.Get(ctx, enc.ID); err != nil {
			return err
		}
		res.BossHP = boss.CurrentHP
		res.AttacksLeft = MaxAttacks - enc.AttacksUsed
		if boss.Defeated || res.AttacksLeft <= 0 {
			result, err := s.finishEncounter(ctx, r, char, enc, boss, bonuses, now)
			if err != nil {
				return err
			}
			res.Finished = true
			res.Result = result
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Store("attack", err)
	}

	if res.Hit {
		s.contributeAfterCommit(ctx, c.ID, ContributionBossHit)
	}
	if res.Finished {
		s.encounterEnded(ctx, c, res.Result, now)
	}
	return res, nil
}

// EndEncounter closes an encounter before its attacks run out.
func (s *Service) EndEncounter(ctx context.Context, encounterID int64) (res *EncounterResult, err error) {
	ctx, span := startSpan(ctx, "EndEncounter")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.lockCharacter(c.ID)
	defer unlock()

	now := s.clock()
	err = s.store.InTx(ctx, func(r *storage.Repos) error {
		char, enc, boss, err := loadEncounter(ctx, r, c.ID, encounterID)
		if err != nil {
			return err
		}
		bonuses, err := activeBonuses(ctx, r, char.ID)
		if err != nil {
			return err
		}
		res, err = s.finishEncounter(ctx, r, char, enc, boss, bonuses, now)
		return err
	})
	if err != nil {
		return nil, apperr.Store("end encounter", err)
	}
	s.encounterEnded(ctx, c, res, now)
	return res, nil
}

func loadEncounter(ctx context.Context, r *storage.Repos, characterID, encounterID int64) (*storage.Character, *storage.BossEncounter, *storage.Boss, error) {
	enc, err := r.Encounters.Get(ctx, encounterID)
	if err != nil {
		return nil, nil, nil, err
	}
	if enc == nil || enc.CharacterID != characterID {
		return nil, nil, nil, apperr.WithMetadata(apperr.CodeEncounterNotFound, "encounter not found", idMeta("encounter_id", encounterID))
	}
	if enc.EndedAt != nil {
		return nil, nil, nil, apperr.WithMetadata(apperr.CodeEncounterFinished, "encounter already ended", idMeta("encounter_id", encounterID))
	}
	boss, err := r.Bosses.Get(ctx, enc.BossID)
	if err != nil {
		return nil, nil, nil, err
	}
	if boss == nil {
		return nil, nil, nil, apperr.WithMetadata(apperr.CodeBossNotFound, "boss not found", idMeta("boss_id", enc.BossID))
	}
	char, err := loadCharacter(ctx, r, characterID)
	if err != nil {
		return nil, nil, nil, err
	}
	return char, enc, boss, nil
}

// finishEncounter settles the outcome, pays rewards, rolls the drop and
// wears down active equipment.
func (s *Service) finishEncounter(ctx context.Context, r *storage.Repos, c *storage.Character, enc *storage.BossEncounter, boss *storage.Boss, bonuses Bonuses, now time.Time) (*EncounterResult, error) {
	res := &EncounterResult{
		EncounterID: enc.ID,
		BossID:      boss.ID,
		DamageDealt: enc.DamageDealt,
	}
	if boss.MaxHP > 0 {
		res.DamagePercent = math.Min(100, float64(enc.DamageDealt)*100/float64(boss.MaxHP))
	}
	switch {
	case boss.Defeated:
		res.Outcome = OutcomeVictory
	case enc.DamageDealt > 0:
		res.Outcome = OutcomePartialVictory
	default:
		res.Outcome = OutcomeDefeat
	}

	if res.Outcome != OutcomeDefeat {
		defeated, err := r.Bosses.CountDefeated(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if boss.Defeated {
			defeated-- // the multiplier counts bosses beaten before this one
		}
		res.Coins = WithBonus(BossReward(defeated), bonuses.Coins)
		if err := r.Characters.AddCoins(ctx, c.ID, res.Coins); err != nil {
			return nil, err
		}

		if item, ok := s.rollDrop(); ok {
			row := newEquipment(c.ID, item, now)
			id, err := r.Equipment.Insert(ctx, row)
			if err != nil {
				return nil, err
			}
			row.ID = id
			res.Drop = &row
		}
	}

	destroyed, err := r.Equipment.WearActive(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	res.Destroyed = destroyed

	ended := now
	enc.EndedAt = &ended
	enc.Outcome = string(res.Outcome)
	enc.CoinsAwarded = res.Coins
	if res.Drop != nil {
		enc.DroppedEquipmentID = &res.Drop.ID
	}
	if err := r.Encounters.Finish(ctx, enc); err != nil {
		return nil, err
	}
	return res, nil
}

// rollDrop decides whether a win drops an item and which one.
func (s *Service) rollDrop() (CatalogItem, bool) {
	if s.dice.Intn(100) >= DropChance {
		return CatalogItem{}, false
	}
	pool := itemsIn(CategoryWeapon)
	if s.dice.Intn(100) < ClothingDropShare {
		pool = itemsIn(CategoryClothing)
	}
	if len(pool) == 0 {
		return CatalogItem{}, false
	}
	return pool[s.dice.Intn(len(pool))], true
}

func (s *Service) encounterEnded(ctx context.Context, c *storage.Character, res *EncounterResult, now time.Time) {
	s.publish(ctx, remote.NewRecord(remote.KindEncounterFinished, res.EncounterID, c.ID, res, now))
	s.notify(ctx, notify.NewEvent(notify.TypeEncounterEnded, 0, c.ID, res, now))
}
