// Package app is the composition root: it builds every component once and
// exposes each engine operation as an asynchronous call on a worker pool.
package app

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"questguild/internal/apperr"
	"questguild/internal/config"
	"questguild/internal/engine"
	"questguild/internal/identity"
	"questguild/internal/notify"
	"questguild/internal/random"
	"questguild/internal/remote"
	"questguild/internal/storage"
	"questguild/internal/worker"
)

// Options overrides collaborators built from Config. Zero values fall back
// to the defaults.
type Options struct {
	Config    config.Config
	Identity  identity.Provider
	Notifier  notify.Notifier
	Publisher remote.Publisher
	Dice      random.Dice
	Now       func() time.Time
	Logger    *log.Logger
}

type App struct {
	Engine *engine.Service
	Store  *storage.Store

	tasks    *worker.Pool
	combat   *worker.Pool
	shop     *worker.Pool
	missions *worker.Pool
	logger   *log.Logger
}

func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	principal := opts.Identity
	if principal == nil {
		principal = Principal(cfg)
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = remote.New(cfg.SyncURL, cfg.Token, cfg.SyncTimeout)
	}
	svc, err := engine.NewService(engine.Options{
		Store:     store,
		Identity:  principal,
		Publisher: publisher,
		Notifier:  opts.Notifier,
		Dice:      opts.Dice,
		Location:  loc,
		Now:       opts.Now,
		Logger:    logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &App{
		Engine:   svc,
		Store:    store,
		tasks:    worker.NewPool("tasks", cfg.Workers, cfg.QueueSize, logger),
		combat:   worker.NewPool("combat", cfg.Workers, cfg.QueueSize, logger),
		shop:     worker.NewPool("shop", cfg.Workers, cfg.QueueSize, logger),
		missions: worker.NewPool("missions", cfg.Workers, cfg.QueueSize, logger),
		logger:   logger,
	}
	for _, p := range a.pools() {
		p.Start()
	}
	return a, nil
}

// Principal builds the identity chain for cfg: a user on the context wins,
// then a session token, then the configured static user.
func Principal(cfg config.Config) identity.Provider {
	chain := identity.Chain{identity.Context{}}
	if strings.TrimSpace(cfg.Token) != "" {
		chain = append(chain, identity.JWT{Token: cfg.Token, Secret: []byte(cfg.JWTSecret)})
	}
	if strings.TrimSpace(cfg.User) != "" {
		chain = append(chain, identity.Static(cfg.User))
	}
	return chain
}

func (a *App) pools() []*worker.Pool {
	return []*worker.Pool{a.tasks, a.combat, a.shop, a.missions}
}

// Close drains the pools and closes the store.
func (a *App) Close() error {
	for _, p := range a.pools() {
		p.Close()
	}
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

type none = struct{}

func done(err error) (none, error) { return none{}, err }

// Tasks

func (a *App) Register(ctx context.Context, name string) *worker.Future[*storage.Character] {
	return worker.Go(ctx, a.tasks, func(ctx context.Context) (*storage.Character, error) {
		return a.Engine.Register(ctx, name)
	})
}

func (a *App) CreateTask(ctx context.Context, in engine.CreateTaskInput) *worker.Future[*engine.CreateResult] {
	return worker.Go(ctx, a.tasks, func(ctx context.Context) (*engine.CreateResult, error) {
		return a.Engine.CreateTask(ctx, in)
	})
}

func (a *App) EditTask(ctx context.Context, in engine.EditTaskInput) *worker.Future[*storage.Task] {
	return worker.Go(ctx, a.tasks, func(ctx context.Context) (*storage.Task, error) {
		return a.Engine.EditTask(ctx, in)
	})
}

func (a *App) CompleteTask(ctx context.Context, id int64) *worker.Future[*engine.CompleteResult] {
	return worker.Go(ctx, a.tasks, func(ctx context.Context) (*engine.CompleteResult, error) {
		return a.Engine.CompleteTask(ctx, id)
	})
}

func (a *App) CancelTask(ctx context.Context, id int64) *worker.Future[*storage.Task] {
	return worker.Go(ctx, a.tasks, func(ctx context.Context) (*storage.Task, error) {
		return a.Engine.CancelTask(ctx, id)
	})
}

func (a *App) PauseTask(ctx context.Context, id int64) *worker.Future[*storage.Task] {
	return worker.Go(ctx, a.tasks, func(ctx context.Context) (*storage.Task, error) {
		return a.Engine.PauseTask(ctx, id)
	})
}

func (a *App) ResumeTask(ctx context.Context, id int64) *worker.Future[*storage.Task] {
	return worker.Go(ctx, a.tasks, func(ctx context.Context) (*storage.Task, error) {
		return a.Engine.ResumeTask(ctx, id)
	})
}

func (a *App) DeleteTask(ctx context.Context, id int64) *worker.Future[*engine.DeleteResult] {
	return worker.Go(ctx, a.tasks, func(ctx context.Context) (*engine.DeleteResult, error) {
		return a.Engine.DeleteTask(ctx, id)
	})
}

// ListTasks resolves Empty when the caller has no matching tasks.
func (a *App) ListTasks(ctx context.Context, statuses ...engine.TaskStatus) *worker.Future[[]storage.Task] {
	return worker.Go(ctx, a.tasks, func(ctx context.Context) ([]storage.Task, error) {
		return a.Engine.ListTasks(ctx, statuses...)
	})
}

func (a *App) Stats(ctx context.Context) *worker.Future[*engine.TaskStats] {
	return worker.Go(ctx, a.tasks, a.Engine.Stats)
}

func (a *App) Status(ctx context.Context) *worker.Future[*engine.StatusView] {
	return worker.Go(ctx, a.tasks, a.Engine.Status)
}

func (a *App) Achievements(ctx context.Context) *worker.Future[[]engine.Achievement] {
	return worker.Go(ctx, a.tasks, a.Engine.Achievements)
}

// Combat

func (a *App) CurrentBoss(ctx context.Context) *worker.Future[*engine.BossView] {
	return worker.Go(ctx, a.combat, a.Engine.CurrentBoss)
}

func (a *App) StartEncounter(ctx context.Context) *worker.Future[*engine.EncounterState] {
	return worker.Go(ctx, a.combat, a.Engine.StartEncounter)
}

func (a *App) Attack(ctx context.Context, encounterID int64) *worker.Future[*engine.AttackResult] {
	return worker.Go(ctx, a.combat, func(ctx context.Context) (*engine.AttackResult, error) {
		return a.Engine.Attack(ctx, encounterID)
	})
}

func (a *App) EndEncounter(ctx context.Context, encounterID int64) *worker.Future[*engine.EncounterResult] {
	return worker.Go(ctx, a.combat, func(ctx context.Context) (*engine.EncounterResult, error) {
		return a.Engine.EndEncounter(ctx, encounterID)
	})
}

// Shop

func (a *App) ShopCatalog(ctx context.Context) *worker.Future[[]engine.PricedItem] {
	return worker.Go(ctx, a.shop, a.Engine.ShopCatalog)
}

func (a *App) Purchase(ctx context.Context, code string) *worker.Future[*engine.PurchaseResult] {
	return worker.Go(ctx, a.shop, func(ctx context.Context) (*engine.PurchaseResult, error) {
		return a.Engine.Purchase(ctx, code)
	})
}

func (a *App) Activate(ctx context.Context, equipmentID int64) *worker.Future[*storage.Equipment] {
	return worker.Go(ctx, a.shop, func(ctx context.Context) (*storage.Equipment, error) {
		return a.Engine.Activate(ctx, equipmentID)
	})
}

func (a *App) Deactivate(ctx context.Context, equipmentID int64) *worker.Future[*storage.Equipment] {
	return worker.Go(ctx, a.shop, func(ctx context.Context) (*storage.Equipment, error) {
		return a.Engine.Deactivate(ctx, equipmentID)
	})
}

func (a *App) Upgrade(ctx context.Context, equipmentID int64) *worker.Future[*engine.UpgradeResult] {
	return worker.Go(ctx, a.shop, func(ctx context.Context) (*engine.UpgradeResult, error) {
		return a.Engine.Upgrade(ctx, equipmentID)
	})
}

func (a *App) ListEquipment(ctx context.Context, activeOnly bool) *worker.Future[[]storage.Equipment] {
	return worker.Go(ctx, a.shop, func(ctx context.Context) ([]storage.Equipment, error) {
		return a.Engine.ListEquipment(ctx, activeOnly)
	})
}

// Guilds and missions

func (a *App) CreateGuild(ctx context.Context, name string) *worker.Future[*storage.Guild] {
	return worker.Go(ctx, a.missions, func(ctx context.Context) (*storage.Guild, error) {
		return a.Engine.CreateGuild(ctx, name)
	})
}

func (a *App) JoinGuild(ctx context.Context, guildID int64) *worker.Future[*storage.Guild] {
	return worker.Go(ctx, a.missions, func(ctx context.Context) (*storage.Guild, error) {
		return a.Engine.JoinGuild(ctx, guildID)
	})
}

func (a *App) InviteToGuild(ctx context.Context, characterID int64) *worker.Future[none] {
	return worker.Go(ctx, a.missions, func(ctx context.Context) (none, error) {
		return done(a.Engine.InviteToGuild(ctx, characterID))
	})
}

func (a *App) LeaveGuild(ctx context.Context) *worker.Future[none] {
	return worker.Go(ctx, a.missions, func(ctx context.Context) (none, error) {
		return done(a.Engine.LeaveGuild(ctx))
	})
}

func (a *App) DisbandGuild(ctx context.Context) *worker.Future[none] {
	return worker.Go(ctx, a.missions, func(ctx context.Context) (none, error) {
		return done(a.Engine.DisbandGuild(ctx))
	})
}

func (a *App) CurrentGuild(ctx context.Context) *worker.Future[*storage.Guild] {
	return worker.Go(ctx, a.missions, a.Engine.CurrentGuild)
}

func (a *App) GuildMembers(ctx context.Context) *worker.Future[[]engine.MemberView] {
	return worker.Go(ctx, a.missions, a.Engine.GuildMembers)
}

func (a *App) StartMission(ctx context.Context) *worker.Future[*storage.SpecialMission] {
	return worker.Go(ctx, a.missions, a.Engine.StartMission)
}

func (a *App) RecordContribution(ctx context.Context, kind engine.ContributionKind) *worker.Future[*engine.ContributionResult] {
	return worker.Go(ctx, a.missions, func(ctx context.Context) (*engine.ContributionResult, error) {
		return a.Engine.RecordContribution(ctx, kind)
	})
}

// RecordChatMessage resolves Empty when the guild has no mission running.
func (a *App) RecordChatMessage(ctx context.Context, text string) *worker.Future[*engine.ContributionResult] {
	return worker.Go(ctx, a.missions, func(ctx context.Context) (*engine.ContributionResult, error) {
		return a.Engine.RecordChatMessage(ctx, text)
	})
}

func (a *App) CheckNoUnresolved(ctx context.Context) *worker.Future[*engine.ContributionResult] {
	return worker.Go(ctx, a.missions, a.Engine.CheckNoUnresolved)
}

func (a *App) MissionProgress(ctx context.Context) *worker.Future[*engine.MissionView] {
	return worker.Go(ctx, a.missions, a.Engine.MissionProgress)
}

func (a *App) GuildMission(ctx context.Context, guildID int64) *worker.Future[*engine.MissionView] {
	return worker.Go(ctx, a.missions, func(ctx context.Context) (*engine.MissionView, error) {
		return a.Engine.GuildMission(ctx, guildID)
	})
}

func (a *App) Sweep(ctx context.Context) *worker.Future[*engine.SweepReport] {
	return worker.Go(ctx, a.missions, a.Engine.Sweep)
}

// Await waits for f and returns its value. An Empty result is not an error.
func Await[T any](ctx context.Context, f *worker.Future[T]) (T, error) {
	return f.Wait(ctx).Unwrap()
}

// IsShutdown reports whether err came from a closed pool.
func IsShutdown(err error) bool {
	return apperr.HasCode(err, apperr.CodeShutdown)
}
