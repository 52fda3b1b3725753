package engine

import (
	"context"
	"testing"
	"time"

	"questguild/internal/apperr"
	"questguild/internal/storage"
)

func (f *fixture) giveCoins(t *testing.T, characterID, coins int64) {
	t.Helper()
	if err := f.store.Characters.AddCoins(context.Background(), characterID, coins); err != nil {
		t.Fatalf("add coins: %v", err)
	}
}

func (f *fixture) giveItem(t *testing.T, characterID int64, code string, active bool) int64 {
	t.Helper()
	item, ok := LookupItem(code)
	if !ok {
		t.Fatalf("unknown item %s", code)
	}
	row := newEquipment(characterID, item, f.clock.Now())
	row.Active = active
	id, err := f.store.Equipment.Insert(context.Background(), row)
	if err != nil {
		t.Fatalf("insert equipment: %v", err)
	}
	return id
}

func TestCatalogPrices(t *testing.T) {
	f := newFixture(t)
	ctx, _ := f.login(t, "ana")

	items, err := f.svc.ShopCatalog(ctx)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	prices := make(map[string]int64)
	for _, it := range items {
		prices[it.Code] = it.Price
	}
	want := map[string]int64{
		"potion_power_20":  100,
		"potion_power_40":  140,
		"potion_power_5p":  400,
		"potion_power_10p": 2000,
		"gloves":           120,
		"shield":           120,
		"boots":            160,
		"sword":            0,
	}
	for code, p := range want {
		if prices[code] != p {
			t.Fatalf("price %s=%d, want %d", code, prices[code], p)
		}
	}
}

func TestPurchase(t *testing.T) {
	f := newFixture(t)
	ctx, c := f.login(t, "ana")

	_, err := f.svc.Purchase(ctx, "gloves")
	wantCode(t, err, apperr.CodeInsufficientCoins)
	if apperr.KindOf(err) != apperr.KindPrecondition {
		t.Fatalf("kind=%s", apperr.KindOf(err))
	}
	_, err = f.svc.Purchase(ctx, "sword")
	wantCode(t, err, apperr.CodeEquipmentNotPurchasable)
	_, err = f.svc.Purchase(ctx, "cape")
	wantCode(t, err, apperr.CodeEquipmentUnknownItem)

	f.giveCoins(t, c.ID, 150)
	res, err := f.svc.Purchase(ctx, "gloves")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if res.Price != 120 || res.Coins != 30 || res.Equipment.Durability != 2 || res.Equipment.Active {
		t.Fatalf("result=%+v equipment=%+v", res, res.Equipment)
	}
}

func TestPurchaseRefundsWhenInsertFails(t *testing.T) {
	f := newFixture(t)
	ctx, c := f.login(t, "ana")
	f.giveCoins(t, c.ID, 1000)

	if _, err := f.store.DB().ExecContext(context.Background(), `DROP TABLE equipment`); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	_, err := f.svc.Purchase(ctx, "potion_power_20")
	wantCode(t, err, apperr.CodeStoreFailure)
	if apperr.KindOf(err) != apperr.KindCollaborator {
		t.Fatalf("kind=%s", apperr.KindOf(err))
	}
	if got := f.character(t, c.ID); got.Coins != 1000 {
		t.Fatalf("coins=%d, want refund to 1000", got.Coins)
	}
}

func TestUpgradeWeapon(t *testing.T) {
	f := newFixture(t)
	ctx, c := f.login(t, "ana")
	sword := f.giveItem(t, c.ID, "sword", false)
	gloves := f.giveItem(t, c.ID, "gloves", false)
	f.giveCoins(t, c.ID, 200)

	res, err := f.svc.Upgrade(ctx, sword)
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if res.Equipment.BonusValue != 6 || res.Price != 120 || res.Coins != 80 {
		t.Fatalf("result=%+v equipment=%+v", res, res.Equipment)
	}
	_, err = f.svc.Upgrade(ctx, sword)
	wantCode(t, err, apperr.CodeInsufficientCoins)
	_, err = f.svc.Upgrade(ctx, gloves)
	wantCode(t, err, apperr.CodeEquipmentNotUpgradable)
	if got := f.character(t, c.ID); got.Coins != 80 {
		t.Fatalf("coins=%d, want 80", got.Coins)
	}
}

func TestActivateRequiresOwnership(t *testing.T) {
	f := newFixture(t)
	ana, c := f.login(t, "ana")
	ben, _ := f.login(t, "ben")
	id := f.giveItem(t, c.ID, "shield", false)

	_, err := f.svc.Activate(ben, id)
	wantCode(t, err, apperr.CodeEquipmentNotOwned)
	_, err = f.svc.Activate(ana, 999)
	wantCode(t, err, apperr.CodeEquipmentNotFound)

	e, err := f.svc.Activate(ana, id)
	if err != nil || !e.Active {
		t.Fatalf("activate=%+v err=%v", e, err)
	}
	if e, err = f.svc.Deactivate(ana, id); err != nil || e.Active {
		t.Fatalf("deactivate=%+v err=%v", e, err)
	}
}

func TestBonusesApplyToCombat(t *testing.T) {
	f := newFixture(t, 5)
	ctx, c := f.login(t, "ana")
	f.grantXP(t, c.ID, 200)
	f.giveItem(t, c.ID, "shield", true)
	f.giveItem(t, c.ID, "gloves", true)
	f.giveItem(t, c.ID, "potion_power_20", true)

	state, err := f.svc.StartEncounter(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	// No task record, so the shield alone sets the chance.
	if state.HitChance != 10 {
		t.Fatalf("hit chance=%d, want 10", state.HitChance)
	}
	hit, err := f.svc.Attack(ctx, state.Encounter.ID)
	if err != nil {
		t.Fatalf("attack: %v", err)
	}
	if !hit.Hit || hit.Damage != 52 {
		t.Fatalf("attack=%+v", hit)
	}
}

func TestDurabilityWearsAfterEncounters(t *testing.T) {
	f := newFixture(t)
	ctx, c := f.login(t, "ana")
	f.grantXP(t, c.ID, 200)
	sword := f.giveItem(t, c.ID, "sword", true)
	gloves := f.giveItem(t, c.ID, "gloves", true)
	f.giveItem(t, c.ID, "potion_power_20", true)
	f.giveItem(t, c.ID, "boots", false)

	fight := func() *EncounterResult {
		t.Helper()
		state, err := f.svc.StartEncounter(ctx)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		res, err := f.svc.EndEncounter(ctx, state.Encounter.ID)
		if err != nil {
			t.Fatalf("end: %v", err)
		}
		return res
	}

	if res := fight(); res.Destroyed != 1 {
		t.Fatalf("destroyed=%d, want the potion", res.Destroyed)
	}
	e, err := f.store.Equipment.Get(context.Background(), gloves)
	if err != nil || e.Durability != 1 {
		t.Fatalf("gloves=%+v err=%v", e, err)
	}

	f.clock.Advance(time.Minute)
	f.grantXP(t, c.ID, 500)
	if res := fight(); res.Destroyed != 1 {
		t.Fatalf("destroyed=%d, want the gloves", res.Destroyed)
	}

	items, err := f.svc.ListEquipment(ctx, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	codes := make(map[string]storage.Equipment)
	for _, it := range items {
		codes[it.ItemCode] = it
	}
	if len(items) != 2 || codes["sword"].ID != sword || codes["sword"].Durability != Unlimited || codes["boots"].Durability != 2 {
		t.Fatalf("items=%+v", items)
	}
}
