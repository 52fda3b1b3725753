package engine

import (
	"context"
	"sort"
	"time"

	"questguild/internal/storage"
)

type Category string

const (
	CategoryPotion   Category = "potion"
	CategoryClothing Category = "clothing"
	CategoryWeapon   Category = "weapon"
)

type BonusType string

const (
	BonusPower   BonusType = "power"
	BonusSuccess BonusType = "success"
	BonusCoins   BonusType = "coins"
)

// Unlimited durability never wears down.
const Unlimited = -1

// CatalogItem is one kind of equipment. PricePercent is relative to the
// buyer's current base boss reward; zero means the item only drops.
type CatalogItem struct {
	Code         string
	Name         string
	Category     Category
	Bonus        BonusType
	BonusValue   float64
	Durability   int
	PricePercent int
}

func (it CatalogItem) Purchasable() bool { return it.PricePercent > 0 }

func (it CatalogItem) Upgradable() bool { return it.Category == CategoryWeapon }

// Price is the cost of the item for a character who has beaten defeated
// bosses.
func (it CatalogItem) Price(defeated int) int64 {
	return BossReward(defeated) * int64(it.PricePercent) / 100
}

// UpgradePricePercent is the cost of one weapon upgrade, relative to the
// base boss reward.
const UpgradePricePercent = 60

// UpgradeStep is the bonus percent added by one upgrade.
const UpgradeStep = 1.0

var catalog = []CatalogItem{
	{Code: "potion_power_20", Name: "Potion of Power", Category: CategoryPotion, Bonus: BonusPower, BonusValue: 20, Durability: 1, PricePercent: 50},
	{Code: "potion_power_40", Name: "Greater Potion of Power", Category: CategoryPotion, Bonus: BonusPower, BonusValue: 40, Durability: 1, PricePercent: 70},
	{Code: "potion_power_5p", Name: "Elixir of Strength", Category: CategoryPotion, Bonus: BonusPower, BonusValue: 5, Durability: Unlimited, PricePercent: 200},
	{Code: "potion_power_10p", Name: "Greater Elixir of Strength", Category: CategoryPotion, Bonus: BonusPower, BonusValue: 10, Durability: Unlimited, PricePercent: 1000},
	{Code: "gloves", Name: "Gloves", Category: CategoryClothing, Bonus: BonusPower, BonusValue: 10, Durability: 2, PricePercent: 60},
	{Code: "shield", Name: "Shield", Category: CategoryClothing, Bonus: BonusSuccess, BonusValue: 10, Durability: 2, PricePercent: 60},
	{Code: "boots", Name: "Boots", Category: CategoryClothing, Bonus: BonusCoins, BonusValue: 10, Durability: 2, PricePercent: 80},
	{Code: "sword", Name: "Sword", Category: CategoryWeapon, Bonus: BonusPower, BonusValue: 5, Durability: Unlimited},
	{Code: "bow", Name: "Bow", Category: CategoryWeapon, Bonus: BonusCoins, BonusValue: 5, Durability: Unlimited},
}

var catalogByCode = func() map[string]CatalogItem {
	m := make(map[string]CatalogItem, len(catalog))
	for _, it := range catalog {
		m[it.Code] = it
	}
	return m
}()

// LookupItem finds a catalog entry by code.
func LookupItem(code string) (CatalogItem, bool) {
	it, ok := catalogByCode[normalizeToken(code)]
	return it, ok
}

// Catalog returns every item, purchasable ones first.
func Catalog() []CatalogItem {
	out := make([]CatalogItem, len(catalog))
	copy(out, catalog)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Purchasable() && !out[j].Purchasable()
	})
	return out
}

// itemsIn lists the items of one category in catalog order.
func itemsIn(c Category) []CatalogItem {
	var out []CatalogItem
	for _, it := range catalog {
		if it.Category == c {
			out = append(out, it)
		}
	}
	return out
}

func newEquipment(characterID int64, it CatalogItem, now time.Time) storage.Equipment {
	return storage.Equipment{
		CharacterID: characterID,
		ItemCode:    it.Code,
		Category:    string(it.Category),
		BonusType:   string(it.Bonus),
		BonusValue:  it.BonusValue,
		Durability:  it.Durability,
		AcquiredAt:  now,
	}
}

// Bonuses are the summed percent bonuses of a character's active equipment.
type Bonuses struct {
	Power   float64
	Success float64
	Coins   float64
}

func SumBonuses(items []storage.Equipment) Bonuses {
	var b Bonuses
	for _, e := range items {
		if !e.Active {
			continue
		}
		switch BonusType(e.BonusType) {
		case BonusPower:
			b.Power += e.BonusValue
		case BonusSuccess:
			b.Success += e.BonusValue
		case BonusCoins:
			b.Coins += e.BonusValue
		}
	}
	return b
}

func activeBonuses(ctx context.Context, r *storage.Repos, characterID int64) (Bonuses, error) {
	items, err := r.Equipment.ListByCharacter(ctx, characterID, true)
	if err != nil {
		return Bonuses{}, err
	}
	return SumBonuses(items), nil
}
