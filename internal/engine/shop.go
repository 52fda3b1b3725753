package engine

import (
	"context"

	"questguild/internal/apperr"
	"questguild/internal/remote"
	"questguild/internal/storage"
)

type PurchaseResult struct {
	Item      CatalogItem
	Equipment *storage.Equipment
	Price     int64
	Coins     int64 // balance after the purchase
}

type UpgradeResult struct {
	Equipment *storage.Equipment
	Price     int64
	Coins     int64
}

type PricedItem struct {
	CatalogItem
	Price int64 // zero for drop-only items
}

// ShopCatalog lists the catalog with prices for the caller.
func (s *Service) ShopCatalog(ctx context.Context) (items []PricedItem, err error) {
	ctx, span := startSpan(ctx, "ShopCatalog")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	defeated, err := s.store.Bosses.CountDefeated(ctx, c.ID)
	if err != nil {
		return nil, apperr.Store("count defeated", err)
	}
	for _, it := range Catalog() {
		p := PricedItem{CatalogItem: it}
		if it.Purchasable() {
			p.Price = it.Price(defeated)
		}
		items = append(items, p)
	}
	return items, nil
}

// Purchase buys one catalog item. The debit is a single conditional update;
// if the item cannot be stored afterwards the coins are refunded.
func (s *Service) Purchase(ctx context.Context, code string) (res *PurchaseResult, err error) {
	ctx, span := startSpan(ctx, "Purchase")
	defer func() { endSpan(span, err) }()

	item, ok := LookupItem(code)
	if !ok {
		return nil, apperr.WithMetadata(apperr.CodeEquipmentUnknownItem, "unknown item "+code, map[string]string{"item": code})
	}
	if !item.Purchasable() {
		return nil, apperr.WithMetadata(apperr.CodeEquipmentNotPurchasable, item.Name+" cannot be bought", map[string]string{"item": item.Code})
	}
	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.lockCharacter(c.ID)
	defer unlock()

	defeated, err := s.store.Bosses.CountDefeated(ctx, c.ID)
	if err != nil {
		return nil, apperr.Store("count defeated", err)
	}
	price := item.Price(defeated)
	if err := s.debit(ctx, c.ID, price); err != nil {
		return nil, err
	}

	now := s.clock()
	row := newEquipment(c.ID, item, now)
	id, err := s.store.Equipment.Insert(ctx, row)
	if err != nil {
		s.refund(ctx, c.ID, price)
		return nil, apperr.Store("purchase", err)
	}
	row.ID = id

	after, err := s.store.Characters.Get(ctx, c.ID)
	if err != nil {
		return nil, apperr.Store("character get", err)
	}
	res = &PurchaseResult{Item: item, Equipment: &row, Price: price}
	if after != nil {
		res.Coins = after.Coins
	}

	s.publish(ctx, remote.NewRecord(remote.KindEquipmentUpdated, id, c.ID, row, now))
	s.contributeAfterCommit(ctx, c.ID, ContributionShopPurchase)
	return res, nil
}

// Upgrade adds one bonus step to a weapon.
func (s *Service) Upgrade(ctx context.Context, equipmentID int64) (res *UpgradeResult, err error) {
	ctx, span := startSpan(ctx, "Upgrade")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.lockCharacter(c.ID)
	defer unlock()

	e, err := ownedEquipment(ctx, s.store.Repos, equipmentID, c.ID)
	if err != nil {
		return nil, apperr.Store("equipment get", err)
	}
	if item, ok := LookupItem(e.ItemCode); !ok || !item.Upgradable() {
		return nil, apperr.WithMetadata(apperr.CodeEquipmentNotUpgradable, "only weapons can be upgraded", idMeta("equipment_id", e.ID))
	}

	defeated, err := s.store.Bosses.CountDefeated(ctx, c.ID)
	if err != nil {
		return nil, apperr.Store("count defeated", err)
	}
	price := BossReward(defeated) * UpgradePricePercent / 100
	if err := s.debit(ctx, c.ID, price); err != nil {
		return nil, err
	}
	if err := s.store.Equipment.AddBonus(ctx, e.ID, UpgradeStep); err != nil {
		s.refund(ctx, c.ID, price)
		return nil, apperr.Store("upgrade", err)
	}

	e, err = s.store.Equipment.Get(ctx, e.ID)
	if err != nil {
		return nil, apperr.Store("equipment get", err)
	}
	after, err := s.store.Characters.Get(ctx, c.ID)
	if err != nil {
		return nil, apperr.Store("character get", err)
	}
	res = &UpgradeResult{Equipment: e, Price: price}
	if after != nil {
		res.Coins = after.Coins
	}
	s.publish(ctx, remote.NewRecord(remote.KindEquipmentUpdated, e.ID, c.ID, e, s.clock()))
	return res, nil
}

func (s *Service) Activate(ctx context.Context, equipmentID int64) (*storage.Equipment, error) {
	return s.setActive(ctx, "Activate", equipmentID, true)
}

func (s *Service) Deactivate(ctx context.Context, equipmentID int64) (*storage.Equipment, error) {
	return s.setActive(ctx, "Deactivate", equipmentID, false)
}

func (s *Service) setActive(ctx context.Context, op string, equipmentID int64, active bool) (e *storage.Equipment, err error) {
	ctx, span := startSpan(ctx, op)
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	unlock := s.lockCharacter(c.ID)
	defer unlock()

	err = s.store.InTx(ctx, func(r *storage.Repos) error {
		e, err = ownedEquipment(ctx, r, equipmentID, c.ID)
		if err != nil {
			return err
		}
		if e.Active == active {
			return nil
		}
		if err := r.Equipment.SetActive(ctx, e.ID, active); err != nil {
			return err
		}
		e.Active = active
		return nil
	})
	if err != nil {
		return nil, apperr.Store("equipment set active", err)
	}
	s.publish(ctx, remote.NewRecord(remote.KindEquipmentUpdated, e.ID, c.ID, e, s.clock()))
	return e, nil
}

// ListEquipment returns the caller's inventory.
func (s *Service) ListEquipment(ctx context.Context, activeOnly bool) (items []storage.Equipment, err error) {
	ctx, span := startSpan(ctx, "ListEquipment")
	defer func() { endSpan(span, err) }()

	c, err := s.currentCharacter(ctx)
	if err != nil {
		return nil, err
	}
	items, err = s.store.Equipment.ListByCharacter(ctx, c.ID, activeOnly)
	if err != nil {
		return nil, apperr.Store("list equipment", err)
	}
	return items, nil
}

func ownedEquipment(ctx context.Context, r *storage.Repos, id, characterID int64) (*storage.Equipment, error) {
	e, err := r.Equipment.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, apperr.WithMetadata(apperr.CodeEquipmentNotFound, "equipment not found", idMeta("equipment_id", id))
	}
	if e.CharacterID != characterID {
		return nil, apperr.WithMetadata(apperr.CodeEquipmentNotOwned, "equipment belongs to another character", idMeta("equipment_id", id))
	}
	return e, nil
}

// debit takes price coins or fails with INSUFFICIENT_COINS.
func (s *Service) debit(ctx context.Context, characterID, price int64) error {
	ok, err := s.store.Characters.DebitCoins(ctx, characterID, price)
	if err != nil {
		return apperr.Store("debit coins", err)
	}
	if ok {
		return nil
	}
	var balance int64
	if c, err := s.store.Characters.Get(ctx, characterID); err == nil && c != nil {
		balance = c.Coins
	}
	return insufficientCoins(price, balance)
}

func (s *Service) refund(ctx context.Context, characterID, amount int64) {
	if err := s.store.Characters.AddCoins(ctx, characterID, amount); err != nil {
		s.logger.Printf("engine refund %d coins to character %d: %v", amount, characterID, err)
	}
}
