// Package main - buckets.go
//
// Chest visits of the controller: routing carriers when the period
// changes, restoring them after a reconnect, and fetching seeds.
//
// Each visit runs over several ticks:
//  1. Teleport to the home in front of the chest
//  2. Wait for arrival, right-click the chest
//  3. Two-phase wait for a chest panel, then move the items and close it
//
// A chest that does not open is a PanelError; the state restarts the
// visit from the teleport under the normal retry cap.
package main

import (
	"fmt"
)

// chestVisit is one in-flight visit
type chestVisit struct {
	home  string
	apply func(PanelInfo) error
	step  int
}

func (c *BotController) startVisit(home string, apply func(PanelInfo) error) {
	c.visit = &chestVisit{home: home, apply: apply}
}

// runVisit advances the current visit. It returns true once the items
// were moved and the chest closed.
func (c *BotController) runVisit() (bool, error) {
	v := c.visit
	switch v.step {
	case 0:
		c.s.PositionBeforeTeleport = nil
		if c.col.Position != nil {
			if pos, ok := c.col.Position.Position(); ok {
				c.s.PositionBeforeTeleport = &pos
			}
		}
		LogInfo("Going to %s", v.home)
		c.teleportAt = c.now
		c.col.Actuator.TeleportCommand(v.home)
		v.step = 1
	case 1:
		if !c.arrived() {
			return false, nil
		}
		c.col.Actuator.Click(ButtonRight)
		c.panelWait = c.panels.Begin(c.now, IsChestPanel,
			ms(c.cfg.Timing.PanelTimeout), ms(c.cfg.Timing.PanelPoll), ms(c.cfg.Timing.Stabilization))
		v.step = 2
	case 2:
		switch c.panelWait.Poll(c.now) {
		case DispositionPending:
			return false, nil
		case DispositionSuccess:
		default:
			return false, fmt.Errorf("chest panel did not open at %s", v.home)
		}

		err := v.apply(c.panels.Classify())
		c.press(c.cfg.Keys.Escape)
		c.wait(ms(c.cfg.Timing.ActionDelay))
		if err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// onManagingBuckets routes carriers for the period that just began:
// deposit all but one at the drop chest, or withdraw them all from the
// supply chest.
func (c *BotController) onManagingBuckets() {
	if c.visit == nil {
		action := c.schedule.PeriodAction(c.pendingPhase)
		switch {
		case action == CarrierDeposit && c.cfg.Homes.BucketDrop != "":
			c.startVisit(c.cfg.Homes.BucketDrop, func(panel PanelInfo) error {
				n, err := c.ledger.DepositExcessKeepingOne(panel, 1)
				if err != nil {
					return err
				}
				LogInfo("%s: kept one carrier, deposited %d", c.pendingPhase, n)
				return nil
			})
		case action == CarrierWithdraw && c.cfg.Homes.BucketSupply != "":
			home := c.cfg.Homes.BucketSupply
			c.startVisit(home, func(panel PanelInfo) error {
				n := c.ledger.WithdrawAll(panel)
				if n == 0 && c.ledger.Scan(c.tick).Total() == 0 {
					return fmt.Errorf("withdraw at %s: %w", home, ErrCarriersExhausted)
				}
				LogInfo("%s: withdrew %d carriers", c.pendingPhase, n)
				return nil
			})
		default:
			c.finishPeriodChange()
			return
		}
	}

	done, err := c.runVisit()
	if err != nil {
		c.fail(err)
		return
	}
	if done {
		c.finishPeriodChange()
	}
}

func (c *BotController) finishPeriodChange() {
	c.ledger.Invalidate()
	c.record.PreviousPeriod = c.pendingPhase
	c.record.CarrierMode = c.ledger.Scan(c.tick).Total()
	c.persist()
	c.clearError()
	if c.drill.Kind == DrillTransition {
		c.setState(StateDisconnecting)
		return
	}
	c.setState(StateTeleporting)
}

// onRecoveringBuckets re-verifies the carriers after a reconnect and takes
// missing ones back from the supply chest.
func (c *BotController) onRecoveringBuckets() {
	if c.visit == nil {
		c.ledger.Invalidate()
		total := c.ledger.Scan(c.tick).Total()
		expected := c.record.CarrierMode

		if total > 0 && (expected <= 1 || total >= expected) {
			LogInfo("Carriers verified after reconnect (%d)", total)
			c.finishRecovery()
			return
		}
		home := c.cfg.Homes.BucketSupply
		if home == "" {
			if total > 0 {
				c.finishRecovery()
				return
			}
			c.fail(ErrCarriersExhausted)
			return
		}

		LogInfo("Missing carriers after reconnect (%d of %d), restocking", total, expected)
		c.startVisit(home, func(panel PanelInfo) error {
			if c.ledger.WithdrawAll(panel) == 0 && total == 0 {
				return ErrCarriersExhausted
			}
			return nil
		})
	}

	done, err := c.runVisit()
	if err != nil {
		c.fail(err)
		return
	}
	if done {
		c.finishRecovery()
	}
}

func (c *BotController) finishRecovery() {
	c.s.IsCrashReconnectPause = false
	c.s.IsEventPause = false
	c.s.CanReconnectAfterEvent = false
	c.persist()
	c.setState(StateTeleporting)
}

// onFetchingSeeds restocks the seed slot from the seed chest
func (c *BotController) onFetchingSeeds() {
	if c.visit == nil {
		home := c.cfg.Homes.SeedSupply
		kind := c.cfg.Inventory.SeedKind
		c.startVisit(home, func(panel PanelInfo) error {
			if c.ledger.WithdrawKind(panel, kind) == 0 {
				return fmt.Errorf("supply exhausted: no seeds left at %s", home)
			}
			return nil
		})
	}

	done, err := c.runVisit()
	if err != nil {
		c.fail(err)
		return
	}
	if done {
		c.setState(StateTeleporting)
	}
}
