package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

// Claim retry bounds.  Inside one transaction every remaining candidate is
// tried; when all of them were lost to concurrent bookings the whole
// transaction is retried with a fresh snapshot.
const (
	claimMaxAttempts     = 4
	claimInitialInterval = 20 * time.Millisecond
)

// SlotAllocator finds free slots and claims them.  It holds no state of its
// own; every method works on the SlotStore it is handed so that callers can
// pass a transaction-bound store.
type SlotAllocator struct {
	log *zap.Logger
}

func NewSlotAllocator(log *zap.Logger) *SlotAllocator {
	return &SlotAllocator{log: log}
}

// FindCandidates returns the free slots of the vehicle class for w, ordered
// by slot code.  It fails with ErrNoSlotsConfigured when the area has no
// slot of that class and with ErrNoSlotsAvailable when all are taken.
func (a *SlotAllocator) FindCandidates(ctx context.Context, slots repository.SlotStore, areaID, vehicleTypeID uint64, w model.Window) ([]uint64, error) {
	total, err := slots.CountSlots(ctx, areaID, vehicleTypeID)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, ErrNoSlotsConfigured
	}
	ids, err := slots.FreeSlots(ctx, areaID, vehicleTypeID, w)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoSlotsAvailable
	}
	return ids, nil
}

// ClaimFirst claims the first candidate that is still free, walking forward.
func (a *SlotAllocator) ClaimFirst(ctx context.Context, slots repository.SlotStore, candidates []uint64, reservationID string, w model.Window, occupied bool) (uint64, error) {
	return a.claimInOrder(ctx, slots, candidates, reservationID, w, occupied, false)
}

// ClaimLast claims the last candidate that is still free, walking backward.
// Slot changes use this so a moved vehicle lands away from new arrivals.
func (a *SlotAllocator) ClaimLast(ctx context.Context, slots repository.SlotStore, candidates []uint64, reservationID string, w model.Window, occupied bool) (uint64, error) {
	return a.claimInOrder(ctx, slots, candidates, reservationID, w, occupied, true)
}

func (a *SlotAllocator) claimInOrder(ctx context.Context, slots repository.SlotStore, candidates []uint64, reservationID string, w model.Window, occupied, reverse bool) (uint64, error) {
	for i := range candidates {
		slotID := candidates[i]
		if reverse {
			slotID = candidates[len(candidates)-1-i]
		}
		err := slots.Claim(ctx, slotID, reservationID, w, occupied)
		switch {
		case err == nil:
			return slotID, nil
		case errors.Is(err, repository.ErrConflict), errors.Is(err, repository.ErrNotFound):
			a.log.Debug("slot claim lost", zap.Uint64("slot_id", slotID), zap.String("reservation_id", reservationID))
			continue
		default:
			return 0, fmt.Errorf("claim slot %d: %w", slotID, err)
		}
	}
	return 0, ErrSlotConflict
}

// Release drops the reservation's claim.  Releasing a free slot is a no-op.
func (a *SlotAllocator) Release(ctx context.Context, slots repository.SlotStore, slotID uint64, reservationID string) error {
	if err := slots.Release(ctx, slotID, reservationID); err != nil {
		return fmt.Errorf("release slot %d: %w", slotID, err)
	}
	return nil
}

// Availability reports free capacity without claiming anything.
func (a *SlotAllocator) Availability(ctx context.Context, slots repository.SlotStore, areaID, vehicleTypeID uint64, w model.Window) (model.SlotAvailability, error) {
	out := model.SlotAvailability{ParkingAreaID: areaID, VehicleTypeID: vehicleTypeID, FreeSlotIDs: []uint64{}}
	total, err := slots.CountSlots(ctx, areaID, vehicleTypeID)
	if err != nil {
		return out, err
	}
	out.Total = total
	if total == 0 {
		return out, nil
	}
	ids, err := slots.FreeSlots(ctx, areaID, vehicleTypeID, w)
	if err != nil {
		return out, err
	}
	out.Free = len(ids)
	out.FreeSlotIDs = ids
	return out, nil
}

// RetryOnConflict runs op until it stops failing with ErrSlotConflict or
// the attempts run out.  Any other error ends the loop immediately.
func (a *SlotAllocator) RetryOnConflict(ctx context.Context, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = claimInitialInterval
	eb.MaxInterval = 8 * claimInitialInterval
	b := backoff.WithContext(backoff.WithMaxRetries(eb, claimMaxAttempts-1), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrSlotConflict) {
			a.log.Info("slot claim conflict, retrying", zap.Int("attempt", attempt))
			return err
		}
		return backoff.Permanent(err)
	}, b)
}
