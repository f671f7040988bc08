package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/parking-reservation/internal/billing"
	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

// CreateReservationRequest is the validated input of a booking.
type CreateReservationRequest struct {
	Kind          model.ReservationKind
	ParkingAreaID uint64
	VehicleTypeID uint64
	UserID        uint64
	CreatedBy     uint64
	VehicleNo     string
	Mobile        string
	StartAt       *time.Time // defaults to now
	EndAt         *time.Time
	IsParked      bool
}

// ReservationService owns the reservation lifecycle: it claims slots through
// the SlotAllocator, applies status transitions and keeps slot bindings in
// step with them.
type ReservationService struct {
	store    repository.Store
	catalog  CatalogReader
	users    UserReader
	alloc    *SlotAllocator
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewReservationService(
	store repository.Store,
	catalog CatalogReader,
	users UserReader,
	alloc *SlotAllocator,
	notifier Notifier,
	log *zap.Logger,
) *ReservationService {
	return &ReservationService{
		store:    store,
		catalog:  catalog,
		users:    users,
		alloc:    alloc,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func (req *CreateReservationRequest) validate(now time.Time) error {
	switch req.Kind {
	case model.ReservationKindPreBooking:
		if req.IsParked {
			return validationErr("a pre-booking cannot be created as parked")
		}
	case model.ReservationKindOnSpot:
	default:
		return validationErr("unknown reservation kind %q", req.Kind)
	}
	if req.ParkingAreaID == 0 || req.VehicleTypeID == 0 || req.UserID == 0 {
		return validationErr("parking_area_id, vehicle_type_id and user_id are required")
	}
	req.VehicleNo = model.NormalizeVehicleNo(req.VehicleNo)
	if req.VehicleNo == "" {
		return validationErr("vehicle_no is required")
	}
	req.Mobile = strings.TrimSpace(req.Mobile)
	if req.StartAt == nil {
		start := now
		req.StartAt = &start
	}
	if req.EndAt != nil && !req.EndAt.After(*req.StartAt) {
		return validationErr("end_at must be after start_at")
	}
	if req.CreatedBy == 0 {
		req.CreatedBy = req.UserID
	}
	return nil
}

// Create books a slot for the request.  The duplicate-booking guard, the
// slot claim and the insert run in one transaction, retried as a whole when
// every candidate slot was lost to concurrent bookings.
func (s *ReservationService) Create(ctx context.Context, req CreateReservationRequest) (*model.Reservation, error) {
	now := s.now()
	if err := req.validate(now); err != nil {
		return nil, err
	}

	area, err := s.catalog.GetParkingArea(ctx, req.ParkingAreaID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !area.IsActive) {
		return nil, ErrParkingAreaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load parking area: %w", err)
	}
	if _, err := s.catalog.GetVehicleType(ctx, req.VehicleTypeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVehicleTypeNotFound
		}
		return nil, fmt.Errorf("load vehicle type: %w", err)
	}
	rate, err := s.catalog.GetAreaRate(ctx, req.ParkingAreaID, req.VehicleTypeID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: no hourly rate set", ErrNoSlotsConfigured)
	}
	if err != nil {
		return nil, fmt.Errorf("load area rate: %w", err)
	}

	if req.Mobile == "" {
		u, err := s.users.GetByID(ctx, req.UserID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load user: %w", err)
		}
		req.Mobile = u.Mobile
	}

	res := &model.Reservation{
		ID:              uuid.NewString(),
		ParkingAreaID:   req.ParkingAreaID,
		UserID:          req.UserID,
		VehicleTypeID:   req.VehicleTypeID,
		CreatedBy:       req.CreatedBy,
		Kind:            req.Kind,
		HourlyRateCents: rate.HourlyRateCents,
		VehicleNo:       req.VehicleNo,
		Mobile:          req.Mobile,
		StartAt:         req.StartAt.UTC(),
		EndAt:           req.EndAt,
		Status:          model.ReservationStatusPending,
		PaymentStatus:   model.PaymentStatusPending,
		PaymentIDs:      []string{},
		IsParked:        req.IsParked,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.alloc.RetryOnConflict(ctx, func() error {
		return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
			if err := s.guardActive(ctx, tx, res.VehicleNo, now); err != nil {
				return err
			}
			candidates, err := s.alloc.FindCandidates(ctx, tx.Slots(), res.ParkingAreaID, res.VehicleTypeID, res.Window())
			if err != nil {
				return err
			}
			slotID, err := s.alloc.ClaimFirst(ctx, tx.Slots(), candidates, res.ID, res.Window(), res.IsParked)
			if err != nil {
				return err
			}
			res.SlotID = slotID
			if err := tx.Reservations().Insert(ctx, res); err != nil {
				return fmt.Errorf("insert reservation: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("reservation created",
		zap.String("reservation_id", res.ID),
		zap.Uint64("slot_id", res.SlotID),
		zap.String("kind", string(res.Kind)),
		zap.String("vehicle_no", res.VehicleNo),
	)
	s.notify(ctx, res.UserID, TemplateBookingCreated, map[string]any{
		"reservation_id": res.ID,
		"slot_id":        res.SlotID,
		"start_at":       res.StartAt,
		"vehicle_no":     res.VehicleNo,
	})
	return res, nil
}

func (s *ReservationService) guardActive(ctx context.Context, tx repository.Store, vehicleNo string, now time.Time) error {
	existing, err := tx.Reservations().FindActiveByVehicle(ctx, vehicleNo, now)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check active reservation: %w", err)
	}
	return fmt.Errorf("%w: %s", ErrActiveReservationExists, existing.ID)
}

// load fetches a reservation with its payment ids.  Soft-deleted rows are
// returned so callers can decide how to treat them.
func (s *ReservationService) load(ctx context.Context, st repository.Store, id string) (*model.Reservation, error) {
	res, err := st.Reservations().Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load reservation: %w", err)
	}
	payments, err := st.Payments().ListByReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	res.PaymentIDs = make([]string, 0, len(payments))
	for _, p := range payments {
		res.PaymentIDs = append(res.PaymentIDs, p.ID)
	}
	return res, nil
}

// loadLive is load for mutations: deleted reservations are rejected.
func (s *ReservationService) loadLive(ctx context.Context, st repository.Store, id string) (*model.Reservation, error) {
	res, err := s.load(ctx, st, id)
	if err != nil {
		return nil, err
	}
	if res.IsDeleted {
		return nil, ErrReservationDeleted
	}
	return res, nil
}

// Get returns a reservation; deleted ones are reported as not found.
func (s *ReservationService) Get(ctx context.Context, id string) (*model.Reservation, error) {
	res, err := s.load(ctx, s.store, id)
	if err != nil {
		return nil, err
	}
	if res.IsDeleted {
		return nil, ErrReservationNotFound
	}
	return res, nil
}

// List returns a page of reservations matching f and the total count.
func (s *ReservationService) List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, int64, error) {
	if err := f.Normalize(); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return s.store.Reservations().List(ctx, f)
}

// FindActiveByVehicle looks up the plate's active reservation.
func (s *ReservationService) FindActiveByVehicle(ctx context.Context, vehicleNo string) (*model.Reservation, error) {
	plate := model.NormalizeVehicleNo(vehicleNo)
	if plate == "" {
		return nil, validationErr("vehicle_no is required")
	}
	res, err := s.store.Reservations().FindActiveByVehicle(ctx, plate, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrReservationNotFound
	}
	return res, err
}

// Update edits contact and parking details of an active reservation.
// Toggling is_parked also marks or frees the slot.
func (s *ReservationService) Update(ctx context.Context, id string, p model.ReservationPatch) (*model.Reservation, error) {
	if p.Empty() {
		return nil, validationErr("nothing to update")
	}
	if p.VehicleNo != nil {
		plate := model.NormalizeVehicleNo(*p.VehicleNo)
		if plate == "" {
			return nil, validationErr("vehicle_no cannot be empty")
		}
		p.VehicleNo = &plate
	}
	var out *model.Reservation
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		res, err := s.loadLive(ctx, tx, id)
		if err != nil {
			return err
		}
		if !res.Status.IsActive() {
			return fmt.Errorf("%w: %s reservations cannot be edited", ErrInvalidTransition, strings.ToLower(string(res.Status)))
		}
		if err := tx.Reservations().UpdateDetails(ctx, id, p); err != nil {
			return err
		}
		if p.IsParked != nil && *p.IsParked != res.IsParked {
			if err := tx.Slots().SetOccupant(ctx, res.SlotID, res.ID, *p.IsParked); err != nil {
				return err
			}
		}
		out, err = s.load(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Cancel releases the slot and marks the reservation cancelled.
func (s *ReservationService) Cancel(ctx context.Context, id string) (*model.Reservation, error) {
	var out *model.Reservation
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		res, err := s.loadLive(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := res.Status.Transition(model.EventCancel)
		if err != nil {
			return err
		}
		if err := s.alloc.Release(ctx, tx.Slots(), res.SlotID, res.ID); err != nil {
			return err
		}
		if err := s.applyStatus(ctx, tx, res, next); err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("reservation cancelled", zap.String("reservation_id", id), zap.Uint64("slot_id", out.SlotID))
	s.notify(ctx, out.UserID, TemplateReservationCancelled, map[string]any{"reservation_id": out.ID})
	return out, nil
}

func (s *ReservationService) applyStatus(ctx context.Context, tx repository.Store, res *model.Reservation, next model.ReservationStatus) error {
	if err := tx.Reservations().UpdateStatus(ctx, res.ID, res.Status, next); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrConcurrentUpdate
		}
		return err
	}
	res.Status = next
	return nil
}

// Complete checks the paid total against the elapsed charge and, when they
// are exactly equal, finalizes the reservation and frees its slot.
func (s *ReservationService) Complete(ctx context.Context, id string) (*model.Reservation, error) {
	now := s.now()
	var out *model.Reservation
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		res, err := s.loadLive(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := res.Status.Transition(model.EventComplete)
		if err != nil {
			return err
		}
		payments, err := tx.Payments().ListByReservation(ctx, id)
		if err != nil {
			return err
		}
		paid := billing.PaidTotal(payments)
		due := billing.ElapsedAmount(res.StartAt, now, res.HourlyRateCents)
		if paid != due {
			return fmt.Errorf("%w: paid %d, calculated %d", ErrAmountMismatch, paid, due)
		}
		if err := s.alloc.Release(ctx, tx.Slots(), res.SlotID, res.ID); err != nil {
			return err
		}
		if err := tx.Reservations().Complete(ctx, id, res.Status, now, paid); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrConcurrentUpdate
			}
			return err
		}
		res.Status = next
		res.PaymentStatus = model.PaymentStatusPaid
		res.EndAt = &now
		res.TotalAmountCents = &paid
		res.IsParked = false
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("reservation completed",
		zap.String("reservation_id", id),
		zap.Int64("total_amount_cents", *out.TotalAmountCents),
	)
	s.notify(ctx, out.UserID, TemplateReservationCompleted, map[string]any{
		"reservation_id":     out.ID,
		"total_amount_cents": *out.TotalAmountCents,
	})
	return out, nil
}

// ChangeSlot moves an active reservation to another free slot of the same
// class.  The new claim, the slot reference update and the release of the
// old slot commit together.
func (s *ReservationService) ChangeSlot(ctx context.Context, id string) (*model.Reservation, error) {
	var out *model.Reservation
	var oldSlot uint64
	err := s.alloc.RetryOnConflict(ctx, func() error {
		return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
			res, err := s.loadLive(ctx, tx, id)
			if err != nil {
				return err
			}
			if !res.Status.IsActive() {
				return fmt.Errorf("%w: cannot move a %s reservation", ErrInvalidTransition, strings.ToLower(string(res.Status)))
			}
			candidates, err := s.alloc.FindCandidates(ctx, tx.Slots(), res.ParkingAreaID, res.VehicleTypeID, res.Window())
			if err != nil {
				return err
			}
			newSlot, err := s.alloc.ClaimLast(ctx, tx.Slots(), candidates, res.ID, res.Window(), true)
			if err != nil {
				return err
			}
			if err := tx.Reservations().MoveSlot(ctx, res.ID, res.SlotID, newSlot); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return ErrConcurrentUpdate
				}
				return err
			}
			if err := s.alloc.Release(ctx, tx.Slots(), res.SlotID, res.ID); err != nil {
				return err
			}
			oldSlot = res.SlotID
			res.SlotID = newSlot
			out = res
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("reservation slot changed",
		zap.String("reservation_id", id),
		zap.Uint64("from_slot_id", oldSlot),
		zap.Uint64("to_slot_id", out.SlotID),
	)
	s.notify(ctx, out.UserID, TemplateSlotChanged, map[string]any{"reservation_id": out.ID, "slot_id": out.SlotID})
	return out, nil
}

// UpdatePaymentStatus is the administrative override of the payment status.
// It does not consult the transition table.
func (s *ReservationService) UpdatePaymentStatus(ctx context.Context, id, status string) (*model.Reservation, error) {
	ps, err := model.ParsePaymentStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	var out *model.Reservation
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		res, err := s.loadLive(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := tx.Reservations().SetPaymentStatus(ctx, id, ps); err != nil {
			return err
		}
		res.PaymentStatus = ps
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Warn("payment status overridden", zap.String("reservation_id", id), zap.String("payment_status", string(ps)))
	return out, nil
}

// Quote previews the amount owed if the reservation were completed now.
func (s *ReservationService) Quote(ctx context.Context, id string) (billing.Quote, error) {
	res, err := s.Get(ctx, id)
	if err != nil {
		return billing.Quote{}, err
	}
	payments, err := s.store.Payments().ListByReservation(ctx, id)
	if err != nil {
		return billing.Quote{}, err
	}
	return billing.NewQuote(*res, payments, s.now()), nil
}

// Delete soft-deletes a reservation.  An active one is cancelled first so
// its slot is freed.
func (s *ReservationService) Delete(ctx context.Context, id string) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Store) error {
		res, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if res.IsDeleted {
			return nil
		}
		if res.Status.IsActive() {
			next, err := res.Status.Transition(model.EventCancel)
			if err != nil {
				return err
			}
			if err := s.alloc.Release(ctx, tx.Slots(), res.SlotID, res.ID); err != nil {
				return err
			}
			if err := s.applyStatus(ctx, tx, res, next); err != nil {
				return err
			}
		}
		return tx.Reservations().SoftDelete(ctx, id)
	})
}

// Availability reports free slots of a class in an area for a window.
func (s *ReservationService) Availability(ctx context.Context, areaID, vehicleTypeID uint64, w model.Window) (model.SlotAvailability, error) {
	if areaID == 0 || vehicleTypeID == 0 {
		return model.SlotAvailability{}, validationErr("parking area and vehicle type are required")
	}
	if w.End != nil && !w.End.After(w.Start) {
		return model.SlotAvailability{}, validationErr("end must be after start")
	}
	return s.alloc.Availability(ctx, s.store.Slots(), areaID, vehicleTypeID, w)
}

// notify sends in the background; the request context may already be done
// by the time the broker answers.
func (s *ReservationService) notify(ctx context.Context, userID uint64, template string, data map[string]any) {
	sendNotification(ctx, s.notifier, s.log, userID, template, data)
}

func sendNotification(ctx context.Context, n Notifier, log *zap.Logger, userID uint64, template string, data map[string]any) {
	if n == nil {
		return
	}
	go func(ctx context.Context) {
		if err := n.Notify(ctx, userID, template, data); err != nil {
			log.Warn("notification failed",
				zap.Uint64("user_id", userID),
				zap.String("template", template),
				zap.Error(err),
			)
		}
	}(context.WithoutCancel(ctx))
}
