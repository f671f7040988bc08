package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

// memState is the committed data of memStore.  Transactions work on a clone
// and swap it in on success.
type memState struct {
	slots        map[uint64]model.Slot
	claims       []model.SlotClaim
	reservations map[string]model.Reservation
	payments     map[string]model.PaymentRecord
	paymentOrder []string
}

func newMemState() *memState {
	return &memState{
		slots:        map[uint64]model.Slot{},
		reservations: map[string]model.Reservation{},
		payments:     map[string]model.PaymentRecord{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.slots {
		c.slots[k] = v
	}
	c.claims = append([]model.SlotClaim(nil), s.claims...)
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	c.paymentOrder = append([]string(nil), s.paymentOrder...)
	return c
}

// memHooks injects failures.
type memHooks struct {
	mu                  sync.Mutex
	claimFailures       map[uint64]int // remaining forced conflicts per slot
	claimCalls          int
	failMoveSlot        error
	failSetPaymentState error
}

func (h *memHooks) forcedConflict(slotID uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.claimCalls++
	if h.claimFailures[slotID] > 0 {
		h.claimFailures[slotID]--
		return true
	}
	return false
}

func (h *memHooks) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.claimCalls
}

type memStore struct {
	mu    *sync.Mutex
	state *memState
	inTx  bool
	hooks *memHooks
}

func newMemStore() *memStore {
	return &memStore{mu: &sync.Mutex{}, state: newMemState(), hooks: &memHooks{claimFailures: map[uint64]int{}}}
}

func (m *memStore) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *memStore) Slots() repository.SlotStore               { return memSlots{m} }
func (m *memStore) Reservations() repository.ReservationStore { return memReservations{m} }
func (m *memStore) Payments() repository.PaymentStore         { return memPayments{m} }

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if m.inTx {
		return fn(ctx, m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	work := &memStore{mu: m.mu, state: m.state.clone(), inTx: true, hooks: m.hooks}
	if err := fn(ctx, work); err != nil {
		return err
	}
	m.state = work.state
	return nil
}

func (m *memStore) addSlot(s model.Slot) {
	s.IsActive = true
	m.state.slots[s.ID] = s
}

func (m *memStore) openClaims(slotID uint64) []model.SlotClaim {
	defer m.lock()()
	var out []model.SlotClaim
	for _, c := range m.state.claims {
		if c.SlotID == slotID && c.ReleasedAt == nil {
			out = append(out, c)
		}
	}
	return out
}

func (m *memStore) slot(id uint64) model.Slot {
	defer m.lock()()
	return m.state.slots[id]
}

func (m *memStore) paymentsOf(reservationID string) []model.PaymentRecord {
	defer m.lock()()
	var out []model.PaymentRecord
	for _, id := range m.state.paymentOrder {
		if p := m.state.payments[id]; p.ReservationID == reservationID {
			out = append(out, p)
		}
	}
	return out
}

func (m *memStore) reservation(id string) model.Reservation {
	defer m.lock()()
	return m.state.reservations[id]
}

type memSlots struct{ m *memStore }

func (s memSlots) CountSlots(_ context.Context, areaID, vehicleTypeID uint64) (int, error) {
	defer s.m.lock()()
	n := 0
	for _, sl := range s.m.state.slots {
		if sl.ParkingAreaID == areaID && sl.VehicleTypeID == vehicleTypeID && sl.IsActive {
			n++
		}
	}
	return n, nil
}

func (s memSlots) overlapping(slotID uint64, w model.Window) bool {
	for _, c := range s.m.state.claims {
		if c.SlotID == slotID && c.ReleasedAt == nil && c.Window().Overlaps(w) {
			return true
		}
	}
	return false
}

func (s memSlots) FreeSlots(_ context.Context, areaID, vehicleTypeID uint64, w model.Window) ([]uint64, error) {
	defer s.m.lock()()
	var free []model.Slot
	for _, sl := range s.m.state.slots {
		if sl.ParkingAreaID == areaID && sl.VehicleTypeID == vehicleTypeID && sl.IsActive && !s.overlapping(sl.ID, w) {
			free = append(free, sl)
		}
	}
	sort.Slice(free, func(i, j int) bool {
		if free[i].Code != free[j].Code {
			return free[i].Code < free[j].Code
		}
		return free[i].ID < free[j].ID
	})
	ids := make([]uint64, 0, len(free))
	for _, sl := range free {
		ids = append(ids, sl.ID)
	}
	return ids, nil
}

func (s memSlots) Claim(_ context.Context, slotID uint64, reservationID string, w model.Window, occupied bool) error {
	defer s.m.lock()()
	if s.m.hooks.forcedConflict(slotID) {
		return repository.ErrConflict
	}
	sl, ok := s.m.state.slots[slotID]
	if !ok || !sl.IsActive {
		return repository.ErrNotFound
	}
	if s.overlapping(slotID, w) {
		return repository.ErrConflict
	}
	sl.ClaimVersion++
	if occupied {
		id := reservationID
		sl.OccupiedBy = &id
	}
	s.m.state.slots[slotID] = sl
	s.m.state.claims = append(s.m.state.claims, model.SlotClaim{
		ID: uint64(len(s.m.state.claims) + 1), SlotID: slotID, ReservationID: reservationID,
		StartAt: w.Start, EndAt: w.End,
	})
	return nil
}

func (s memSlots) Release(_ context.Context, slotID uint64, reservationID string) error {
	defer s.m.lock()()
	now := time.Now()
	for i, c := range s.m.state.claims {
		if c.SlotID == slotID && c.ReservationID == reservationID && c.ReleasedAt == nil {
			s.m.state.claims[i].ReleasedAt = &now
		}
	}
	if sl, ok := s.m.state.slots[slotID]; ok && sl.OccupiedBy != nil && *sl.OccupiedBy == reservationID {
		sl.OccupiedBy = nil
		s.m.state.slots[slotID] = sl
	}
	return nil
}

func (s memSlots) SetOccupant(_ context.Context, slotID uint64, reservationID string, parked bool) error {
	defer s.m.lock()()
	sl := s.m.state.slots[slotID]
	if parked {
		id := reservationID
		sl.OccupiedBy = &id
	} else if sl.OccupiedBy != nil && *sl.OccupiedBy == reservationID {
		sl.OccupiedBy = nil
	}
	s.m.state.slots[slotID] = sl
	return nil
}

type memReservations struct{ m *memStore }

func (r memReservations) Insert(_ context.Context, res *model.Reservation) error {
	defer r.m.lock()()
	if _, ok := r.m.state.reservations[res.ID]; ok {
		return repository.ErrDuplicate
	}
	cp := *res
	cp.PaymentIDs = nil
	r.m.state.reservations[res.ID] = cp
	return nil
}

func (r memReservations) Get(_ context.Context, id string) (*model.Reservation, error) {
	defer r.m.lock()()
	res, ok := r.m.state.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &res, nil
}

func (r memReservations) List(_ context.Context, f model.ReservationFilter) ([]model.Reservation, int64, error) {
	defer r.m.lock()()
	var all []model.Reservation
	for _, res := range r.m.state.reservations {
		switch {
		case res.IsDeleted,
			f.UserID != nil && res.UserID != *f.UserID,
			f.ParkingAreaID != nil && res.ParkingAreaID != *f.ParkingAreaID,
			f.SlotID != nil && res.SlotID != *f.SlotID,
			f.Status != nil && res.Status != *f.Status,
			f.PaymentStatus != nil && res.PaymentStatus != *f.PaymentStatus,
			f.VehicleNo != "" && res.VehicleNo != f.VehicleNo,
			f.Mobile != "" && res.Mobile != f.Mobile,
			f.From != nil && res.StartAt.Before(*f.From),
			f.To != nil && !res.StartAt.Before(*f.To):
			continue
		}
		all = append(all, res)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	total := int64(len(all))
	lo := (f.Page - 1) * f.PageSize
	if lo > len(all) {
		lo = len(all)
	}
	hi := lo + f.PageSize
	if hi > len(all) {
		hi = len(all)
	}
	return all[lo:hi], total, nil
}

func (r memReservations) update(id string, cond func(model.Reservation) bool, apply func(*model.Reservation)) error {
	defer r.m.lock()()
	res, ok := r.m.state.reservations[id]
	if !ok || !cond(res) {
		return repository.ErrConflict
	}
	apply(&res)
	r.m.state.reservations[id] = res
	return nil
}

func (r memReservations) UpdateStatus(_ context.Context, id string, from, to model.ReservationStatus) error {
	return r.update(id,
		func(res model.Reservation) bool { return res.Status == from && !res.IsDeleted },
		func(res *model.Reservation) { res.Status = to })
}

func (r memReservations) Complete(_ context.Context, id string, from model.ReservationStatus, endAt time.Time, totalCents int64) error {
	return r.update(id,
		func(res model.Reservation) bool { return res.Status == from && !res.IsDeleted },
		func(res *model.Reservation) {
			res.Status = model.ReservationStatusCompleted
			res.PaymentStatus = model.PaymentStatusPaid
			res.EndAt = &endAt
			res.TotalAmountCents = &totalCents
			res.IsParked = false
		})
}

func (r memReservations) MoveSlot(_ context.Context, id string, fromSlot, toSlot uint64) error {
	if r.m.hooks.failMoveSlot != nil {
		return r.m.hooks.failMoveSlot
	}
	return r.update(id,
		func(res model.Reservation) bool { return res.SlotID == fromSlot },
		func(res *model.Reservation) { res.SlotID = toSlot })
}

func (r memReservations) SetPaymentStatus(_ context.Context, id string, s model.PaymentStatus) error {
	if r.m.hooks.failSetPaymentState != nil {
		return r.m.hooks.failSetPaymentState
	}
	err := r.update(id,
		func(model.Reservation) bool { return true },
		func(res *model.Reservation) { res.PaymentStatus = s })
	if errors.Is(err, repository.ErrConflict) {
		return nil
	}
	return err
}

func (r memReservations) UpdateDetails(_ context.Context, id string, p model.ReservationPatch) error {
	return r.update(id,
		func(res model.Reservation) bool { return !res.IsDeleted },
		func(res *model.Reservation) {
			if p.VehicleNo != nil {
				res.VehicleNo = *p.VehicleNo
			}
			if p.Mobile != nil {
				res.Mobile = *p.Mobile
			}
			if p.RatingID != nil {
				v := *p.RatingID
				res.RatingID = &v
			}
			if p.IsParked != nil {
				res.IsParked = *p.IsParked
			}
		})
}

func (r memReservations) SoftDelete(_ context.Context, id string) error {
	return r.update(id,
		func(model.Reservation) bool { return true },
		func(res *model.Reservation) { res.IsDeleted = true })
}

func (r memReservations) FindActiveByVehicle(_ context.Context, vehicleNo string, now time.Time) (*model.Reservation, error) {
	defer r.m.lock()()
	var best *model.Reservation
	for _, res := range r.m.state.reservations {
		if res.VehicleNo != vehicleNo || res.IsDeleted {
			continue
		}
		active := (res.Status == model.ReservationStatusPending && !res.CreatedAt.Before(now.Add(-repository.PendingHoldWindow))) ||
			(res.Status == model.ReservationStatusConfirmed && !res.StartAt.Before(now.Add(-repository.ConfirmedGraceAfter)))
		if !active {
			continue
		}
		if best == nil || res.CreatedAt.After(best.CreatedAt) {
			cp := res
			best = &cp
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return best, nil
}

type memPayments struct{ m *memStore }

func (p memPayments) Insert(_ context.Context, rec *model.PaymentRecord) error {
	defer p.m.lock()()
	if rec.GatewayDigest != nil {
		for _, existing := range p.m.state.payments {
			if existing.ReservationID == rec.ReservationID && existing.GatewayDigest != nil && *existing.GatewayDigest == *rec.GatewayDigest {
				return repository.ErrDuplicate
			}
		}
	}
	p.m.state.payments[rec.ID] = *rec
	p.m.state.paymentOrder = append(p.m.state.paymentOrder, rec.ID)
	return nil
}

func (p memPayments) Get(_ context.Context, id string) (*model.PaymentRecord, error) {
	defer p.m.lock()()
	rec, ok := p.m.state.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (p memPayments) ListByReservation(_ context.Context, reservationID string) ([]model.PaymentRecord, error) {
	defer p.m.lock()()
	out := []model.PaymentRecord{}
	for _, id := range p.m.state.paymentOrder {
		if rec := p.m.state.payments[id]; rec.ReservationID == reservationID && !rec.IsDeleted {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (p memPayments) FindByDigest(_ context.Context, reservationID, digest string) (*model.PaymentRecord, error) {
	defer p.m.lock()()
	for _, rec := range p.m.state.payments {
		if rec.ReservationID == reservationID && rec.GatewayDigest != nil && *rec.GatewayDigest == digest {
			cp := rec
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (p memPayments) UpdateStatus(_ context.Context, id string, from, to model.PaymentStatus) error {
	defer p.m.lock()()
	rec, ok := p.m.state.payments[id]
	if !ok || rec.Status != from {
		return repository.ErrConflict
	}
	rec.Status = to
	p.m.state.payments[id] = rec
	return nil
}

func (m *memStore) allClaims() []model.SlotClaim {
	defer m.lock()()
	return append([]model.SlotClaim(nil), m.state.claims...)
}
